package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/httpcore-go/httpcore/pkg/headers"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

func newTestSession(t *testing.T, baseURL string) *Session {
	t.Helper()
	s, err := New(DefaultConfig(), baseURL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionSimpleGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	resp, err := s.Send(context.Background(), &Request{Method: "GET", URL: "/", ContentLength: 0})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	text, err := resp.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "hello" {
		t.Fatalf("Text() = %q, want hello", text)
	}
}

func TestSessionRedirect301RewritesPOSTToGET(t *testing.T) {
	var finalMethod string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		finalMethod = r.Method
		w.Write([]byte("done"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	resp, err := s.Send(context.Background(), &Request{Method: "POST", URL: "/start", ContentLength: 0})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if finalMethod != "GET" {
		t.Fatalf("final method = %q, want GET (301 rewrites POST to GET)", finalMethod)
	}
	if len(resp.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(resp.History))
	}
	if resp.History[0].StatusCode != 301 {
		t.Fatalf("History[0].StatusCode = %d, want 301", resp.History[0].StatusCode)
	}
}

func TestSessionRedirect307PreservesMethodAndBody(t *testing.T) {
	var finalMethod, finalBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		finalMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		finalBody = string(b)
		w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	body := strings.NewReader("payload")
	resp, err := s.Send(context.Background(), &Request{
		Method: "POST", URL: "/start", Body: body, ContentLength: int64(len("payload")),
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if finalMethod != "POST" {
		t.Fatalf("final method = %q, want POST (307 preserves method)", finalMethod)
	}
	if finalBody != "payload" {
		t.Fatalf("final body = %q, want payload (307 preserves body)", finalBody)
	}
	_ = resp
}

func TestSessionCrossOriginRedirectStripsAuthAndCookies(t *testing.T) {
	var sawAuth, sawCookie string
	origin2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		sawCookie = r.Header.Get("Cookie")
		w.Write([]byte("ok"))
	}))
	defer origin2.Close()

	origin1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, origin2.URL+"/", http.StatusFound)
	}))
	defer origin1.Close()

	s := newTestSession(t, origin1.URL)
	s.BasicAuth("user", "pass")
	u, err := urlutil.Parse(origin1.URL + "/")
	if err != nil {
		t.Fatalf("urlutil.Parse: %v", err)
	}
	s.Cookies().Store(u, []string{"session=abc"})

	_, err = s.Send(context.Background(), &Request{Method: "GET", URL: "/", ContentLength: 0})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sawAuth != "" {
		t.Fatalf("Authorization leaked cross-origin: %q", sawAuth)
	}
	if sawCookie != "" {
		t.Fatalf("Cookie leaked cross-origin: %q", sawCookie)
	}
}

func TestSessionRedirectCycleFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop2", http.StatusFound)
	})
	mux.HandleFunc("/loop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.MaxRedirects = 3
	s, err := New(cfg, srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	resp, err := s.Send(context.Background(), &Request{Method: "GET", URL: "/loop", ContentLength: 0})
	if err == nil {
		t.Fatal("Send on a redirect cycle: want error, got nil")
	}
	if resp == nil {
		t.Fatal("Send on a redirect cycle: want partial response with History, got nil")
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("partial response StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if len(resp.History) == 0 {
		t.Fatal("partial response History is empty, want the redirects followed before the cycle was detected")
	}
}

func TestSessionConnectionReusedAcrossSequentialRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	resp1, err := s.Send(context.Background(), &Request{Method: "GET", URL: "/", ContentLength: 0})
	if err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if resp1.ConnectionReused {
		t.Fatal("first request reported ConnectionReused=true, want false")
	}

	resp2, err := s.Send(context.Background(), &Request{Method: "GET", URL: "/", ContentLength: 0})
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if !resp2.ConnectionReused {
		t.Fatal("second request reported ConnectionReused=false, want true")
	}
}

func TestSessionHeaderInjectionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	h := headers.New()
	h.Set("X-Evil", "value\r\nInjected: true")
	_, err := s.Send(context.Background(), &Request{Method: "GET", URL: "/", Headers: h, ContentLength: 0})
	if err == nil {
		t.Fatal("Send with CRLF-injected header value: want error, got nil")
	}
}
