package cookiejar

import (
	"testing"
	"time"

	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

func mustParse(t *testing.T, raw string) *urlutil.URL {
	t.Helper()
	u, err := urlutil.Parse(raw)
	if err != nil {
		t.Fatalf("urlutil.Parse(%q): %v", raw, err)
	}
	return u
}

func TestJarStoreAndCookiesFor(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"session=abc123; Path=/"})

	if got := j.CookiesFor(u); got != "session=abc123" {
		t.Fatalf("CookiesFor = %q, want session=abc123", got)
	}
}

func TestJarScopesByOrigin(t *testing.T) {
	j := New()
	a := mustParse(t, "https://a.example.com/")
	b := mustParse(t, "https://b.example.com/")
	j.Store(a, []string{"x=1"})

	if got := j.CookiesFor(b); got != "" {
		t.Fatalf("CookiesFor(other origin) = %q, want empty", got)
	}
	if got := j.CookiesFor(a); got != "x=1" {
		t.Fatalf("CookiesFor(same origin) = %q, want x=1", got)
	}
}

func TestJarSecureCookieNotSentOverPlainHTTP(t *testing.T) {
	j := New()
	secureURL := mustParse(t, "https://example.com/")
	j.Store(secureURL, []string{"id=42; Secure"})

	plainURL := mustParse(t, "http://example.com/")
	if got := j.CookiesFor(plainURL); got != "" {
		t.Fatalf("CookiesFor(http) with Secure cookie = %q, want empty", got)
	}
	if got := j.CookiesFor(secureURL); got != "id=42" {
		t.Fatalf("CookiesFor(https) = %q, want id=42", got)
	}
}

func TestJarPathScoping(t *testing.T) {
	j := New()
	base := mustParse(t, "https://example.com/account/")
	j.Store(base, []string{"a=1; Path=/account"})

	other := mustParse(t, "https://example.com/other/")
	if got := j.CookiesFor(other); got != "" {
		t.Fatalf("CookiesFor(/other) with Path=/account cookie = %q, want empty", got)
	}
	if got := j.CookiesFor(base); got != "a=1" {
		t.Fatalf("CookiesFor(/account/) = %q, want a=1", got)
	}
}

func TestJarMaxAgeZeroOrNegativeExpiresImmediately(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"doomed=1; Max-Age=0"})

	if got := j.CookiesFor(u); got != "" {
		t.Fatalf("CookiesFor after Max-Age=0 = %q, want empty", got)
	}
}

func TestJarMaxAgeFutureIsRetained(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"keep=1; Max-Age=3600"})

	if got := j.CookiesFor(u); got != "keep=1" {
		t.Fatalf("CookiesFor = %q, want keep=1", got)
	}
}

func TestJarExpiresAttributeParsed(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC1123)
	j.Store(u, []string{"future=1; Expires=" + future})

	if got := j.CookiesFor(u); got != "future=1" {
		t.Fatalf("CookiesFor = %q, want future=1", got)
	}
}

func TestJarOverwritesSameName(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"a=1"})
	j.Store(u, []string{"a=2"})

	if got := j.CookiesFor(u); got != "a=2" {
		t.Fatalf("CookiesFor after overwrite = %q, want a=2", got)
	}
}

func TestJarClearRemovesEverything(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"a=1"})
	j.Clear()

	if got := j.CookiesFor(u); got != "" {
		t.Fatalf("CookiesFor after Clear = %q, want empty", got)
	}
}

func TestJarIgnoresMalformedSetCookie(t *testing.T) {
	j := New()
	u := mustParse(t, "https://example.com/")
	j.Store(u, []string{"noequalsign"})

	if got := j.CookiesFor(u); got != "" {
		t.Fatalf("CookiesFor after malformed Set-Cookie = %q, want empty", got)
	}
}
