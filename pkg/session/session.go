// Package session implements the caller-facing request execution engine:
// persistent headers, cookies, authentication, hooks, and the redirect
// state machine that chains HTTP/1.1 exchanges together.
package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"
	"time"

	"github.com/httpcore-go/httpcore/pkg/buffer"
	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/constants"
	"github.com/httpcore-go/httpcore/pkg/cookiejar"
	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/headers"
	"github.com/httpcore-go/httpcore/pkg/hooks"
	"github.com/httpcore-go/httpcore/pkg/httpwire"
	"github.com/httpcore-go/httpcore/pkg/pool"
	"github.com/httpcore-go/httpcore/pkg/response"
	"github.com/httpcore-go/httpcore/pkg/timing"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
	"github.com/httpcore-go/httpcore/pkg/websocket"
)

// AuthKind names the supported authentication schemes.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthBearer
)

// Auth holds the session's authentication configuration.
type Auth struct {
	Kind     AuthKind
	Username string
	Password string
	Token    string
}

func (a Auth) header() (string, bool) {
	switch a.Kind {
	case AuthBasic:
		enc := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		return "Basic " + enc, true
	case AuthBearer:
		return "Bearer " + a.Token, true
	default:
		return "", false
	}
}

// Config configures a Session's connection behavior.
type Config struct {
	Pool         *pool.Pool
	DialConfig   conn.Config
	Timeout      timing.Timeout
	MaxRedirects int
	Limits       httpwire.Limits
	UserAgent    string
}

// DefaultConfig matches the external-interface defaults.
func DefaultConfig() Config {
	return Config{
		Pool:         pool.New(pool.DefaultConfig()),
		Timeout:      timing.DefaultTimeout(),
		MaxRedirects: constants.DefaultMaxRedirects,
		Limits: httpwire.Limits{
			MaxHeaderSize: constants.DefaultMaxHeaderSize,
			MaxFieldCount: constants.DefaultMaxFieldCount,
			MaxBodySize:   constants.DefaultMaxBodySize,
		},
		UserAgent: "httpcore/1.0",
	}
}

// Session is the stateful request-execution engine: persistent headers, a
// cookie jar, optional auth, hooks, and the connection pool it draws from.
// A *Session is not safe for concurrent mutation of its headers/jar/auth/
// hooks from multiple goroutines — callers serialize that themselves. Send
// itself may be called concurrently; it only reads a snapshot of mutable
// state at composition time.
type Session struct {
	cfg     Config
	baseURL *urlutil.URL
	headers *headers.Headers
	jar     *cookiejar.Jar
	auth    Auth
	hooks   *hooks.Registry
}

// New creates a Session. baseURL may be empty; if set, relative request
// URLs are resolved against it.
func New(cfg Config, baseURL string) (*Session, error) {
	s := &Session{
		cfg:     cfg,
		headers: headers.New(),
		jar:     cookiejar.New(),
		hooks:   hooks.New(),
	}
	if cfg.Pool == nil {
		s.cfg.Pool = pool.New(pool.DefaultConfig())
	}
	if baseURL != "" {
		u, err := urlutil.Parse(baseURL)
		if err != nil {
			return nil, err
		}
		s.baseURL = u
	}
	return s, nil
}

// Headers returns the session's persistent header set, merged into every
// request before any per-request overrides.
func (s *Session) Headers() *headers.Headers { return s.headers }

// Cookies returns the session's cookie jar.
func (s *Session) Cookies() *cookiejar.Jar { return s.jar }

// BasicAuth configures HTTP Basic authentication for same-origin requests.
func (s *Session) BasicAuth(user, pass string) {
	s.auth = Auth{Kind: AuthBasic, Username: user, Password: pass}
}

// BearerToken configures Bearer token authentication.
func (s *Session) BearerToken(token string) {
	s.auth = Auth{Kind: AuthBearer, Token: token}
}

// ClearAuth removes any configured authentication.
func (s *Session) ClearAuth() { s.auth = Auth{} }

// AddPreRequestHook registers h, run before every request (including each
// redirect hop).
func (s *Session) AddPreRequestHook(h hooks.PreHook) { s.hooks.AddPreRequest(h) }

// AddPostResponseHook registers h, run after every response is parsed.
func (s *Session) AddPostResponseHook(h hooks.PostHook) { s.hooks.AddPostResponse(h) }

// Request is a caller-composed outgoing request.
type Request struct {
	Method        string
	URL           string
	Headers       *headers.Headers // overrides/additions layered over session headers
	Body          io.Reader
	ContentLength int64 // -1 if unknown (forces chunked encoding)
}

// Close shuts down the session's connection pool, closing all idle
// connections.
func (s *Session) Close() error {
	return s.cfg.Pool.Close()
}

// WebSocket resolves url against the session's base URL (if any), dials it
// with the session's DialConfig, and completes the RFC 6455 upgrade
// handshake. The returned connection is independent of the HTTP connection
// pool — once upgraded, it is owned exclusively by the WebSocket.
func (s *Session) WebSocket(ctx context.Context, url string, opts ...websocket.Option) (*websocket.Conn, error) {
	target, err := s.resolveURL(url)
	if err != nil {
		return nil, err
	}
	wsScheme := "ws"
	if target.Scheme == "https" || target.Scheme == "wss" {
		wsScheme = "wss"
	}
	wsURL := wsScheme + "://" + target.HostHeader() + target.RequestTarget()

	allOpts := append([]websocket.Option{websocket.WithDialConfig(s.cfg.DialConfig)}, opts...)
	wc, err := websocket.New(wsURL, allOpts...)
	if err != nil {
		return nil, err
	}
	if err := wc.Connect(ctx); err != nil {
		return nil, err
	}
	return wc, nil
}

// Send executes req, following redirects per the configured policy and
// returning the final Response (with earlier hops in History).
func (s *Session) Send(ctx context.Context, req *Request) (*response.Response, error) {
	start := time.Now()
	if s.cfg.Timeout.Total > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, start.Add(s.cfg.Timeout.Total))
		defer cancel()
	}

	target, err := s.resolveURL(req.URL)
	if err != nil {
		return nil, err
	}

	method := req.Method
	body := req.Body
	contentLength := req.ContentLength
	originalOrigin := target.Origin()

	// A body of known length is read once up front so a 307/308 hop can send
	// it again; a body of unknown length (chunked) is streamed once and is not
	// replayed on a later hop.
	var bodyBytes []byte
	if body != nil && contentLength > 0 {
		b, err := io.ReadAll(io.LimitReader(body, contentLength))
		if err != nil {
			return nil, errors.NewIOError("reading request body", err)
		}
		bodyBytes = b
	}

	var history []*response.Response
	visited := map[string]bool{}

	for hop := 0; ; hop++ {
		if hop > s.cfg.MaxRedirects {
			return partialRedirectResponse(history), errors.NewRedirectError("redirect", "too many redirects")
		}
		visitKey := method + " " + target.String()
		if visited[visitKey] {
			return partialRedirectResponse(history), errors.NewRedirectError("redirect", "redirect cycle detected")
		}
		visited[visitKey] = true

		crossOrigin := !target.Origin().Equal(originalOrigin)
		reqHeaders := s.composeHeaders(target, crossOrigin)
		if hop == 0 && req.Headers != nil {
			reqHeaders = reqHeaders.Merge(req.Headers)
		}

		view := &hooks.RequestView{Method: method, URL: target.String(), Headers: reqHeaders}
		if err := s.hooks.RunPreRequest(view); err != nil {
			return nil, err
		}

		hopBody := body
		if bodyBytes != nil && body != nil {
			hopBody = bytes.NewReader(bodyBytes)
		}
		resp, connErr := s.doOnce(ctx, target, method, view.Headers, hopBody, contentLength)
		if connErr != nil {
			return nil, connErr
		}

		if err := s.hooks.RunPostResponse(resp); err != nil {
			return nil, err
		}

		if loc, redirectMethod, ok := redirectTarget(resp.StatusCode, method, resp.Headers); ok {
			next, err := urlutil.ResolveReference(target, loc)
			if err != nil {
				return nil, err
			}
			resp.History = nil
			history = append(history, resp)
			target = next
			method = redirectMethod
			if method != req.Method {
				body = nil
				contentLength = 0
			}
			continue
		}

		resp.History = history
		return resp, nil
	}
}

func (s *Session) resolveURL(raw string) (*urlutil.URL, error) {
	if s.baseURL != nil {
		if u, err := urlutil.ResolveReference(s.baseURL, raw); err == nil {
			return u, nil
		}
	}
	return urlutil.Parse(raw)
}

// composeHeaders snapshots session headers + auth + cookies + per-request
// overrides into one Headers for this hop. This is where the engine's
// Open-Question policy applies: everything is copied now, so later
// mutation of the Session's headers/jar/auth does not affect the hop
// already composed. Send calls this again for every redirect hop, so each
// hop sees the Session state as it is when that hop is composed.
func (s *Session) composeHeaders(target *urlutil.URL, crossOrigin bool) *headers.Headers {
	h := s.headers.Clone()
	if s.cfg.UserAgent != "" && !h.Has(headers.UserAgent) {
		h.Set(headers.UserAgent, s.cfg.UserAgent)
	}
	if !h.Has(headers.Accept) {
		h.Set(headers.Accept, "*/*")
	}
	if !h.Has(headers.AcceptEncoding) {
		h.Set(headers.AcceptEncoding, "gzip, deflate")
	}
	h.Set(headers.Host, target.HostHeader())
	h.Set(headers.Connection, "keep-alive")

	if authHeader, ok := s.auth.header(); ok && !crossOrigin {
		h.Set(headers.Authorization, authHeader)
	}

	if !crossOrigin {
		if ck := s.jar.CookiesFor(target); ck != "" {
			h.Set(headers.Cookie, ck)
		}
	}

	return h
}

func (s *Session) doOnce(ctx context.Context, target *urlutil.URL, method string, h *headers.Headers, body io.Reader, contentLength int64) (*response.Response, error) {
	origin := target.Origin()
	timer := timing.NewTimer()

	dialer := func(ctx context.Context) (*conn.Connection, error) {
		dialCtx := ctx
		if s.cfg.Timeout.Connect > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout.Connect)
			defer cancel()
		}
		return conn.Dial(dialCtx, origin, s.cfg.DialConfig, timer)
	}

	c, reused, err := s.cfg.Pool.Acquire(ctx, origin, dialer)
	if err != nil {
		return nil, err
	}

	wireReq := &httpwire.Request{
		Method:        method,
		Target:        target.RequestTarget(),
		Headers:       h,
		Body:          body,
		ContentLength: contentLength,
	}

	var deadline time.Time
	if s.cfg.Timeout.Read > 0 {
		deadline = time.Now().Add(s.cfg.Timeout.Read)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if !deadline.IsZero() {
		c.SetDeadline(deadline)
	}

	var wireBuf bytes.Buffer
	if err := httpwire.WriteHeader(&wireBuf, wireReq); err != nil {
		s.cfg.Pool.Discard(origin, c)
		return nil, err
	}
	if _, err := c.Write(wireBuf.Bytes()); err != nil {
		s.cfg.Pool.Discard(origin, c)
		return nil, errors.NewIOError("writing request", err)
	}
	if err := httpwire.WriteBody(c, wireReq); err != nil {
		s.cfg.Pool.Discard(origin, c)
		return nil, err
	}

	timer.StartTTFB()
	br := bufio.NewReader(c)
	wireResp, err := httpwire.ParseResponse(br, method, s.cfg.Limits)
	timer.EndTTFB()
	if err != nil {
		s.cfg.Pool.Discard(origin, c)
		return nil, err
	}

	buf := buffer.New(constants.DefaultBodyMemLimit)
	if _, err := io.Copy(buf, wireResp.Body); err != nil {
		s.cfg.Pool.Discard(origin, c)
		return nil, errors.NewIOError("reading response body", err)
	}

	keepAlive := !strings.EqualFold(wireResp.Headers.Get(headers.Connection), "close")
	if keepAlive {
		c.SetDeadline(time.Time{})
		s.cfg.Pool.Release(origin, c)
	} else {
		s.cfg.Pool.Discard(origin, c)
	}

	s.jar.Store(target, wireResp.Headers.Values(headers.SetCookie))

	resp := response.New(wireResp.StatusCode, wireResp.Reason, wireResp.Headers, target, buf)
	resp.Metrics = timer.GetMetrics()
	resp.Conn = c.Metadata
	resp.ConnectionReused = reused
	return resp, nil
}

// redirectTarget reports whether statusCode is a redirect with a usable
// Location header, and computes the method the redirected request should
// use per RFC 7231 §6.4 / RFC 7538, including this engine's resolution of
// the 303+HEAD open question: 303 always rewrites to GET (even from HEAD);
// HEAD is preserved across 301/302/307/308.
func redirectTarget(statusCode int, method string, h *headers.Headers) (location string, newMethod string, ok bool) {
	switch statusCode {
	case 301, 302, 303, 307, 308:
	default:
		return "", "", false
	}
	loc := h.Get(headers.Location)
	if loc == "" {
		return "", "", false
	}

	switch statusCode {
	case 303:
		return loc, "GET", true
	case 301, 302:
		if method == "POST" || method == "PUT" || method == "PATCH" {
			return loc, "GET", true
		}
		return loc, method, true
	default: // 307, 308
		return loc, method, true
	}
}

// partialRedirectResponse returns the most recent response in a redirect
// chain that failed (too many hops or a cycle), with History populated from
// the earlier hops, so a caller can still inspect the chain that led to the
// failure even though Send itself returns an error.
func partialRedirectResponse(history []*response.Response) *response.Response {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	last.History = history[:len(history)-1]
	return last
}
