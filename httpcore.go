// Package httpcore is the entry point for the HTTP/1.1 + WebSocket
// transport engine: a Client holds the shared connection pool and default
// dial/timeout configuration that every Session created from it reuses.
package httpcore

import (
	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/httpwire"
	"github.com/httpcore-go/httpcore/pkg/pool"
	"github.com/httpcore-go/httpcore/pkg/session"
	"github.com/httpcore-go/httpcore/pkg/timing"
)

// Re-exported so callers get the full API surface from this one package
// without reaching into pkg/session themselves.
type (
	Session = session.Session
	Request = session.Request
)

// Client is a factory for Sessions sharing one connection pool. Creating
// many short-lived Sessions from the same Client keeps connection reuse
// working across them; a Client with no Sessions holds no connections.
type Client struct {
	pool       *pool.Pool
	dialConfig conn.Config
	timeout    timing.Timeout
	limits     httpwire.Limits
	userAgent  string
}

// Option customizes a Client built by NewClient.
type Option func(*Client)

// WithPoolConfig overrides the connection pool's sizing/idle-time limits.
func WithPoolConfig(cfg pool.Config) Option {
	return func(c *Client) { c.pool = pool.New(cfg) }
}

// WithDialConfig overrides TLS/proxy/keep-alive settings used to establish
// new connections.
func WithDialConfig(cfg conn.Config) Option {
	return func(c *Client) { c.dialConfig = cfg }
}

// WithTimeout overrides the connect/read/total timeout budget.
func WithTimeout(t timing.Timeout) Option {
	return func(c *Client) { c.timeout = t }
}

// WithLimits overrides the wire-parsing size limits (header size, field
// count, max body size).
func WithLimits(l httpwire.Limits) Option {
	return func(c *Client) { c.limits = l }
}

// WithUserAgent overrides the default User-Agent sent on every request that
// doesn't set its own.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client with the engine's documented defaults, applying
// opts on top.
func NewClient(opts ...Option) *Client {
	defaults := session.DefaultConfig()
	c := &Client{
		pool:       defaults.Pool,
		dialConfig: defaults.DialConfig,
		timeout:    defaults.Timeout,
		limits:     defaults.Limits,
		userAgent:  defaults.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession creates a Session that draws connections from this Client's
// shared pool. baseURL may be empty; if set, every Session.Send call may use
// a relative URL resolved against it.
func (c *Client) NewSession(baseURL string) (*Session, error) {
	cfg := session.Config{
		Pool:         c.pool,
		DialConfig:   c.dialConfig,
		Timeout:      c.timeout,
		MaxRedirects: session.DefaultConfig().MaxRedirects,
		Limits:       c.limits,
		UserAgent:    c.userAgent,
	}
	return session.New(cfg, baseURL)
}

// Close shuts down the Client's shared connection pool, closing all idle
// connections held by any Session created from it.
func (c *Client) Close() error {
	return c.pool.Close()
}
