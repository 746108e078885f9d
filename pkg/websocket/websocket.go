// Package websocket implements an RFC 6455 WebSocket client: the
// HTTP/1.1 upgrade handshake, frame codec with client-side masking,
// fragmentation, control-frame auto-reply, and auto-reconnect with
// exponential backoff. Opcode and close-code constants below are the
// RFC 6455 values, the same set used by every stdlib-only WebSocket
// implementation (client or server).
package websocket

import (
	"bufio"
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/httpcore-go/httpcore/pkg/conn"
	"github.com/httpcore-go/httpcore/pkg/constants"
	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/timing"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// Opcode identifies a WebSocket frame's payload interpretation.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (op Opcode) isControl() bool { return op >= OpClose }

// Close status codes (RFC 6455 §7.4.1).
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseProtocolError    = 1002
	CloseUnsupportedData  = 1003
	CloseNoStatus         = 1005
	CloseAbnormal         = 1006
	CloseInvalidPayload   = 1007
	ClosePolicyViolation  = 1008
	CloseMessageTooBig    = 1009
	CloseMandatoryExt     = 1010
	CloseInternalError    = 1011
	CloseServiceRestart   = 1012
	CloseTryAgainLater    = 1013
)

// MessageKind tags a received application message as text or binary,
// resolving the engine's text/binary tagging design question.
type MessageKind int

const (
	MessageText MessageKind = iota
	MessageBinary
)

// Message is one complete application message (after fragment reassembly).
type Message struct {
	Kind MessageKind
	Data []byte
}

// State names the connection's lifecycle state.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

// ReconnectPolicy configures auto-reconnect behavior after an unexpected
// close or network failure.
type ReconnectPolicy struct {
	Enabled    bool
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultReconnectPolicy disables reconnect; callers opt in explicitly.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay: constants.DefaultReconnectBase,
		MaxDelay:  constants.DefaultReconnectMax,
		MaxRetries: constants.DefaultReconnectTries,
	}
}

// Config configures a Conn.
type Config struct {
	DialConfig      conn.Config
	Subprotocols    []string
	MaxFrameSize    int64
	Reconnect       ReconnectPolicy
	HandshakeHeader map[string]string
}

// DefaultConfig matches the external-interface defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize: constants.DefaultMaxFrameSize,
		Reconnect:    DefaultReconnectPolicy(),
	}
}

// Conn is a WebSocket client connection.
type Conn struct {
	cfg    Config
	url    *urlutil.URL
	mu     sync.Mutex
	state  State
	c      *conn.Connection
	r      *bufio.Reader
	subprotocol string
}

// Option customizes a Conn built by New.
type Option func(*Config)

// WithMaxFrameSize overrides the default maximum reassembled-message size.
func WithMaxFrameSize(n int64) Option {
	return func(c *Config) { c.MaxFrameSize = n }
}

// WithSubprotocols requests subprotocols during the handshake, in preference order.
func WithSubprotocols(protocols ...string) Option {
	return func(c *Config) { c.Subprotocols = protocols }
}

// WithReconnect enables/configures auto-reconnect.
func WithReconnect(policy ReconnectPolicy) Option {
	return func(c *Config) { c.Reconnect = policy }
}

// WithDialConfig overrides the TCP/TLS dial configuration used to establish
// the underlying connection (proxying, TLS profile, timeouts, ...).
func WithDialConfig(dc conn.Config) Option {
	return func(c *Config) { c.DialConfig = dc }
}

// WithHandshakeHeaders adds extra headers to the upgrade request.
func WithHandshakeHeaders(h map[string]string) Option {
	return func(c *Config) { c.HandshakeHeader = h }
}

// New creates a Conn for rawURL (ws:// or wss://); it does not connect
// until Connect is called.
func New(rawURL string, opts ...Option) (*Conn, error) {
	u, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.NewValidationError("websocket URL must use ws:// or wss://")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = constants.DefaultMaxFrameSize
	}
	return &Conn{cfg: cfg, url: u, state: StateNew}, nil
}

// Connect performs the TCP/TLS dial and the HTTP/1.1 upgrade handshake.
func (wc *Conn) Connect(ctx context.Context) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.connectLocked(ctx)
}

func (wc *Conn) connectLocked(ctx context.Context) error {
	wc.state = StateConnecting
	dialOrigin := urlutil.Origin{Scheme: httpScheme(wc.url.Scheme), Host: wc.url.Host, Port: wc.url.Port}

	c, err := conn.Dial(ctx, dialOrigin, wc.cfg.DialConfig, timing.NewTimer())
	if err != nil {
		wc.state = StateClosed
		return err
	}

	subproto, br, err := performHandshake(ctx, c, wc.url, wc.cfg.Subprotocols, wc.cfg.HandshakeHeader)
	if err != nil {
		c.Close()
		wc.state = StateClosed
		return err
	}

	wc.c = c
	wc.r = br
	wc.subprotocol = subproto
	wc.state = StateOpen
	return nil
}

func httpScheme(wsScheme string) string {
	if wsScheme == "wss" {
		return "https"
	}
	return "http"
}

// Subprotocol returns the subprotocol negotiated during the handshake, or
// "" if none was requested/accepted.
func (wc *Conn) Subprotocol() string {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.subprotocol
}

// Send writes msg as a single unfragmented frame, masked per RFC 6455
// (client-to-server frames are always masked).
func (wc *Conn) Send(ctx context.Context, msg Message) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.state != StateOpen {
		return errors.NewWebSocketError("send", "connection is not open", nil)
	}
	op := OpText
	if msg.Kind == MessageBinary {
		op = OpBinary
	}
	if dl, ok := ctx.Deadline(); ok {
		wc.c.SetWriteDeadline(dl)
		defer wc.c.SetWriteDeadline(time.Time{})
	}
	return writeFrame(wc.c, op, msg.Data, true)
}

// Ping sends a ping control frame.
func (wc *Conn) Ping(ctx context.Context, data []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.state != StateOpen {
		return errors.NewWebSocketError("ping", "connection is not open", nil)
	}
	return writeFrame(wc.c, OpPing, data, true)
}

// Recv reads and reassembles the next application message, auto-replying
// to control frames (pong to ping, echo+close to a peer-initiated close)
// along the way.
func (wc *Conn) Recv(ctx context.Context) (Message, error) {
	for {
		wc.mu.Lock()
		if wc.state != StateOpen {
			wc.mu.Unlock()
			return Message{}, errors.NewWebSocketError("recv", "connection is not open", nil)
		}
		c := wc.c
		r := wc.r
		maxSize := wc.cfg.MaxFrameSize
		wc.mu.Unlock()

		if dl, ok := ctx.Deadline(); ok {
			c.SetReadDeadline(dl)
		}

		fr, err := readFrame(r, maxSize)
		if err != nil {
			if tooLarge, ok := err.(*errFrameTooLarge); ok {
				writeFrame(c, OpClose, encodeCloseCode(CloseMessageTooBig, ""), true)
				wc.transitionClosed()
				return Message{}, tooLarge
			}
			if wc.tryReconnect(ctx) {
				continue
			}
			wc.transitionClosed()
			return Message{}, err
		}

		switch fr.opcode {
		case OpPing:
			if err := writeFrame(c, OpPong, fr.payload, true); err != nil {
				if wc.tryReconnect(ctx) {
					continue
				}
				wc.transitionClosed()
				return Message{}, err
			}
			continue
		case OpPong:
			continue
		case OpClose:
			wc.mu.Lock()
			wc.state = StateClosing
			wc.mu.Unlock()
			writeFrame(c, OpClose, fr.payload, true)
			wc.transitionClosed()
			return Message{}, errors.NewWebSocketError("recv", "connection closed by peer", nil)
		case OpText:
			return Message{Kind: MessageText, Data: fr.payload}, nil
		case OpBinary:
			return Message{Kind: MessageBinary, Data: fr.payload}, nil
		default:
			continue
		}
	}
}

func (wc *Conn) transitionClosed() {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.c != nil {
		wc.c.Close()
	}
	wc.state = StateClosed
}

// tryReconnect re-handshakes after an unexpected network/read failure, per
// the engine's reconnect policy: delay base_delay*2^attempt between tries,
// up to max_attempts. It never runs after a clean peer CLOSE frame — callers
// only invoke it for network/read errors, not OpClose.
func (wc *Conn) tryReconnect(ctx context.Context) bool {
	wc.mu.Lock()
	policy := wc.cfg.Reconnect
	if wc.c != nil {
		wc.c.Close()
	}
	wc.state = StateClosed
	wc.mu.Unlock()

	if !policy.Enabled {
		return false
	}

	delay := policy.BaseDelay
	if delay <= 0 {
		delay = constants.DefaultReconnectBase
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = constants.DefaultReconnectMax
	}

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		wait := delay
		for i := 0; i < attempt; i++ {
			wait *= 2
			if wait > maxDelay {
				wait = maxDelay
				break
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		wc.mu.Lock()
		err := wc.connectLocked(ctx)
		wc.mu.Unlock()
		if err == nil {
			return true
		}
	}
	return false
}

// Close sends a close frame with code/reason and closes the underlying
// connection.
func (wc *Conn) Close(code int, reason string) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.state != StateOpen && wc.state != StateClosing {
		return nil
	}
	payload := encodeCloseCode(code, reason)
	err := writeFrame(wc.c, OpClose, payload, true)
	if wc.c != nil {
		wc.c.Close()
	}
	wc.state = StateClosed
	return err
}

func encodeCloseCode(code int, reason string) []byte {
	if code == 0 {
		return nil
	}
	buf := make([]byte, 2+len(reason))
	buf[0] = byte(code >> 8)
	buf[1] = byte(code & 0xFF)
	copy(buf[2:], reason)
	return buf
}

func newMaskKey() [4]byte {
	var key [4]byte
	rand.Read(key[:])
	return key
}
