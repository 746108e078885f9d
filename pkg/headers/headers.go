// Package headers implements the ordered, case-insensitive header container
// used for both requests and responses. Header names are compared
// case-insensitively (per RFC 7230 §3.2) but insertion order is preserved
// for serialization, matching how real servers expect to see them and how
// this engine's wire codec writes them back out.
package headers

import (
	"net/textproto"
	"strings"
)

// Common header names used by this engine. Not exhaustive — callers may set
// any header name they like — but named here so internal code never
// hand-types a header string twice.
const (
	Host              = "Host"
	UserAgent         = "User-Agent"
	Accept            = "Accept"
	AcceptEncoding    = "Accept-Encoding"
	Connection        = "Connection"
	ContentLength     = "Content-Length"
	TransferEncoding  = "Transfer-Encoding"
	ContentType       = "Content-Type"
	ContentEncoding   = "Content-Encoding"
	SetCookie         = "Set-Cookie"
	Cookie            = "Cookie"
	Authorization     = "Authorization"
	Location          = "Location"
	Upgrade           = "Upgrade"
	SecWebSocketKey   = "Sec-WebSocket-Key"
	SecWebSocketAccept = "Sec-WebSocket-Accept"
	SecWebSocketVersion = "Sec-WebSocket-Version"
	SecWebSocketProtocol = "Sec-WebSocket-Protocol"
)

// Headers is an ordered, case-insensitive multi-map of header values.
type Headers struct {
	order  []string            // canonical keys in first-seen order
	values map[string][]string // canonical key -> values
}

// New returns an empty Headers container.
func New() *Headers {
	return &Headers{values: make(map[string][]string)}
}

func canon(key string) string {
	return textproto.CanonicalMIMEHeaderKey(key)
}

// Add appends a value, preserving any existing values under key.
func (h *Headers) Add(key, value string) {
	k := canon(key)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = append(h.values[k], value)
}

// Set replaces all existing values for key with a single value.
func (h *Headers) Set(key, value string) {
	k := canon(key)
	if _, ok := h.values[k]; !ok {
		h.order = append(h.order, k)
	}
	h.values[k] = []string{value}
}

// Get returns the first value for key, or "" if absent.
func (h *Headers) Get(key string) string {
	vs := h.values[canon(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key, in insertion order.
func (h *Headers) Values(key string) []string {
	return h.values[canon(key)]
}

// Has reports whether key is present (with at least one value).
func (h *Headers) Has(key string) bool {
	return len(h.values[canon(key)]) > 0
}

// Del removes all values for key.
func (h *Headers) Del(key string) {
	k := canon(key)
	if _, ok := h.values[k]; !ok {
		return
	}
	delete(h.values, k)
	for i, name := range h.order {
		if name == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Keys returns the canonical header names in insertion order.
func (h *Headers) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Clone returns a deep copy, so mutating the clone never affects the
// original — used at request-composition time to snapshot Session state.
func (h *Headers) Clone() *Headers {
	if h == nil {
		return New()
	}
	c := &Headers{
		order:  append([]string(nil), h.order...),
		values: make(map[string][]string, len(h.values)),
	}
	for k, vs := range h.values {
		c.values[k] = append([]string(nil), vs...)
	}
	return c
}

// Merge overlays other's values on top of h, returning a new Headers; a key
// present in other replaces (not appends to) h's values for that key. Used
// to layer per-request headers over Session defaults.
func (h *Headers) Merge(other *Headers) *Headers {
	merged := h.Clone()
	if other == nil {
		return merged
	}
	for _, k := range other.order {
		merged.Set(k, "")
		merged.values[k] = append([]string(nil), other.values[k]...)
	}
	return merged
}

// EachLine calls fn once per header line in insertion order, formatted as it
// should appear on the wire ("Name: value").
func (h *Headers) EachLine(fn func(name, value string)) {
	for _, k := range h.order {
		for _, v := range h.values[k] {
			fn(k, v)
		}
	}
}

// ContainsControlChars reports whether value contains a bare CR, LF, or NUL,
// used to reject header-injection attempts at request-composition time
// (CRLF injection, or request smuggling via an embedded NUL, in a header
// value).
func ContainsControlChars(value string) bool {
	return strings.ContainsAny(value, "\r\n\x00")
}
