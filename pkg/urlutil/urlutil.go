// Package urlutil provides the immutable URL type and relative-resolution
// logic (RFC 3986 §5) used throughout the engine. It wraps net/url for the
// grammar-heavy parsing work but enforces this engine's own policies on top
// (userinfo rejected, non-ASCII hosts rejected, default ports normalized
// away) and exposes an Origin type used to key the connection pool and
// cookie jar.
package urlutil

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/httpcore-go/httpcore/pkg/errors"
)

// Origin identifies the scheme+host+port triple that the connection pool
// and cookie jar bucket connections and cookies by (RFC 6454).
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

func (o Origin) String() string {
	return fmt.Sprintf("%s://%s:%d", o.Scheme, o.Host, o.Port)
}

// Equal reports whether two origins are identical.
func (o Origin) Equal(other Origin) bool {
	return o.Scheme == other.Scheme && o.Host == other.Host && o.Port == other.Port
}

// URL is an immutable, already-validated URL.
type URL struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	RawQuery string
	Fragment string
}

func defaultPort(scheme string) int {
	switch scheme {
	case "https", "wss":
		return 443
	default:
		return 80
	}
}

// Parse parses raw into a validated URL. Only http/https/ws/wss schemes are
// accepted; userinfo (user:pass@) in the authority is rejected — credentials
// belong in the session's auth configuration, not embedded in a URL that
// might get logged or sent to the wrong origin.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewValidationError("invalid URL: " + err.Error())
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	case "":
		return nil, errors.NewValidationError("URL must include a scheme")
	default:
		return nil, errors.NewValidationError("unsupported URL scheme: " + u.Scheme)
	}
	if u.User != nil {
		return nil, errors.NewValidationError("userinfo in URL is not supported; use session auth instead")
	}
	host := u.Hostname()
	if host == "" {
		return nil, errors.NewValidationError("URL must include a host")
	}
	if !isASCII(host) {
		return nil, errors.NewValidationError("non-ASCII hostnames are not supported")
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, errors.NewValidationError("invalid port in URL")
		}
	} else {
		port = defaultPort(u.Scheme)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return &URL{
		Scheme:   u.Scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// Origin returns the scheme+host+port this URL addresses.
func (u *URL) Origin() Origin {
	return Origin{Scheme: u.Scheme, Host: u.Host, Port: u.Port}
}

// HostHeader returns the value to use for the Host header: bare host unless
// the port is non-default, per RFC 7230 §5.4.
func (u *URL) HostHeader() string {
	if u.Port == defaultPort(u.Scheme) {
		return u.Host
	}
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// RequestTarget returns the origin-form request target (path?query), used
// as the request-line target for direct (non-proxy) requests.
func (u *URL) RequestTarget() string {
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}

// String reconstitutes the full URL, normalizing the default port away.
func (u *URL) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString("://")
	sb.WriteString(u.HostHeader())
	sb.WriteString(u.Path)
	if u.RawQuery != "" {
		sb.WriteByte('?')
		sb.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.Fragment)
	}
	return sb.String()
}

// ResolveReference resolves a Location header value (absolute or relative)
// against base, per RFC 3986 §5.
func ResolveReference(base *URL, location string) (*URL, error) {
	baseURL, err := url.Parse(base.String())
	if err != nil {
		return nil, errors.NewProtocolError("invalid base URL during redirect resolution", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return nil, errors.NewProtocolError("invalid Location header", err)
	}
	resolved := baseURL.ResolveReference(ref)
	return Parse(resolved.String())
}
