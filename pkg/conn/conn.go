// Package conn dials and upgrades a single physical connection: DNS
// resolution, TCP connect, and optional TLS handshake, plus a liveness
// probe used by the pool before handing an idle connection back out.
package conn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"time"

	"github.com/httpcore-go/httpcore/pkg/errors"
	"github.com/httpcore-go/httpcore/pkg/timing"
	"github.com/httpcore-go/httpcore/pkg/tlsconfig"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

// Dialer abstracts how a TCP connection to addr is obtained, so an egress
// proxy can be swapped in without the pool or session knowing the
// difference. The default is a plain net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Config controls how Dial establishes one connection.
type Config struct {
	Dialer             Dialer // nil means a default *net.Dialer
	ConnectTimeout     time.Duration
	TLSConfig          *tls.Config // direct passthrough/override, cloned before use
	InsecureTLS        bool
	CustomCACerts      [][]byte
	SNI                string
	DisableSNI         bool
	TLSProfile         tlsconfig.VersionProfile // ignored when TLSConfig is set directly
	TCPKeepAlive       bool
	TCPKeepAlivePeriod time.Duration
}

// Metadata records observability about the physical connection, surfaced on
// Response per the teacher's ConnectionMetadata.
type Metadata struct {
	ConnectedIP        string
	LocalAddr          string
	RemoteAddr         string
	TLSVersion         string
	TLSCipherSuite     string
	TLSServerName      string
	TLSResumed         bool
	NegotiatedProtocol string
}

// Connection is one physical connection plus the metadata gathered while
// establishing it. It does not know about pooling; pkg/pool owns its
// lifecycle (idle stack membership, checked-out state).
type Connection struct {
	net.Conn
	Origin     urlutil.Origin
	Metadata   Metadata
	OpenedAt   time.Time
	LastUsedAt time.Time
}

// Dial resolves, connects and — for https/wss origins — TLS-upgrades a new
// connection to origin, recording timing into timer.
func Dial(ctx context.Context, origin urlutil.Origin, cfg Config, timer *timing.Timer) (*Connection, error) {
	addr := net.JoinHostPort(origin.Host, portString(origin.Port))

	timer.StartDNS()
	timer.EndDNS() // resolution happens inside DialContext; no separate lookup phase to time here

	timer.StartTCP()
	raw, err := dial(ctx, cfg, addr)
	timer.EndTCP()
	if err != nil {
		return nil, errors.NewConnectionError(origin.Host, origin.Port, err)
	}

	if cfg.TCPKeepAlive {
		if tcpConn, ok := raw.(*net.TCPConn); ok {
			period := cfg.TCPKeepAlivePeriod
			if period <= 0 {
				period = 30 * time.Second
			}
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(period)
		}
	}

	meta := Metadata{
		RemoteAddr: raw.RemoteAddr().String(),
		LocalAddr:  raw.LocalAddr().String(),
	}
	if host, _, splitErr := net.SplitHostPort(meta.RemoteAddr); splitErr == nil {
		meta.ConnectedIP = host
	}

	final := raw
	if origin.Scheme == "https" || origin.Scheme == "wss" {
		timer.StartTLS()
		tlsConn, tlsErr := upgradeTLS(ctx, raw, origin.Host, cfg, &meta)
		timer.EndTLS()
		if tlsErr != nil {
			raw.Close()
			return nil, errors.NewTLSError(origin.Host, origin.Port, tlsErr)
		}
		final = tlsConn
	} else {
		meta.NegotiatedProtocol = "HTTP/1.1"
	}

	now := time.Now()
	return &Connection{
		Conn:       final,
		Origin:     origin,
		Metadata:   meta,
		OpenedAt:   now,
		LastUsedAt: now,
	}, nil
}

func dial(ctx context.Context, cfg Config, addr string) (net.Conn, error) {
	if cfg.Dialer != nil {
		return cfg.Dialer.DialContext(ctx, "tcp", addr)
	}
	d := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

func upgradeTLS(ctx context.Context, raw net.Conn, host string, cfg Config, meta *Metadata) (net.Conn, error) {
	handshakeTimeout := cfg.ConnectTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	tlsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	var tlsConfig *tls.Config
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
		if cfg.InsecureTLS {
			tlsConfig.InsecureSkipVerify = true
		}
	} else {
		profile := cfg.TLSProfile
		if profile.Min == 0 {
			profile = tlsconfig.ProfileSecure
		}
		tlsConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}
		tlsconfig.ApplyVersionProfile(tlsConfig, profile)
		tlsconfig.ApplyCipherSuites(tlsConfig, profile.Min)
		if len(cfg.CustomCACerts) > 0 {
			pool := x509.NewCertPool()
			for _, pem := range cfg.CustomCACerts {
				pool.AppendCertsFromPEM(pem)
			}
			tlsConfig.RootCAs = pool
		}
		ConfigureSNI(tlsConfig, cfg.SNI, cfg.DisableSNI, host)
	}

	meta.TLSServerName = tlsConfig.ServerName

	tlsConn := tls.Client(raw, tlsConfig)
	if err := tlsConn.HandshakeContext(tlsCtx); err != nil {
		return nil, err
	}

	state := tlsConn.ConnectionState()
	meta.TLSVersion = tlsVersionString(state.Version)
	meta.TLSCipherSuite = tls.CipherSuiteName(state.CipherSuite)
	meta.TLSResumed = state.DidResume
	meta.NegotiatedProtocol = "HTTP/1.1"
	return tlsConn, nil
}

// ConfigureSNI sets ServerName on cfg: customSNI takes priority, then the
// origin host unless SNI is explicitly disabled.
func ConfigureSNI(cfg *tls.Config, customSNI string, disableSNI bool, fallbackHost string) {
	if customSNI != "" {
		cfg.ServerName = customSNI
		return
	}
	if !disableSNI {
		cfg.ServerName = fallbackHost
	}
}

func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown"
	}
}

func portString(port int) string {
	return strconv.Itoa(port)
}

// IsAlive probes c with a very short read deadline: a timeout means the
// connection is idle-but-open; any other outcome (data present, EOF, reset)
// is treated conservatively as dead so the pool never hands out a
// connection the server has half-closed.
func IsAlive(c net.Conn) bool {
	c.SetReadDeadline(time.Now().Add(1 * time.Millisecond))
	defer c.SetReadDeadline(time.Time{})

	one := make([]byte, 1)
	_, err := c.Read(one)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}
