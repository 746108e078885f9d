package conn

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	netproxy "golang.org/x/net/proxy"
)

// ProxyType names the supported upstream-proxy protocols for egress
// dialing (as opposed to this engine acting as a proxy itself, which it
// never does).
type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxyHTTPS  ProxyType = "https"
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
)

// ProxyConfig describes an upstream proxy to dial target connections
// through.
type ProxyConfig struct {
	Type      ProxyType
	Host      string
	Port      int
	Username  string
	Password  string
	TLSConfig *tls.Config // used when Type == ProxyHTTPS, to secure the hop to the proxy
}

// ProxyDialer implements Dialer by tunneling every dial through an upstream
// proxy, so pkg/pool and pkg/conn never need to know a proxy is involved.
type ProxyDialer struct {
	Proxy   ProxyConfig
	Timeout time.Duration
}

func (d ProxyDialer) proxyAddr() string {
	return net.JoinHostPort(d.Proxy.Host, strconv.Itoa(d.Proxy.Port))
}

// DialContext connects to addr (the true target) via the configured proxy.
func (d ProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	switch d.Proxy.Type {
	case ProxyHTTP, ProxyHTTPS:
		return d.dialHTTPProxy(ctx, addr)
	case ProxySOCKS4:
		return d.dialSOCKS4(ctx, addr)
	case ProxySOCKS5:
		return d.dialSOCKS5(ctx, addr)
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", d.Proxy.Type)
	}
}

func (d ProxyDialer) dialHTTPProxy(ctx context.Context, targetAddr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}
	c, err := dialer.DialContext(ctx, "tcp", d.proxyAddr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy: %w", err)
	}

	if d.Proxy.Type == ProxyHTTPS {
		tlsConfig := d.Proxy.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: d.Proxy.Host}
		} else {
			tlsConfig = tlsConfig.Clone()
			if tlsConfig.ServerName == "" {
				tlsConfig.ServerName = d.Proxy.Host
			}
		}
		tlsConn := tls.Client(c, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("TLS handshake to proxy failed: %w", err)
		}
		c = tlsConn
	}

	host, _, _ := net.SplitHostPort(targetAddr)
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\nConnection: keep-alive\r\n", targetAddr, host)
	if d.Proxy.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(d.Proxy.Username + ":" + d.Proxy.Password))
		req += fmt.Sprintf("Proxy-Authorization: Basic %s\r\n", auth)
	}
	req += "\r\n"

	if _, err := c.Write([]byte(req)); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to send CONNECT request: %w", err)
	}

	reader := bufio.NewReader(c)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	if !strings.Contains(statusLine, " 200") {
		c.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", strings.TrimSpace(statusLine))
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to read CONNECT response headers: %w", err)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	return c, nil
}

// dialSOCKS4 speaks the SOCKS4 CONNECT handshake directly: no pack library
// implements SOCKS4 (golang.org/x/net/proxy covers only SOCKS5), so this
// stays a direct byte-level implementation, same as the teacher's.
func (d ProxyDialer) dialSOCKS4(ctx context.Context, targetAddr string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(targetAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid target address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("SOCKS4 requires an IPv4 address for %s: %w", host, err)
	}
	targetIP := ips[0].To4()

	dialer := &net.Dialer{Timeout: d.Timeout}
	c, err := dialer.DialContext(ctx, "tcp", d.proxyAddr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SOCKS4 proxy: %w", err)
	}

	req := []byte{0x04, 0x01, byte(port >> 8), byte(port & 0xFF)}
	req = append(req, targetIP...)
	if d.Proxy.Username != "" {
		req = append(req, []byte(d.Proxy.Username)...)
	}
	req = append(req, 0x00)

	if _, err := c.Write(req); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to send SOCKS4 request: %w", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(c, resp); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to read SOCKS4 response: %w", err)
	}
	if resp[1] != 0x5A {
		c.Close()
		return nil, fmt.Errorf("SOCKS4 request failed with status 0x%02X", resp[1])
	}
	return c, nil
}

// dialSOCKS5 uses golang.org/x/net/proxy, same as the teacher.
func (d ProxyDialer) dialSOCKS5(ctx context.Context, targetAddr string) (net.Conn, error) {
	var auth *netproxy.Auth
	if d.Proxy.Username != "" {
		auth = &netproxy.Auth{User: d.Proxy.Username, Password: d.Proxy.Password}
	}
	dialer, err := netproxy.SOCKS5("tcp", d.proxyAddr(), auth, &net.Dialer{Timeout: d.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if ctxDialer, ok := dialer.(netproxy.ContextDialer); ok {
		return ctxDialer.DialContext(ctx, "tcp", targetAddr)
	}
	return dialer.Dial("tcp", targetAddr)
}
