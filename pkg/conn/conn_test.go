package conn

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/httpcore-go/httpcore/pkg/timing"
	"github.com/httpcore-go/httpcore/pkg/urlutil"
)

func TestDialPlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			io.Copy(io.Discard, c)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}

	origin := urlutil.Origin{Scheme: "http", Host: host, Port: port}
	c, err := Dial(context.Background(), origin, Config{}, timing.NewTimer())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.Metadata.NegotiatedProtocol != "HTTP/1.1" {
		t.Errorf("NegotiatedProtocol = %q, want HTTP/1.1", c.Metadata.NegotiatedProtocol)
	}
	if c.Metadata.RemoteAddr == "" {
		t.Error("RemoteAddr is empty")
	}
}

func TestIsAliveOnOpenIdleConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if !IsAlive(client) {
		t.Error("IsAlive on an open, idle connection = false, want true")
	}
}

func TestIsAliveOnClosedConnection(t *testing.T) {
	client, server := net.Pipe()
	server.Close()
	client.Close()

	if IsAlive(client) {
		t.Error("IsAlive on a closed connection = true, want false")
	}
}

func TestIsAliveOnPeerClosedConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	server.Close()

	// Give the close a moment to propagate before probing.
	time.Sleep(10 * time.Millisecond)
	if IsAlive(client) {
		t.Error("IsAlive after peer closed = true, want false")
	}
}

func TestConfigureSNIExplicitWins(t *testing.T) {
	cfg := &tls.Config{}
	ConfigureSNI(cfg, "custom.example.com", false, "fallback.example.com")
	if cfg.ServerName != "custom.example.com" {
		t.Errorf("ServerName = %q, want custom.example.com (explicit SNI wins)", cfg.ServerName)
	}
}

func TestConfigureSNIFallsBackToHost(t *testing.T) {
	cfg := &tls.Config{}
	ConfigureSNI(cfg, "", false, "fallback.example.com")
	if cfg.ServerName != "fallback.example.com" {
		t.Errorf("ServerName = %q, want fallback.example.com", cfg.ServerName)
	}
}

func TestConfigureSNIDisabled(t *testing.T) {
	cfg := &tls.Config{}
	ConfigureSNI(cfg, "", true, "fallback.example.com")
	if cfg.ServerName != "" {
		t.Errorf("ServerName = %q, want empty (SNI disabled)", cfg.ServerName)
	}
}
