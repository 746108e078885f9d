package constants

import (
	"testing"
	"time"
)

func TestPoolDefaults(t *testing.T) {
	if DefaultMaxConnectionsPerHost != 10 {
		t.Errorf("DefaultMaxConnectionsPerHost = %d, want 10", DefaultMaxConnectionsPerHost)
	}
	if DefaultMaxTotalConnections != 100 {
		t.Errorf("DefaultMaxTotalConnections = %d, want 100", DefaultMaxTotalConnections)
	}
	if DefaultMaxIdleTime != 90*time.Second {
		t.Errorf("DefaultMaxIdleTime = %v, want 90s", DefaultMaxIdleTime)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	if DefaultConnectTimeout != 10*time.Second {
		t.Errorf("DefaultConnectTimeout = %v, want 10s", DefaultConnectTimeout)
	}
	if DefaultReadTimeout != 30*time.Second {
		t.Errorf("DefaultReadTimeout = %v, want 30s", DefaultReadTimeout)
	}
	if DefaultTotalTimeout != 0 {
		t.Errorf("DefaultTotalTimeout = %v, want 0 (unbounded)", DefaultTotalTimeout)
	}
}

func TestRedirectDefaults(t *testing.T) {
	if DefaultMaxRedirects != 30 {
		t.Errorf("DefaultMaxRedirects = %d, want 30", DefaultMaxRedirects)
	}
}

func TestWireParsingDefaults(t *testing.T) {
	if DefaultMaxHeaderSize != 65536 {
		t.Errorf("DefaultMaxHeaderSize = %d, want 65536", DefaultMaxHeaderSize)
	}
	if DefaultMaxFieldCount != 100 {
		t.Errorf("DefaultMaxFieldCount = %d, want 100", DefaultMaxFieldCount)
	}
	if DefaultMaxBodySize != 10_000_000 {
		t.Errorf("DefaultMaxBodySize = %d, want 10000000", DefaultMaxBodySize)
	}
}

func TestWebSocketDefaults(t *testing.T) {
	if DefaultMaxFrameSize != 1_048_576 {
		t.Errorf("DefaultMaxFrameSize = %d, want 1048576", DefaultMaxFrameSize)
	}
	if DefaultPingInterval != 15*time.Second {
		t.Errorf("DefaultPingInterval = %v, want 15s", DefaultPingInterval)
	}
	if MaxControlPayloadSize != 125 {
		t.Errorf("MaxControlPayloadSize = %d, want 125", MaxControlPayloadSize)
	}
	if DefaultReconnectBase != 500*time.Millisecond {
		t.Errorf("DefaultReconnectBase = %v, want 500ms", DefaultReconnectBase)
	}
	if DefaultReconnectMax != 30*time.Second {
		t.Errorf("DefaultReconnectMax = %v, want 30s", DefaultReconnectMax)
	}
	if DefaultReconnectTries != 5 {
		t.Errorf("DefaultReconnectTries = %d, want 5", DefaultReconnectTries)
	}
}

func TestHousekeepingAndBufferDefaults(t *testing.T) {
	if CleanupInterval != 30*time.Second {
		t.Errorf("CleanupInterval = %v, want 30s", CleanupInterval)
	}
	if DefaultBodyMemLimit != 4*1024*1024 {
		t.Errorf("DefaultBodyMemLimit = %d, want 4MB", DefaultBodyMemLimit)
	}
}
