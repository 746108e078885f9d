package timing

import (
	"testing"
	"time"
)

func TestTimerRecordsEachPhase(t *testing.T) {
	tm := NewTimer()
	tm.StartDNS()
	time.Sleep(2 * time.Millisecond)
	tm.EndDNS()

	tm.StartTCP()
	time.Sleep(2 * time.Millisecond)
	tm.EndTCP()

	tm.StartTTFB()
	time.Sleep(2 * time.Millisecond)
	tm.EndTTFB()

	m := tm.GetMetrics()
	if m.DNSLookup <= 0 {
		t.Error("DNSLookup = 0, want > 0")
	}
	if m.TCPConnect <= 0 {
		t.Error("TCPConnect = 0, want > 0")
	}
	if m.TLSHandshake != 0 {
		t.Errorf("TLSHandshake = %v, want 0 (never started)", m.TLSHandshake)
	}
	if m.TTFB <= 0 {
		t.Error("TTFB = 0, want > 0")
	}
	if m.TotalTime <= 0 {
		t.Error("TotalTime = 0, want > 0")
	}
}

func TestMetricsDerivedHelpers(t *testing.T) {
	m := Metrics{
		DNSLookup:    1 * time.Millisecond,
		TCPConnect:   2 * time.Millisecond,
		TLSHandshake: 3 * time.Millisecond,
		TTFB:         4 * time.Millisecond,
		TotalTime:    10 * time.Millisecond,
	}
	if got := m.GetConnectionTime(); got != 6*time.Millisecond {
		t.Errorf("GetConnectionTime() = %v, want 6ms", got)
	}
	if got := m.GetServerTime(); got != 4*time.Millisecond {
		t.Errorf("GetServerTime() = %v, want 4ms", got)
	}
	if got := m.GetNetworkTime(); got != 6*time.Millisecond {
		t.Errorf("GetNetworkTime() = %v, want 6ms", got)
	}
}

func TestDeadlineZeroMeansUnbounded(t *testing.T) {
	start := time.Now()
	if dl := Deadline(start, 0); !dl.IsZero() {
		t.Errorf("Deadline(start, 0) = %v, want zero Time", dl)
	}
	if dl := Deadline(start, 5*time.Second); dl.Before(start) {
		t.Errorf("Deadline(start, 5s) = %v, want after start", dl)
	}
}

func TestDefaultTimeoutMatchesDocumentedValues(t *testing.T) {
	to := DefaultTimeout()
	if to.Connect != 10*time.Second {
		t.Errorf("Connect = %v, want 10s", to.Connect)
	}
	if to.Read != 30*time.Second {
		t.Errorf("Read = %v, want 30s", to.Read)
	}
	if to.Total != 0 {
		t.Errorf("Total = %v, want 0 (unbounded)", to.Total)
	}
}
