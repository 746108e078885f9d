package tlsconfig

import (
	"crypto/tls"
	"testing"
)

func TestApplyVersionProfile(t *testing.T) {
	cfg := &tls.Config{}
	ApplyVersionProfile(cfg, ProfileSecure)
	if cfg.MinVersion != VersionTLS12 {
		t.Errorf("MinVersion = 0x%x, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.MaxVersion != VersionTLS13 {
		t.Errorf("MaxVersion = 0x%x, want TLS 1.3", cfg.MaxVersion)
	}
}

func TestApplyCipherSuitesTLS13OmitsExplicitList(t *testing.T) {
	cfg := &tls.Config{}
	ApplyCipherSuites(cfg, VersionTLS13)
	if cfg.CipherSuites != nil {
		t.Errorf("CipherSuites = %v, want nil (TLS 1.3 negotiates its own)", cfg.CipherSuites)
	}
}

func TestApplyCipherSuitesTLS12UsesSecureList(t *testing.T) {
	cfg := &tls.Config{}
	ApplyCipherSuites(cfg, VersionTLS12)
	if len(cfg.CipherSuites) != len(CipherSuitesTLS12Secure) {
		t.Errorf("CipherSuites len = %d, want %d", len(cfg.CipherSuites), len(CipherSuitesTLS12Secure))
	}
}

func TestGetVersionName(t *testing.T) {
	cases := map[uint16]string{
		VersionTLS12: "TLS 1.2",
		VersionTLS13: "TLS 1.3",
		0xFFFF:       "Unknown",
	}
	for version, want := range cases {
		if got := GetVersionName(version); got != want {
			t.Errorf("GetVersionName(0x%x) = %q, want %q", version, got, want)
		}
	}
}

func TestIsVersionDeprecated(t *testing.T) {
	if !IsVersionDeprecated(VersionTLS11) {
		t.Error("IsVersionDeprecated(TLS 1.1) = false, want true")
	}
	if IsVersionDeprecated(VersionTLS12) {
		t.Error("IsVersionDeprecated(TLS 1.2) = true, want false")
	}
	if IsVersionDeprecated(VersionTLS13) {
		t.Error("IsVersionDeprecated(TLS 1.3) = true, want false")
	}
}

func TestGetCipherSuiteName(t *testing.T) {
	if got := GetCipherSuiteName(tls.TLS_AES_128_GCM_SHA256); got != "TLS_AES_128_GCM_SHA256" {
		t.Errorf("GetCipherSuiteName = %q, want TLS_AES_128_GCM_SHA256", got)
	}
	if got := GetCipherSuiteName(0xFFFF); got != "Unknown" {
		t.Errorf("GetCipherSuiteName(unknown) = %q, want Unknown", got)
	}
}

func TestProfilesOrderedByMinVersion(t *testing.T) {
	if ProfileModern.Min < ProfileSecure.Min {
		t.Error("ProfileModern should require a version >= ProfileSecure's minimum")
	}
	if ProfileSecure.Min < ProfileCompatible.Min {
		t.Error("ProfileSecure should require a version >= ProfileCompatible's minimum")
	}
}
