package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorStringIncludesTypeOpAndMessage(t *testing.T) {
	err := NewConnectionError("example.com", 443, fmt.Errorf("refused"))
	s := err.Error()
	if !containsAll(s, "[connection]", "dial", "example.com:443", "refused") {
		t.Fatalf("Error() = %q, missing expected parts", s)
	}
}

func TestErrorWithContextAppendsOriginAndURL(t *testing.T) {
	err := NewProtocolError("bad status line", nil)
	err.WithContext("https://example.com:443", "https://example.com/path")
	s := err.Error()
	if !containsAll(s, "origin=https://example.com:443") {
		t.Fatalf("Error() = %q, want origin annotation", s)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewTLSError("example.com", 443, cause)
	if errors.Unwrap(err) != cause {
		t.Fatal("Unwrap did not return the wrapped cause")
	}
}

func TestIsMatchesByType(t *testing.T) {
	a := NewTimeoutError("read", time.Second)
	b := NewTimeoutError("connect", 2*time.Second)
	if !errors.Is(a, b) {
		t.Fatal("errors of the same Type should match via Is")
	}

	c := NewValidationError("bad request")
	if errors.Is(a, c) {
		t.Fatal("errors of different Type should not match via Is")
	}
}

func TestIsTimeoutError(t *testing.T) {
	if !IsTimeoutError(NewTimeoutError("read", time.Second)) {
		t.Error("IsTimeoutError(*Error{Type: timeout}) = false, want true")
	}
	if !IsTimeoutError(context.DeadlineExceeded) {
		t.Error("IsTimeoutError(context.DeadlineExceeded) = false, want true")
	}
	if IsTimeoutError(NewValidationError("x")) {
		t.Error("IsTimeoutError(validation error) = true, want false")
	}
}

func TestIsTemporaryError(t *testing.T) {
	if !IsTemporaryError(NewConnectionError("h", 80, nil)) {
		t.Error("IsTemporaryError(connection error) = false, want true")
	}
	if IsTemporaryError(NewValidationError("x")) {
		t.Error("IsTemporaryError(validation error) = true, want false")
	}
}

func TestIsContextCanceledAndTimeout(t *testing.T) {
	if !IsContextCanceled(context.Canceled) {
		t.Error("IsContextCanceled(context.Canceled) = false, want true")
	}
	if !IsContextTimeout(context.DeadlineExceeded) {
		t.Error("IsContextTimeout(context.DeadlineExceeded) = false, want true")
	}
	if IsContextCanceled(context.DeadlineExceeded) {
		t.Error("IsContextCanceled(context.DeadlineExceeded) = true, want false")
	}
}

func TestGetErrorType(t *testing.T) {
	if got := GetErrorType(NewWebSocketError("handshake", "bad accept key", nil)); got != ErrorTypeWebSocket {
		t.Errorf("GetErrorType = %q, want %q", got, ErrorTypeWebSocket)
	}
	if got := GetErrorType(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetErrorType(plain error) = %q, want empty", got)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
