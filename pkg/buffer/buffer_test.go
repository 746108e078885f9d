package buffer

import (
	"io"
	"os"
	"testing"
)

func TestBufferInMemoryRoundTrip(t *testing.T) {
	b := New(1024)
	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.IsSpilled() {
		t.Fatal("IsSpilled = true, want false (under memory limit)")
	}
	if string(b.Bytes()) != "hello" {
		t.Fatalf("Bytes() = %q, want hello", b.Bytes())
	}
	if b.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", b.Size())
	}
}

func TestBufferSpillsToDiskPastLimit(t *testing.T) {
	b := New(4)
	if _, err := b.Write([]byte("this is longer than four bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !b.IsSpilled() {
		t.Fatal("IsSpilled = false, want true (over memory limit)")
	}
	if b.Bytes() != nil {
		t.Fatalf("Bytes() after spill = %v, want nil", b.Bytes())
	}
	if b.Path() == "" {
		t.Fatal("Path() is empty after spill")
	}
	if _, err := os.Stat(b.Path()); err != nil {
		t.Fatalf("spilled temp file does not exist: %v", err)
	}

	rc, err := b.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading spilled data: %v", err)
	}
	if string(got) != "this is longer than four bytes" {
		t.Fatalf("spilled data = %q, mismatch", got)
	}
}

func TestBufferCloseRemovesTempFile(t *testing.T) {
	b := New(2)
	b.Write([]byte("spills past the tiny limit"))
	path := b.Path()
	if path == "" {
		t.Fatal("expected buffer to have spilled")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("temp file still exists after Close: %v", err)
	}
}

func TestBufferCloseIsIdempotent(t *testing.T) {
	b := New(1024)
	b.Write([]byte("x"))
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestBufferWriteAfterCloseFails(t *testing.T) {
	b := New(1024)
	b.Close()
	if _, err := b.Write([]byte("x")); err == nil {
		t.Fatal("Write after Close: want error, got nil")
	}
}

func TestBufferResetAllowsReuse(t *testing.T) {
	b := New(1024)
	b.Write([]byte("first"))
	if err := b.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if b.Size() != 0 {
		t.Fatalf("Size() after Reset = %d, want 0", b.Size())
	}
	if _, err := b.Write([]byte("second")); err != nil {
		t.Fatalf("Write after Reset: %v", err)
	}
	if string(b.Bytes()) != "second" {
		t.Fatalf("Bytes() after Reset+Write = %q, want second", b.Bytes())
	}
}

func TestNewWithData(t *testing.T) {
	b := NewWithData([]byte("preloaded"))
	if b.Size() != int64(len("preloaded")) {
		t.Fatalf("Size() = %d, want %d", b.Size(), len("preloaded"))
	}
	if string(b.Bytes()) != "preloaded" {
		t.Fatalf("Bytes() = %q, want preloaded", b.Bytes())
	}
}
