package bitio

import (
	"bytes"
	"testing"
)

func TestGammaRoundTrip(t *testing.T) {
	values := []uint32{1, 2, 3, 4, 7, 8, 255, 256, 1 << 20, (1 << 31) + 17}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		if err := w.WriteGamma(v); err != nil {
			t.Fatalf("WriteGamma(%d): %v", v, err)
		}
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	r := NewReader(&buf)
	for _, want := range values {
		got, err := r.ReadGamma()
		if err != nil {
			t.Fatalf("ReadGamma: %v", err)
		}
		if got != want {
			t.Errorf("ReadGamma = %d, want %d", got, want)
		}
	}
}

func TestWriteGammaRejectsZero(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteGamma(0); err == nil {
		t.Fatal("expected error writing gamma(0)")
	}
}

func TestBitsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0x1A, 8)
	w.WriteBits(0x3, 2)
	w.WriteBits(0x7FFFFFFF, 31)
	w.Sync()

	r := NewReader(&buf)
	if v, _ := r.ReadBits(8); v != 0x1A {
		t.Errorf("first byte = %x", v)
	}
	if v, _ := r.ReadBits(2); v != 0x3 {
		t.Errorf("two bits = %x", v)
	}
	if v, _ := r.ReadBits(31); v != 0x7FFFFFFF {
		t.Errorf("31 bits = %x", v)
	}
}

func TestReadPastEndFails(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(1, 1)
	w.Sync()

	r := NewReader(&buf)
	r.ReadBits(8)
	if _, err := r.ReadBits(8); err == nil {
		t.Fatal("expected end-of-stream error")
	}
}
