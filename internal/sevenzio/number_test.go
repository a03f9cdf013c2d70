package sevenzio

import (
	"bytes"
	"math"
	"testing"
)

func TestEncodeNumberLength(t *testing.T) {
	tests := []struct {
		v      uint64
		length int
	}{
		{0, 1},
		{0x7F, 1},
		{0x80, 2},
		{1<<14 - 1, 2},
		{1 << 14, 3},
		{math.MaxUint32, 5},
		{math.MaxUint64, 9},
	}

	for _, tt := range tests {
		enc := EncodeNumber(tt.v)
		if len(enc) != tt.length {
			t.Errorf("EncodeNumber(%d): got length %d, want %d (bytes=%x)", tt.v, len(enc), tt.length, enc)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 255, 256, 16383, 16384,
		1 << 20, 1 << 32, 1<<32 + 1, math.MaxUint32,
		math.MaxUint64, math.MaxUint64 - 1, 1 << 63,
	}

	for _, v := range values {
		enc := EncodeNumber(v)
		got, err := DecodeNumber(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("DecodeNumber(%x) for v=%d: %v", enc, v, err)
		}
		if got != v {
			t.Errorf("round trip mismatch: encoded %d as %x, decoded %d", v, enc, got)
		}
	}
}

func TestDecodeShortRead(t *testing.T) {
	// first byte declares two extra bytes but none are supplied
	buf := []byte{0xC0}
	if _, err := DecodeNumber(bytes.NewReader(buf)); err == nil {
		t.Error("expected error decoding truncated number")
	}
}

func TestDecodeEmptyReader(t *testing.T) {
	if _, err := DecodeNumber(bytes.NewReader(nil)); err == nil {
		t.Error("expected error decoding from empty reader")
	}
}
