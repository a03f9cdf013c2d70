package sevenzio

import "testing"

func TestCRCMatchesChecksum(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	c := NewCRC()
	if _, err := c.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got, want := c.Sum32(), Checksum(data); got != want {
		t.Errorf("Sum32() = %x, want %x", got, want)
	}
}

func TestCRCStreamedInPieces(t *testing.T) {
	data := []byte("0123456789abcdef")

	whole := NewCRC()
	whole.Write(data)

	piecewise := NewCRC()
	for i := 0; i < len(data); i += 3 {
		end := i + 3
		if end > len(data) {
			end = len(data)
		}
		piecewise.Write(data[i:end])
	}

	if whole.Sum32() != piecewise.Sum32() {
		t.Errorf("piecewise CRC %x != whole CRC %x", piecewise.Sum32(), whole.Sum32())
	}
}

func TestCRCReset(t *testing.T) {
	c := NewCRC()
	c.Write([]byte("data"))
	c.Reset()
	if c.Sum32() != 0 {
		t.Errorf("Sum32() after Reset() = %x, want 0", c.Sum32())
	}
}

func TestCRCEmpty(t *testing.T) {
	c := NewCRC()
	if c.Sum32() != 0 {
		t.Errorf("Sum32() on empty CRC = %x, want 0", c.Sum32())
	}
}
