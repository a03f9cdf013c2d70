package volumeio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"sevenz-forensic/internal/errz"
)

func removeFile(path string) error { return os.Remove(path) }

func roundTripThroughVolumes(t *testing.T, data []byte, splitSize int64) *MultiReader {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "archive")

	sw, err := NewSplitWriter(base, splitSize)
	if err != nil {
		t.Fatalf("NewSplitWriter: %v", err)
	}
	if _, err := sw.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mr, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return mr
}

func TestMultiReaderSingleFile(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 500)
	mr := roundTripThroughVolumes(t, data, 0)

	if mr.Len() != int64(len(data)) {
		t.Errorf("Len() = %d, want %d", mr.Len(), len(data))
	}

	buf := make([]byte, len(data))
	n, err := mr.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != len(data) || !bytes.Equal(buf, data) {
		t.Error("read data does not match written data")
	}
}

func TestMultiReaderCrossVolumeRead(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	mr := roundTripThroughVolumes(t, data, 30)

	if mr.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", mr.Len())
	}

	// Read a span that crosses two volume boundaries (offsets 25..65).
	buf := make([]byte, 40)
	n, err := mr.ReadAt(buf, 25)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 40 {
		t.Fatalf("ReadAt returned %d bytes, want 40", n)
	}
	if !bytes.Equal(buf, data[25:65]) {
		t.Error("cross-volume read mismatch")
	}
}

func TestMultiReaderOffsetOutOfRange(t *testing.T) {
	data := []byte("hello")
	mr := roundTripThroughVolumes(t, data, 0)

	buf := make([]byte, 10)
	_, err := mr.ReadAt(buf, 100)
	if !errz.Is(err, errz.ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestMultiReaderMissingVolume(t *testing.T) {
	data := make([]byte, 50)
	dir := t.TempDir()
	base := filepath.Join(dir, "archive")

	sw, err := NewSplitWriter(base, 10)
	if err != nil {
		t.Fatalf("NewSplitWriter: %v", err)
	}
	sw.Write(data)
	sw.Close()

	// Remove volume 3, leaving a gap.
	removed := base + ".003"
	if err := removeFile(removed); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := Open(base); err == nil {
		t.Error("expected Open to detect the missing volume")
	}
}
