package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"sevenz-forensic/internal/chunkio"
)

func TestThreadPlanBuckets(t *testing.T) {
	tests := []struct {
		size        int64
		wantBlocks  int
		wantThreads int
	}{
		{500 * 1024, 1, 1},
		{5 * 1 << 20, 2, 1},
		{20 * 1 << 20, 4, 1},
		{100 * 1 << 20, 8, 2},
		{600 * 1 << 20, 16, 2},
	}
	for _, tt := range tests {
		blocks, threads := ThreadPlan(tt.size)
		if blocks != tt.wantBlocks || threads != tt.wantThreads {
			t.Errorf("ThreadPlan(%d) = (%d,%d), want (%d,%d)", tt.size, blocks, threads, tt.wantBlocks, tt.wantThreads)
		}
	}
}

func TestPropertyByteRoundTrip(t *testing.T) {
	for level := 0; level <= 9; level++ {
		dict := DictSizeForLevel(level)
		pb := PropertyByte(dict)
		recovered := DictSizeForPropertyByte(pb)
		if recovered < dict {
			t.Errorf("level %d: recovered dict size %d smaller than requested %d", level, recovered, dict)
		}
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestEncodeStoreModeAccounting(t *testing.T) {
	dir := t.TempDir()
	aPath := writeFile(t, dir, "a.txt", []byte("hello"))
	bPath := writeFile(t, dir, "b.bin", bytes.Repeat([]byte{0}, 1024))

	ra, err := chunkio.Open(aPath, 0, nil)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	rb, err := chunkio.Open(bPath, 0, nil)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}

	var sink bytes.Buffer
	result, err := Encode([]FileSpec{
		{Reader: ra, Name: "a.txt"},
		{Reader: rb, Name: "b.bin"},
	}, 0, &sink)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if result.FolderUnpackTotal != 5+1024 {
		t.Errorf("FolderUnpackTotal = %d, want %d", result.FolderUnpackTotal, 5+1024)
	}
	if len(result.PerFileSizes) != 2 || result.PerFileSizes[0] != 5 || result.PerFileSizes[1] != 1024 {
		t.Errorf("PerFileSizes = %v, want [5 1024]", result.PerFileSizes)
	}
	if result.PackStreamSize != int64(sink.Len()) {
		t.Errorf("PackStreamSize = %d, want %d (sink length)", result.PackStreamSize, sink.Len())
	}
	if sink.Len() != int(result.FolderUnpackTotal) {
		t.Errorf("store-mode sink length = %d, want unchanged %d", sink.Len(), result.FolderUnpackTotal)
	}
}

func TestDecodeStoreModeRoundTrip(t *testing.T) {
	data := []byte("store mode copies bytes unmodified")
	var decoded bytes.Buffer

	if err := Decode(bytes.NewReader(data), int64(len(data)), true, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), data) {
		t.Error("store-mode decode did not reproduce input bytes")
	}
}
