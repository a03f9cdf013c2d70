package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func TestCompressExtractRoundTripPlain(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), []byte("the quick brown fox jumps over the lazy dog, repeated many times. "+
		"the quick brown fox jumps over the lazy dog, repeated many times."))
	writeFile(t, filepath.Join(src, "sub", "b.txt"), []byte("nested file contents"))

	out := filepath.Join(t.TempDir(), "out.7z")
	err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "a.txt"), filepath.Join(src, "sub")},
		OutputPath: out,
		Level:      5,
	})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("archive not created: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(&ExtractRequest{ArchivePath: out, OutputDir: dest}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got := readFile(t, filepath.Join(dest, "a.txt"))
	want := "the quick brown fox jumps over the lazy dog, repeated many times. " +
		"the quick brown fox jumps over the lazy dog, repeated many times."
	if string(got) != want {
		t.Errorf("a.txt = %q, want %q", got, want)
	}

	gotNested := readFile(t, filepath.Join(dest, "sub", "b.txt"))
	if string(gotNested) != "nested file contents" {
		t.Errorf("sub/b.txt = %q, want %q", gotNested, "nested file contents")
	}
}

func TestCompressExtractRoundTripStore(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "raw.bin"), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 0})

	out := filepath.Join(t.TempDir(), "out.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "raw.bin")},
		OutputPath: out,
		Level:      0,
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(&ExtractRequest{ArchivePath: out, OutputDir: dest}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got := readFile(t, filepath.Join(dest, "raw.bin"))
	if len(got) != 10 {
		t.Fatalf("raw.bin length = %d, want 10", len(got))
	}
}

func TestCompressExtractRoundTripEncrypted(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "secret.txt"), []byte("sensitive contents that must round-trip exactly"))

	out := filepath.Join(t.TempDir(), "out.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "secret.txt")},
		OutputPath: out,
		Level:      3,
		Password:   "correct horse battery staple",
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(&ExtractRequest{
		ArchivePath: out,
		OutputDir:   dest,
		Password:    "correct horse battery staple",
	}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got := readFile(t, filepath.Join(dest, "secret.txt"))
	if string(got) != "sensitive contents that must round-trip exactly" {
		t.Errorf("secret.txt = %q, want original contents", got)
	}
}

func TestExtractWrongPasswordFails(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "secret.txt"), []byte("top secret"))

	out := filepath.Join(t.TempDir(), "out.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "secret.txt")},
		OutputPath: out,
		Level:      1,
		Password:   "right-password",
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dest := t.TempDir()
	err := Extract(&ExtractRequest{
		ArchivePath: out,
		OutputDir:   dest,
		Password:    "wrong-password",
	})
	if err == nil {
		t.Fatal("Extract with wrong password succeeded, want an error")
	}
}

func TestCompressExtractEmptyDirectory(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeFile(t, filepath.Join(src, "file.txt"), []byte("content"))

	out := filepath.Join(t.TempDir(), "out.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{src},
		OutputPath: out,
		Level:      3,
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(&ExtractRequest{ArchivePath: out, OutputDir: dest}); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	base := filepath.Base(src)
	info, err := os.Stat(filepath.Join(dest, base, "empty"))
	if err != nil {
		t.Fatalf("empty dir not recreated: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("recreated empty entry is not a directory")
	}
}

func TestListDoesNotRequirePassword(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), []byte("alpha"))
	writeFile(t, filepath.Join(src, "b.txt"), []byte("beta"))

	out := filepath.Join(t.TempDir(), "out.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt")},
		OutputPath: out,
		Level:      5,
		Password:   "hunter2",
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	entries, err := List(&ListRequest{ArchivePath: out})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestCompressSplitVolumes(t *testing.T) {
	src := t.TempDir()
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, filepath.Join(src, "big.bin"), data)

	out := filepath.Join(t.TempDir(), "split.7z")
	if err := Compress(&CompressRequest{
		Inputs:     []string{filepath.Join(src, "big.bin")},
		OutputPath: out,
		Level:      0,
		SplitSize:  1000,
	}); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	if _, err := os.Stat(out + ".001"); err != nil {
		t.Fatalf("expected first volume file: %v", err)
	}
	if _, err := os.Stat(out + ".002"); err != nil {
		t.Fatalf("expected second volume file: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(&ExtractRequest{ArchivePath: out, OutputDir: dest}); err != nil {
		t.Fatalf("Extract across volumes: %v", err)
	}
	got := readFile(t, filepath.Join(dest, "big.bin"))
	if len(got) != len(data) {
		t.Fatalf("big.bin length = %d, want %d", len(got), len(data))
	}
	for i := range got {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], data[i])
		}
	}
}
