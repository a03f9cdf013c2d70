package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func tempCheckpointPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "run.sfck")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := New(tempCheckpointPath(t))
	rec := Record{
		RunID:              NewRunID(),
		FilesCompleted:     3,
		BytesCompleted:     1 << 20,
		CurrentFilePath:    "dir/file.bin",
		CurrentFileOffset:  4096,
		VolumeIndex:        2,
		VolumeBytesWritten: 512,
	}
	if err := m.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != rec {
		t.Errorf("Load() = %+v, want %+v", got, rec)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := New(tempCheckpointPath(t))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected Load to fail when no checkpoint exists")
	}
}

func TestLoadMalformedCheckpoint(t *testing.T) {
	path := tempCheckpointPath(t)
	if err := os.WriteFile(path, []byte("not cbor at all"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := New(path)
	if _, err := m.Load(); err == nil {
		t.Fatal("expected Load to reject malformed checkpoint data")
	}
}

func TestExistsAndDelete(t *testing.T) {
	path := tempCheckpointPath(t)
	m := New(path)

	if m.Exists() {
		t.Fatal("Exists() = true before any Save")
	}

	if err := m.Save(Record{RunID: NewRunID()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.Exists() {
		t.Fatal("Exists() = false after Save")
	}

	if err := m.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Exists() {
		t.Fatal("Exists() = true after Delete")
	}

	// Deleting an already-missing checkpoint is not an error.
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete on missing file: %v", err)
	}
}

func TestSaveOverwritesPreviousCheckpoint(t *testing.T) {
	m := New(tempCheckpointPath(t))
	runID := NewRunID()

	if err := m.Save(Record{RunID: runID, FilesCompleted: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Save(Record{RunID: runID, FilesCompleted: 2}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.FilesCompleted != 2 {
		t.Errorf("FilesCompleted = %d, want 2", got.FilesCompleted)
	}
}

func TestPathFor(t *testing.T) {
	if got := PathFor("/tmp/archive.7z"); got != "/tmp/archive.7z.checkpoint" {
		t.Errorf("PathFor = %q, want %q", got, "/tmp/archive.7z.checkpoint")
	}
}
