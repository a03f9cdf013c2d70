// Package checkpoint saves, reloads and deletes a progress record for a
// long-running operation. Compress saves one at the start of a run and
// deletes it on success; no caller continues from a recorded position, so a
// resumed compression starts again from the first byte of its input.
package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"sevenz-forensic/internal/errz"
	"sevenz-forensic/internal/log"
)

// Record is the full state needed to resume an operation.
type Record struct {
	RunID              string `cbor:"run_id"`
	FilesCompleted     int    `cbor:"files_completed"`
	BytesCompleted     int64  `cbor:"bytes_completed"`
	CurrentFilePath    string `cbor:"current_file_path"`
	CurrentFileOffset  int64  `cbor:"current_file_offset"`
	VolumeIndex        int64  `cbor:"volume_index"`
	VolumeBytesWritten int64  `cbor:"volume_bytes_written"`
}

// Manager owns a single checkpoint file on disk, serialized as CBOR. Writes
// go through a write-then-rename so a crash mid-write never leaves a
// half-written checkpoint that a resume attempt would trip over.
type Manager struct {
	path string
}

// New creates a manager for a checkpoint file at path. It does not create
// the file or a RunID; callers use NewRunID for that.
func New(path string) *Manager {
	return &Manager{path: path}
}

// NewRunID generates a fresh run identifier, using the same UUID generation
// the rest of the module uses for per-run identifiers.
func NewRunID() string {
	return uuid.NewString()
}

// Save atomically persists rec to the manager's checkpoint path.
func (m *Manager) Save(rec Record) error {
	data, err := cbor.Marshal(rec)
	if err != nil {
		return errz.Wrap(err, "checkpoint: marshal")
	}

	tmp := m.path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errz.NewIOError("write", tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return errz.NewIOError("rename", m.path, err)
	}

	log.Debug("checkpoint saved",
		log.String("path", m.path),
		log.Int("files_completed", rec.FilesCompleted),
		log.Int64("bytes_completed", rec.BytesCompleted))
	return nil
}

// Load reads and validates the checkpoint at the manager's path. Returns
// ErrMalformedCheckpoint if the file exists but cannot be decoded, and a
// plain os.IsNotExist-wrapped error if there is no checkpoint to resume.
func (m *Manager) Load() (Record, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, err
		}
		return Record{}, errz.NewIOError("read", m.path, err)
	}

	var rec Record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return Record{}, errz.Wrap(errz.ErrMalformedCheckpoint, err.Error())
	}
	if rec.RunID == "" || rec.FilesCompleted < 0 || rec.BytesCompleted < 0 {
		return Record{}, errz.ErrMalformedCheckpoint
	}
	return rec, nil
}

// Exists reports whether a checkpoint file is present at the manager's path.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Delete removes the checkpoint file. Called once an operation completes
// successfully, since a stale checkpoint for a finished run would otherwise
// look like a resumable one.
func (m *Manager) Delete() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return errz.NewIOError("remove", m.path, err)
	}
	return nil
}

// PathFor derives the checkpoint file path for a given output archive path:
// {archive_path}.checkpoint, placed alongside the archive so it never
// collides with a real output volume.
func PathFor(outputPath string) string {
	return outputPath + ".checkpoint"
}

// Dir reports the directory component checkpoints under outputPath will be
// written to, creating it if necessary.
func Dir(outputPath string) (string, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errz.NewIOError("mkdir", dir, err)
	}
	return dir, nil
}
