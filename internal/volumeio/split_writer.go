// Package volumeio presents a logical archive byte stream as an ordered set
// of fixed-size volume files on disk: SplitWriter on the compression path,
// MultiReader on the extraction path. Both are grounded in the teacher
// fileops package's numbered-chunk convention, generalized from a one-shot
// split/recombine pair into a streaming, seekable sink and source so the
// container writer can backpatch the signature header across volume
// boundaries (the same io.WriterAt idiom the teacher's header package uses
// for its auth-value backpatch).
package volumeio

import (
	"fmt"
	"os"

	"sevenz-forensic/internal/errz"
)

// SplitWriter presents a single logical write sink mapped onto an ordered
// set of volume files, rolling at splitSize bytes. splitSize == 0 means
// "never split" and all bytes land in one file at basePath.
//
// A SplitWriter is not safe for concurrent use.
type SplitWriter struct {
	basePath  string
	splitSize int64

	index int64 // 1-based index of the currently open volume
	bytes int64 // bytes already written into the current volume

	cur *os.File
}

// NewSplitWriter opens (or creates) the first volume and returns a ready
// SplitWriter.
func NewSplitWriter(basePath string, splitSize int64) (*SplitWriter, error) {
	sw := &SplitWriter{basePath: basePath, splitSize: splitSize, index: 1}
	f, err := os.Create(sw.volumePath(1))
	if err != nil {
		return nil, errz.NewIOError("create", sw.volumePath(1), err)
	}
	sw.cur = f
	return sw, nil
}

// volumePath returns the on-disk path for 1-based volume index i.
func (sw *SplitWriter) volumePath(i int64) string {
	if sw.splitSize <= 0 {
		return sw.basePath
	}
	return fmt.Sprintf("%s.%03d", sw.basePath, i)
}

// Write appends p to the logical stream, rolling volumes as needed. A write
// that would cross a split boundary is itself split across the old and new
// volume files.
func (sw *SplitWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if sw.splitSize > 0 && sw.bytes+int64(len(p)) > sw.splitSize {
			room := sw.splitSize - sw.bytes
			if room > 0 {
				n, err := sw.cur.Write(p[:room])
				total += n
				sw.bytes += int64(n)
				if err != nil {
					return total, errz.NewIOError("write", sw.volumePath(sw.index), err)
				}
				p = p[room:]
			}
			if err := sw.roll(); err != nil {
				return total, err
			}
			continue
		}

		n, err := sw.cur.Write(p)
		total += n
		sw.bytes += int64(n)
		if err != nil {
			return total, errz.NewIOError("write", sw.volumePath(sw.index), err)
		}
		p = p[n:]
	}
	return total, nil
}

// roll closes the current volume and opens the next one.
func (sw *SplitWriter) roll() error {
	if err := sw.cur.Close(); err != nil {
		return errz.NewIOError("close", sw.volumePath(sw.index), err)
	}
	sw.index++
	sw.bytes = 0
	f, err := os.Create(sw.volumePath(sw.index))
	if err != nil {
		return errz.NewIOError("create", sw.volumePath(sw.index), err)
	}
	sw.cur = f
	return nil
}

// WriteAt backpatches absolute offset O of the logical stream, honouring the
// same (k, off) = (O/S, O mod S) arithmetic as ordinary writes, without
// disturbing the writer's forward cursor. It is used exactly once per run:
// to rewrite the 32-byte signature header after the end header's offset,
// size, and CRC are known.
func (sw *SplitWriter) WriteAt(p []byte, off int64) (int, error) {
	volIndex, volOff := sw.offsetToVolume(off)

	path := sw.volumePath(volIndex)
	var f *os.File
	var err error
	if volIndex == sw.index {
		// Backpatching the volume we're still appending to: reuse the open
		// handle so we don't race our own forward cursor.
		f = sw.cur
	} else {
		f, err = os.OpenFile(path, os.O_WRONLY, 0o644)
		if err != nil {
			return 0, errz.NewIOError("open", path, err)
		}
		defer f.Close()
	}

	n, err := f.WriteAt(p, volOff)
	if err != nil {
		return n, errz.NewIOError("writeat", path, err)
	}

	if volIndex == sw.index {
		// Restore the append cursor; WriteAt on *os.File does not move it,
		// but be explicit for clarity and to guard future changes.
		if _, err := f.Seek(0, os.SEEK_END); err != nil {
			return n, errz.NewIOError("seek", path, err)
		}
	}

	return n, nil
}

// offsetToVolume maps an absolute logical offset to (1-based volume index,
// offset within that volume).
func (sw *SplitWriter) offsetToVolume(off int64) (int64, int64) {
	if sw.splitSize <= 0 {
		return 1, off
	}
	return off/sw.splitSize + 1, off % sw.splitSize
}

// Flush ensures buffered bytes reach the OS; the underlying *os.File has no
// internal buffering, so this is a no-op reserved for interface symmetry
// with wrapping writers (e.g. the encryption layer) that do buffer.
func (sw *SplitWriter) Flush() error { return nil }

// Close closes the currently open volume. It does not remove any volumes;
// callers that want cleanup-on-error semantics call Abort instead.
func (sw *SplitWriter) Close() error {
	if err := sw.cur.Close(); err != nil {
		return errz.NewIOError("close", sw.volumePath(sw.index), err)
	}
	return nil
}

// Abort closes the current volume and removes every volume file written so
// far, for callers that want a clean slate on error.
func (sw *SplitWriter) Abort() error {
	sw.cur.Close()
	for i := int64(1); i <= sw.index; i++ {
		os.Remove(sw.volumePath(i))
	}
	return nil
}

// VolumeIndex and VolumeBytesWritten expose the writer's current position
// for the checkpoint manager.
func (sw *SplitWriter) VolumeIndex() int64        { return sw.index }
func (sw *SplitWriter) VolumeBytesWritten() int64 { return sw.bytes }

// Resume reopens basePath at the recorded (volumeIndex, volumeBytesWritten)
// position so a compression run can continue writing where it left off.
func Resume(basePath string, splitSize, volumeIndex, volumeBytesWritten int64) (*SplitWriter, error) {
	if volumeIndex < 1 {
		volumeIndex = 1
	}
	sw := &SplitWriter{basePath: basePath, splitSize: splitSize, index: volumeIndex, bytes: volumeBytesWritten}
	f, err := os.OpenFile(sw.volumePath(volumeIndex), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errz.NewIOError("open", sw.volumePath(volumeIndex), err)
	}
	if _, err := f.Seek(volumeBytesWritten, os.SEEK_SET); err != nil {
		f.Close()
		return nil, errz.NewIOError("seek", sw.volumePath(volumeIndex), err)
	}
	if err := f.Truncate(volumeBytesWritten); err != nil {
		f.Close()
		return nil, errz.NewIOError("truncate", sw.volumePath(volumeIndex), err)
	}
	sw.cur = f
	return sw, nil
}
