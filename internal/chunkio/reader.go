// Package chunkio presents an on-disk file as a lazy, read-ceilinged byte
// sequence with progress taps, the way the fileops split/recombine pipeline
// streams volumes in fixed-size increments rather than loading whole files.
package chunkio

import (
	"io"
	"os"

	"sevenz-forensic/internal/errz"
)

// ProgressTap is invoked on every Read call with the bytes delivered so far
// for the current file, the file's total size, and its name.
type ProgressTap func(currentFileBytes, currentFileTotal int64, fileName string)

const DefaultCeiling = 64 * 1024 * 1024 // 64 MiB

// Reader is a lazy byte sequence over one file. A single Reader instance is
// not safe for concurrent use; it maintains a cursor and is finite (EOF is
// reported as a zero-length, io.EOF read).
type Reader struct {
	f        *os.File
	name     string
	total    int64
	ceiling  int64
	done     int64
	progress ProgressTap
}

// Open opens path and returns a Reader with the given read ceiling (0 means
// DefaultCeiling) and an optional progress tap.
func Open(path string, ceiling int64, tap ProgressTap) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errz.NewIOError("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errz.NewIOError("stat", path, err)
	}

	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}

	return &Reader{
		f:        f,
		name:     path,
		total:    info.Size(),
		ceiling:  ceiling,
		progress: tap,
	}, nil
}

// Size returns the file's total size, known up front from metadata.
func (r *Reader) Size() int64 { return r.total }

// Done returns the cumulative bytes delivered so far.
func (r *Reader) Done() int64 { return r.done }

// Read never returns more than min(ceiling, len(buf)) bytes per call, even
// if the caller's buffer is larger; larger logical reads are the caller's
// responsibility to loop for. Read reports EOF once the file is exhausted.
func (r *Reader) Read(buf []byte) (int, error) {
	if int64(len(buf)) > r.ceiling {
		buf = buf[:r.ceiling]
	}

	n, err := r.f.Read(buf)
	if n > 0 {
		r.done += int64(n)
	}
	if r.progress != nil {
		r.progress(r.done, r.total, r.name)
	}
	if err != nil && err != io.EOF {
		return n, errz.NewIOError("read", r.name, err)
	}
	return n, err
}

// Close releases the underlying file handle. A closed Reader cannot be
// restarted; callers must Open again and seek if they need to reread.
func (r *Reader) Close() error {
	if err := r.f.Close(); err != nil {
		return errz.NewIOError("close", r.name, err)
	}
	return nil
}
