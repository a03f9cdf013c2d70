// Package archive orchestrates the 7z engine end to end: file discovery,
// entropy-guided planning, the container writer/reader, optional encryption,
// and checkpoint bookkeeping. It is the "Control" layer that owns §4.I and
// §4.J and drives every lower-level package in this module.
package archive

import (
	"sevenz-forensic/internal/checkpoint"
	"sevenz-forensic/internal/cryptoz"
)

// ProgressReporter receives callbacks during a long-running compress or
// extract operation. Implementations must be safe for concurrent use; the
// operation calls back from its own goroutine while the CLI's signal
// handler may mark the reporter cancelled from another.
type ProgressReporter interface {
	SetStatus(text string)
	SetProgress(fraction float64, info string)
	Update()
	IsCancelled() bool
}

// CompressRequest carries everything Compress needs for one archive run.
type CompressRequest struct {
	Inputs     []string // file and/or directory paths to include
	OutputPath string

	Level     int   // 0-9; negative means "pick from the entropy probe"
	SplitSize int64 // 0 means never split
	ChunkSize int64 // 0 means use chunkio.DefaultCeiling

	Password string // empty means unencrypted
	Resume   bool

	Reporter ProgressReporter
}

// ExtractRequest carries everything Extract needs.
type ExtractRequest struct {
	ArchivePath string
	OutputDir   string
	Password    string
	Reporter    ProgressReporter
}

// TestRequest carries everything Test needs.
type TestRequest struct {
	ArchivePath string
	Password    string
}

// ListRequest carries everything List needs; archives never require a
// password to list, since FilesInfo is not encrypted.
type ListRequest struct {
	ArchivePath string
}

// operationContext holds mutable state threaded through one compress or
// extract run. Constructed at the start of each operation and closed via
// defer so any derived key material is zeroed promptly.
type operationContext struct {
	key      *cryptoz.KeyMaterial
	reporter ProgressReporter

	checkpoints *checkpoint.Manager

	total int64
	done  int64
}

func newOperationContext(reporter ProgressReporter, ckptPath string) *operationContext {
	return &operationContext{
		reporter:    reporter,
		checkpoints: checkpoint.New(ckptPath),
	}
}

func (c *operationContext) setStatus(s string) {
	if c.reporter != nil {
		c.reporter.SetStatus(s)
		c.reporter.Update()
	}
}

func (c *operationContext) advance(n int64, info string) {
	c.done += n
	if c.reporter != nil {
		frac := 1.0
		if c.total > 0 {
			frac = float64(c.done) / float64(c.total)
		}
		c.reporter.SetProgress(frac, info)
		c.reporter.Update()
	}
}

func (c *operationContext) isCancelled() bool {
	if c.reporter != nil {
		return c.reporter.IsCancelled()
	}
	return false
}

// close zeroes any key material still held by the context. Safe to call on
// a nil context or one whose key was never set.
func (c *operationContext) close() {
	if c == nil || c.key == nil {
		return
	}
	c.key.Close()
	c.key = nil
}
