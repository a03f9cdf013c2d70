package errz

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidParameter", ErrInvalidParameter},
		{"ErrWrongPassword", ErrWrongPassword},
		{"ErrInconsistentAccounting", ErrInconsistentAccounting},
		{"ErrMalformedCheckpoint", ErrMalformedCheckpoint},
		{"ErrMalformedNumber", ErrMalformedNumber},
		{"ErrBadSignature", ErrBadSignature},
		{"ErrBadHeaderCRC", ErrBadHeaderCRC},
		{"ErrBadPerFileCRC", ErrBadPerFileCRC},
		{"ErrTruncatedArchive", ErrTruncatedArchive},
		{"ErrOffsetOutOfRange", ErrOffsetOutOfRange},
		{"ErrCancelled", ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Error("sentinel error should not be nil")
			}
			if tt.err.Error() == "" {
				t.Error("sentinel error should have a message")
			}
		})
	}
}

func TestIOError(t *testing.T) {
	baseErr := errors.New("permission denied")
	ioErr := NewIOError("open", "/path/to/file", baseErr)

	if ioErr.Error() != "open /path/to/file: permission denied" {
		t.Errorf("unexpected error message: %s", ioErr.Error())
	}

	if ioErr.Unwrap() != baseErr {
		t.Error("Unwrap should return underlying error")
	}

	ioErrNil := NewIOError("stat", "/some/path", nil)
	if ioErrNil.Error() != "stat /some/path: failed" {
		t.Errorf("unexpected error message for nil: %s", ioErrNil.Error())
	}
}

func TestArchiveError(t *testing.T) {
	baseErr := errors.New("decode failed")
	archErr := NewArchiveError("end header", baseErr)

	if archErr.Error() != "malformed archive: end header: decode failed" {
		t.Errorf("unexpected error message: %s", archErr.Error())
	}

	if archErr.Unwrap() != baseErr {
		t.Error("Unwrap should return underlying error")
	}

	if !IsMalformedArchive(archErr) {
		t.Error("IsMalformedArchive should recognize ArchiveError")
	}
	if !IsMalformedArchive(ErrBadSignature) {
		t.Error("IsMalformedArchive should recognize ErrBadSignature")
	}
	if IsMalformedArchive(ErrWrongPassword) {
		t.Error("IsMalformedArchive should not recognize unrelated sentinels")
	}
}

func TestMissingVolumeError(t *testing.T) {
	err := NewMissingVolumeError(3)
	if err.Error() != "missing volume at index 3" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestCompressionError(t *testing.T) {
	baseErr := errors.New("encoder closed")
	err := NewCompressionError("flush", baseErr)

	if err.Error() != "compression failed: flush: encoder closed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if err.Unwrap() != baseErr {
		t.Error("Unwrap should return underlying error")
	}

	errNil := NewCompressionError("flush", nil)
	if errNil.Error() != "compression failed: flush" {
		t.Errorf("unexpected error message for nil: %s", errNil.Error())
	}
}

func TestDecompressionError(t *testing.T) {
	baseErr := errors.New("corrupt stream")
	err := NewDecompressionError("lzma2", baseErr)

	if err.Error() != "decompression failed: lzma2: corrupt stream" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if err.Unwrap() != baseErr {
		t.Error("Unwrap should return underlying error")
	}
}

func TestIs(t *testing.T) {
	if !Is(ErrCancelled, ErrCancelled) {
		t.Error("Is should return true for same error")
	}
	if Is(ErrCancelled, ErrWrongPassword) {
		t.Error("Is should return false for different errors")
	}
}

func TestAs(t *testing.T) {
	archErr := NewArchiveError("test", errors.New("test"))

	var target *ArchiveError
	if !As(archErr, &target) {
		t.Error("As should find ArchiveError")
	}
	if target.Reason != "test" {
		t.Errorf("unexpected Reason: %s", target.Reason)
	}
}

func TestWrap(t *testing.T) {
	baseErr := errors.New("base")
	wrapped := Wrap(baseErr, "context")

	if wrapped.Error() != "context: base" {
		t.Errorf("unexpected wrapped message: %s", wrapped.Error())
	}

	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestConvenienceFunctions(t *testing.T) {
	if !IsCancelled(ErrCancelled) {
		t.Error("IsCancelled should return true for ErrCancelled")
	}
	if IsCancelled(ErrWrongPassword) {
		t.Error("IsCancelled should return false for other errors")
	}
	if !IsWrongPassword(ErrWrongPassword) {
		t.Error("IsWrongPassword should return true for ErrWrongPassword")
	}
}
