package cli

import (
	"strings"
	"testing"

	"sevenz-forensic/internal/errz"
)

func TestReporter(t *testing.T) {
	t.Run("NewReporter", func(t *testing.T) {
		r := NewReporter(false)
		if r.quiet {
			t.Error("quiet should be false")
		}
		r = NewReporter(true)
		if !r.quiet {
			t.Error("quiet should be true")
		}
	})

	t.Run("SetStatus", func(t *testing.T) {
		r := NewReporter(false)
		r.SetStatus("test status")
		if r.status != "test status" {
			t.Errorf("status = %q, want %q", r.status, "test status")
		}
	})

	t.Run("SetProgress", func(t *testing.T) {
		r := NewReporter(false)
		r.SetProgress(0.5, "50%")
		if r.progress != 0.5 {
			t.Errorf("progress = %f, want 0.5", r.progress)
		}
		if r.info != "50%" {
			t.Errorf("info = %q, want %q", r.info, "50%")
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		r := NewReporter(false)
		if r.IsCancelled() {
			t.Error("should not be cancelled initially")
		}
		r.Cancel()
		if !r.IsCancelled() {
			t.Error("should be cancelled after Cancel()")
		}
	})

	t.Run("QuietSuppressesUpdate", func(t *testing.T) {
		r := NewReporter(true)
		r.SetStatus("should not print")
		r.Update() // must not panic; output suppression isn't observable here
	})
}

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid parameter", errz.ErrInvalidParameter, 2},
		{"wrong password", errz.ErrWrongPassword, 3},
		{"bad signature", errz.ErrBadSignature, 4},
		{"malformed checkpoint", errz.ErrMalformedCheckpoint, 8},
		{"inconsistent accounting", errz.ErrInconsistentAccounting, 9},
		{"generic", errz.Wrap(errz.ErrCancelled, "context"), 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := exitCodeFor(c.err); got != c.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestAbsPaths(t *testing.T) {
	out := absPaths([]string{"a.txt", "b.txt"})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	for _, p := range out {
		if !strings.HasSuffix(p, ".txt") {
			t.Errorf("absPaths produced unexpected path: %q", p)
		}
	}
}
