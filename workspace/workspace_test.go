package workspace

// Notes:
// - Undeletable paths are simulated with WithRemoveFunc; chmod tricks do not
//   work when tests run as root.
// - goleak guards RunJanitor and the sweep timers.
// - Sweep only reclaims retired workspaces, so most cases go through
//   registerRetired.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestWorkspace(t *testing.T, root string) *Workspace {
	t.Helper()

	w := New(root)
	if err := w.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, "page.html"), []byte("<p>x</p>"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return w
}

// registerRetired registers w as if its session had already failed.
func registerRetired(r *Registry, w *Workspace) {
	r.Register(w)
	r.Retire(w.ID)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ---------------------------------------------------------------------------
// TestNew - Workspace naming
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := New(root)
	b := New(root)

	if a.ID == b.ID {
		t.Error("expected unique ids")
	}
	if filepath.Dir(a.Dir) != root {
		t.Errorf("Dir = %q, want parent %q", a.Dir, root)
	}
	if !strings.HasPrefix(filepath.Base(a.Dir), dirPrefix) {
		t.Errorf("Dir = %q, want prefix %q", a.Dir, dirPrefix)
	}
	if exists(a.Dir) {
		t.Error("New() should not touch the filesystem")
	}
}

func TestNew_EmptyRootUsesTempDir(t *testing.T) {
	t.Parallel()

	w := New("")
	if filepath.Dir(w.Dir) != filepath.Clean(os.TempDir()) {
		t.Errorf("Dir = %q, want under %q", w.Dir, os.TempDir())
	}
}

// ---------------------------------------------------------------------------
// TestRegistry_Release - Synchronous removal
// ---------------------------------------------------------------------------

func TestRegistry_Release(t *testing.T) {
	t.Parallel()

	t.Run("removes files and unregisters", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		w := newTestWorkspace(t, t.TempDir())
		r.Register(w)

		if err := r.Release(w.ID); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if exists(w.Dir) {
			t.Error("workspace directory still exists")
		}
		if r.Has(w.ID) {
			t.Error("workspace still registered")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		err := r.Release("nope")
		if !errors.Is(err, ErrNotRegistered) {
			t.Errorf("Release() error = %v, want %v", err, ErrNotRegistered)
		}
	})

	t.Run("failed removal keeps registration", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("busy")
		r := NewRegistry(
			WithRemoveFunc(func(string) error { return boom }),
			WithSweepMaxAttempts(1),
		)
		w := New(t.TempDir())
		r.Register(w)

		err := r.Release(w.ID)
		if !errors.Is(err, boom) {
			t.Errorf("Release() error = %v, want %v", err, boom)
		}
		if !r.Has(w.ID) {
			t.Error("workspace should stay registered for the next sweep")
		}
		// A failed Release hands the workspace over to the sweep.
		if report := r.Sweep(context.Background()); len(report.Remaining) != 1 {
			t.Errorf("Sweep() Remaining = %v, want the unreleased workspace", report.Remaining)
		}
	})

	t.Run("already gone counts as released", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		w := New(t.TempDir())
		r.Register(w)

		if err := r.Release(w.ID); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if r.Len() != 0 {
			t.Errorf("Len() = %d, want 0", r.Len())
		}
	})
}

// ---------------------------------------------------------------------------
// TestRegistry_Sweep - Bounded retries
// ---------------------------------------------------------------------------

func TestRegistry_Sweep_BoundedWithUndeletablePath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	good1 := newTestWorkspace(t, root)
	good2 := newTestWorkspace(t, root)
	bad := newTestWorkspace(t, root)

	var badCalls atomic.Int32
	remove := func(path string) error {
		if path == bad.Dir {
			badCalls.Add(1)
			return os.ErrPermission
		}
		return os.RemoveAll(path)
	}

	r := NewRegistry(
		WithRemoveFunc(remove),
		WithSweepMaxAttempts(3),
		WithSweepBackoff(time.Millisecond),
	)
	registerRetired(r, good1)
	registerRetired(r, good2)
	registerRetired(r, bad)

	report := r.Sweep(context.Background())

	if report.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", report.Attempts)
	}
	if got := badCalls.Load(); got != 3 {
		t.Errorf("undeletable path tried %d times, want 3", got)
	}
	if len(report.Removed) != 2 {
		t.Errorf("Removed = %v, want 2 paths", report.Removed)
	}
	if len(report.Remaining) != 1 || report.Remaining[0] != bad.Dir {
		t.Errorf("Remaining = %v, want [%s]", report.Remaining, bad.Dir)
	}
	if exists(good1.Dir) || exists(good2.Dir) {
		t.Error("deletable workspaces still on disk")
	}
	if !r.Has(bad.ID) || r.Len() != 1 {
		t.Errorf("expected only the undeletable workspace to stay registered, Len() = %d", r.Len())
	}
}

func TestRegistry_Sweep_DeadlineStopsRetries(t *testing.T) {
	t.Parallel()

	r := NewRegistry(
		WithRemoveFunc(func(string) error { return os.ErrPermission }),
		WithSweepMaxAttempts(1000),
		WithSweepBackoff(50*time.Millisecond),
		WithSweepDeadline(120*time.Millisecond),
	)
	registerRetired(r, New(t.TempDir()))

	start := time.Now()
	report := r.Sweep(context.Background())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("sweep took %v, deadline not honored", elapsed)
	}
	if report.Attempts >= 1000 {
		t.Errorf("Attempts = %d, expected the deadline to stop the loop", report.Attempts)
	}
	if len(report.Remaining) != 1 {
		t.Errorf("Remaining = %v, want 1 path", report.Remaining)
	}
}

func TestRegistry_Sweep_TransientFailureRecovers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	remove := func(path string) error {
		if calls.Add(1) == 1 {
			return errors.New("text file busy")
		}
		return os.RemoveAll(path)
	}

	r := NewRegistry(WithRemoveFunc(remove), WithSweepBackoff(time.Millisecond))
	w := newTestWorkspace(t, t.TempDir())
	registerRetired(r, w)

	report := r.Sweep(context.Background())

	if report.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", report.Attempts)
	}
	if len(report.Remaining) != 0 {
		t.Errorf("Remaining = %v, want none", report.Remaining)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_Sweep_SkipsActive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	live := newTestWorkspace(t, root)
	done := newTestWorkspace(t, root)

	r := NewRegistry(WithSweepBackoff(time.Millisecond))
	r.Register(live)
	registerRetired(r, done)

	report := r.Sweep(context.Background())

	if len(report.Removed) != 1 || report.Removed[0] != done.Dir {
		t.Errorf("Removed = %v, want [%s]", report.Removed, done.Dir)
	}
	if !exists(filepath.Join(live.Dir, "page.html")) {
		t.Error("sweep deleted the files of an active workspace")
	}
	if !r.Has(live.ID) {
		t.Error("active workspace unregistered by sweep")
	}
	if err := r.Release(live.ID); err != nil {
		t.Errorf("Release() after sweep error = %v", err)
	}
}

func TestRegistry_Retire(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithSweepBackoff(time.Millisecond))
	w := newTestWorkspace(t, t.TempDir())
	r.Register(w)

	if report := r.Sweep(context.Background()); report.Attempts != 0 {
		t.Errorf("Sweep() before Retire = %+v, want no attempt", report)
	}

	r.Retire(w.ID)
	r.Retire("unknown")

	if report := r.Sweep(context.Background()); len(report.Removed) != 1 {
		t.Errorf("Sweep() after Retire = %+v, want 1 removal", report)
	}
	if exists(w.Dir) || r.Len() != 0 {
		t.Error("retired workspace not reclaimed")
	}
}

func TestRegistry_SweepAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	live := newTestWorkspace(t, root)
	done := newTestWorkspace(t, root)

	r := NewRegistry(WithSweepBackoff(time.Millisecond))
	r.Register(live)
	registerRetired(r, done)

	report := r.SweepAll(context.Background())

	if len(report.Removed) != 2 || len(report.Remaining) != 0 {
		t.Errorf("SweepAll() = %+v, want both removed", report)
	}
	if exists(live.Dir) || exists(done.Dir) || r.Len() != 0 {
		t.Error("SweepAll left workspaces behind")
	}
}

func TestRegistry_Sweep_Empty(t *testing.T) {
	t.Parallel()

	report := NewRegistry().Sweep(context.Background())
	if report.Attempts != 0 || len(report.Removed) != 0 || len(report.Remaining) != 0 {
		t.Errorf("unexpected report for empty registry: %+v", report)
	}
}

// ---------------------------------------------------------------------------
// TestRegistry_Concurrent - Shared set under concurrent access
// ---------------------------------------------------------------------------

func TestRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithSweepBackoff(time.Millisecond))
	root := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := New(root)
			if err := w.Ensure(); err != nil {
				t.Errorf("Ensure() error = %v", err)
				return
			}
			r.Register(w)
			if i%2 == 0 {
				_ = r.Release(w.ID)
			} else {
				r.Retire(w.ID)
			}
		}()
	}
	wg.Wait()

	r.Sweep(context.Background())
	if r.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", r.Len())
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty root, got %d entries", len(entries))
	}
}

// ---------------------------------------------------------------------------
// TestRegistry_RunJanitor - Periodic sweeping
// ---------------------------------------------------------------------------

func TestRegistry_RunJanitor(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithSweepBackoff(time.Millisecond))
	w := newTestWorkspace(t, t.TempDir())
	registerRetired(r, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for r.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not sweep in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if exists(w.Dir) {
		t.Error("janitor left the workspace on disk")
	}
}
