// Package workspace tracks the per-request scratch directories that hold
// staged content while a browser session is alive.
//
// A Workspace is created for exactly one request and registered in a
// Registry while its session is alive. The Registry removes it synchronously
// when the session finishes cleanly (Release). A session that fails retires
// its workspace instead, and retired workspaces are reclaimed by bounded
// sweeps that run periodically (Sweep, RunJanitor). SweepAll also reclaims
// active workspaces and is meant for shutdown, once no session is left.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alnah/go-html2pdf/internal/fileutil"
	"github.com/alnah/go-html2pdf/internal/logging"
)

// dirPrefix names every workspace directory so stray ones are recognizable.
const dirPrefix = "html2pdf-"

// Sweep defaults.
const (
	DefaultSweepBackoff     = 2 * time.Second
	DefaultSweepMaxAttempts = 5
	DefaultSweepDeadline    = 30 * time.Second
)

// ErrNotRegistered is returned by Release for unknown ids.
var ErrNotRegistered = errors.New("workspace not registered")

// Workspace is the scratch directory of a single request.
type Workspace struct {
	ID  string
	Dir string
}

// New returns a workspace under root with a fresh id. Nothing is created on
// disk until Ensure is called. An empty root means os.TempDir().
func New(root string) *Workspace {
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	return &Workspace{
		ID:  id,
		Dir: filepath.Join(root, dirPrefix+id),
	}
}

// Ensure creates the directory if absent and checks it is writable.
func (w *Workspace) Ensure() error {
	return fileutil.EnsureWritableDir(w.Dir)
}

// SweepReport summarizes one Sweep call.
type SweepReport struct {
	Removed   []string
	Remaining []string
	Attempts  int
}

// entry is a registered workspace. Active entries belong to a session that
// may still be reading them.
type entry struct {
	path   string
	active bool
}

// Registry is a process-wide, mutex-guarded set of workspaces keyed by
// request id.
type Registry struct {
	mu     sync.Mutex
	paths  map[string]entry
	sweep  sync.Mutex // serializes Sweep calls
	remove func(string) error

	backoff     time.Duration
	maxAttempts int
	deadline    time.Duration
	logger      logrus.FieldLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithSweepBackoff sets the pause between sweep rounds.
func WithSweepBackoff(d time.Duration) Option {
	return func(r *Registry) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithSweepMaxAttempts bounds the number of deletion rounds per sweep.
func WithSweepMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithSweepDeadline bounds the wall-clock duration of a sweep.
func WithSweepDeadline(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.deadline = d
		}
	}
}

// WithLogger sets the logger used to report undeletable paths.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRemoveFunc replaces os.RemoveAll. Used by tests to simulate paths
// that cannot be deleted.
func WithRemoveFunc(fn func(string) error) Option {
	return func(r *Registry) {
		if fn != nil {
			r.remove = fn
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		paths:       make(map[string]entry),
		remove:      os.RemoveAll,
		backoff:     DefaultSweepBackoff,
		maxAttempts: DefaultSweepMaxAttempts,
		deadline:    DefaultSweepDeadline,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records the workspace as in use. Sweep leaves it alone until
// Retire is called; Release removes it at any time.
func (r *Registry) Register(w *Workspace) {
	r.mu.Lock()
	r.paths[w.ID] = entry{path: w.Dir, active: true}
	r.mu.Unlock()
}

// Retire marks the workspace as no longer in use so the next Sweep reclaims
// it. Unknown ids are ignored.
func (r *Registry) Retire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.paths[id]; ok {
		e.active = false
		r.paths[id] = e
	}
}

// Release removes the workspace's files now. On failure the workspace stays
// registered and the next sweep retries it.
func (r *Registry) Release(id string) error {
	r.mu.Lock()
	e, ok := r.paths[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	path := e.path

	if err := r.remove(path); err != nil {
		r.Retire(id)
		return fmt.Errorf("removing workspace %s: %w", path, err)
	}
	r.forget(id, path)
	return nil
}

// Len returns the number of registered workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paths[id]
	return ok
}

// Sweep tries to delete every retired workspace. Failed deletions are
// retried after the backoff, up to the attempt limit or the deadline,
// whichever comes first. Paths still present afterwards are logged and stay
// registered for the next sweep. Active workspaces are skipped.
func (r *Registry) Sweep(ctx context.Context) SweepReport {
	return r.sweepPending(ctx, false)
}

// SweepAll is Sweep including active workspaces. Call it only when no
// session can still be using them, such as after shutdown.
func (r *Registry) SweepAll(ctx context.Context) SweepReport {
	return r.sweepPending(ctx, true)
}

func (r *Registry) sweepPending(ctx context.Context, all bool) SweepReport {
	r.sweep.Lock()
	defer r.sweep.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	pending := r.snapshot(all)
	var report SweepReport

	for len(pending) > 0 && report.Attempts < r.maxAttempts {
		report.Attempts++

		for id, path := range pending {
			if err := r.remove(path); err != nil {
				r.logger.WithFields(logrus.Fields{
					"path":    path,
					"attempt": report.Attempts,
				}).WithError(err).Debug("workspace removal failed")
				continue
			}
			r.forget(id, path)
			delete(pending, id)
			report.Removed = append(report.Removed, path)
		}

		if len(pending) == 0 || report.Attempts == r.maxAttempts {
			break
		}
		if !sleep(ctx, r.backoff) {
			break
		}
	}

	for _, path := range pending {
		report.Remaining = append(report.Remaining, path)
	}
	sort.Strings(report.Removed)
	sort.Strings(report.Remaining)

	for _, path := range report.Remaining {
		r.logger.WithFields(logrus.Fields{
			"path":     path,
			"attempts": report.Attempts,
		}).Warn("workspace could not be removed, keeping it for the next sweep")
	}

	return report
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.Len() > 0 {
				r.Sweep(ctx)
			}
		}
	}
}

// snapshot returns id -> path for the workspaces a sweep may delete.
func (r *Registry) snapshot(all bool) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.paths))
	for id, e := range r.paths {
		if e.active && !all {
			continue
		}
		out[id] = e.path
	}
	return out
}

// forget drops id unless it was re-registered with a different path meanwhile.
func (r *Registry) forget(id, path string) {
	r.mu.Lock()
	if e, ok := r.paths[id]; ok && e.path == path {
		delete(r.paths, id)
	}
	r.mu.Unlock()
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
