package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alnah/go-html2pdf/workspace"
)

// renderState is a step of a single render.
type renderState string

const (
	stateIdle              renderState = "idle"
	stateStaging           renderState = "staging"
	stateLaunching         renderState = "launching"
	stateNavigating        renderState = "navigating"
	stateAwaitingLoad      renderState = "awaiting_load"
	stateAwaitingLifecycle renderState = "awaiting_lifecycle"
	statePrinting          renderState = "printing"
	stateDone              renderState = "done"
	stateFailed            renderState = "failed"
)

// renderJob is one validated request ready to render.
type renderJob struct {
	id      string
	source  Source
	options PrintOptions
}

// renderer drives one job through a browser session. It holds configuration
// only; every call to render is independent.
type renderer struct {
	launcher      browserLauncher
	registry      *workspace.Registry
	workspaceRoot string
	logger        logrus.FieldLogger
}

// render produces PDF bytes or an error, never both. The session is torn
// down exactly once on every path. A workspace is released only after a
// clean run; on failure it is retired once the session is gone, and the
// next sweep removes it.
func (r *renderer) render(ctx context.Context, job renderJob) (pdf []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, job.options.Timeout)
	defer cancel()

	log := r.logger.WithField("request_id", job.id)
	state := stateIdle
	transition := func(next renderState) {
		log.WithFields(logrus.Fields{"from": state, "state": next}).Debug("render state")
		state = next
	}
	fail := func(sentinel, cause error) error {
		at := state
		transition(stateFailed)
		return classify(ctx, at, sentinel, cause)
	}

	started := time.Now()
	defer func() {
		if err != nil {
			log.WithError(err).Warn("render failed")
			return
		}
		log.WithFields(logrus.Fields{
			"bytes":    len(pdf),
			"duration": time.Since(started).Round(time.Millisecond),
		}).Info("render done")
	}()

	// Staging
	target := job.source.URL
	var ws *workspace.Workspace
	if job.source.needsStaging() {
		transition(stateStaging)
		ws = workspace.New(r.workspaceRoot)
		r.registry.Register(ws)
		// Deferred before teardown, so it runs after the browser is closed.
		defer func() {
			if err != nil {
				r.registry.Retire(ws.ID)
			}
		}()
		if target, err = stageContent(job.source, ws); err != nil {
			transition(stateFailed)
			return nil, err
		}
		log.WithField("path", ws.Dir).Debug("content staged")
	}

	// Session
	transition(stateLaunching)
	session, err := r.launcher.Launch(ctx, job.source.Relaxed())
	if err != nil {
		return nil, fail(ErrLaunchFailure, err)
	}

	var page browserPage
	teardown := sync.OnceFunc(func() {
		if page != nil {
			if cerr := page.Close(); cerr != nil {
				log.WithError(cerr).Debug("page close")
			}
		}
		if cerr := session.Close(); cerr != nil {
			log.WithError(cerr).Debug("session close")
		}
	})
	defer teardown()

	if page, err = session.OpenPage(ctx); err != nil {
		return nil, fail(ErrSessionUnavailable, err)
	}

	setup := pageSetup{
		DisableScripts: job.options.DisableScriptExecution,
		EmulateMedia:   job.options.EmulateMedia,
	}
	if err := page.Configure(ctx, setup); err != nil {
		return nil, fail(ErrPageLoad, err)
	}

	// Navigation
	transition(stateNavigating)
	if err := page.Navigate(ctx, target, job.options.WaitForLifecycleEvent); err != nil {
		return nil, fail(ErrPageLoad, err)
	}

	transition(stateAwaitingLoad)
	if err := page.WaitLoad(ctx); err != nil {
		return nil, fail(ErrPageLoad, err)
	}

	if job.options.WaitForLifecycleEvent != "" {
		transition(stateAwaitingLifecycle)
		if err := page.WaitLifecycle(ctx); err != nil {
			return nil, fail(ErrPageLoad, err)
		}
	}

	// Printing
	transition(statePrinting)
	out, err := page.Print(ctx, buildPrintCommand(job.options))
	if err != nil {
		return nil, fail(ErrPDFGeneration, err)
	}
	if len(out) == 0 {
		return nil, fail(ErrPDFGeneration, errors.New("empty document"))
	}

	// The browser must let go of staged files before they are removed.
	teardown()
	transition(stateDone)

	if ws != nil {
		if err := r.registry.Release(ws.ID); err != nil {
			log.WithError(err).WithField("path", ws.Dir).Warn("workspace left for sweep")
		}
	}
	return out, nil
}

// classify maps a failure to its sentinel. An expired budget is always a
// timeout, whatever step noticed it.
func classify(ctx context.Context, state renderState, sentinel, cause error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: while %s: %v", ErrRenderTimeout, state, cause)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", state, context.Canceled)
	case errors.Is(cause, sentinel):
		return cause
	default:
		return fmt.Errorf("%w: %v", sentinel, cause)
	}
}
