package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/alnah/go-html2pdf/internal/logging"
)

// Renderer is anything that converts a request once. *Converter implements it.
type Renderer interface {
	Convert(ctx context.Context, req Request) (*Result, error)
}

var _ Renderer = (*Converter)(nil)

// RetryPolicy controls Generate.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	Interval    time.Duration // wait after the first failure, doubled after each next one
	Logger      logrus.FieldLogger
}

// DefaultRetryPolicy makes 3 attempts, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Interval: time.Second}
}

// Generate converts req, retrying transient failures (see IsTransient) with
// a fresh session each time. Invalid input and upstream errors are returned
// as is after a single attempt. When every attempt fails the error wraps
// ErrRenderFailed and the last cause.
func Generate(ctx context.Context, r Renderer, req Request, policy RetryPolicy) (*Result, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	log := policy.Logger
	if log == nil {
		log = logging.Discard()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.Interval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = policy.Interval << policy.MaxAttempts
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx)

	attempt := 0
	var last error
	result, err := backoff.RetryNotifyWithData(func() (*Result, error) {
		attempt++
		res, err := r.Convert(ctx, req)
		if err == nil {
			return res, nil
		}
		last = err
		if !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, b, func(err error, wait time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait,
		}).Warn("render attempt failed, retrying")
	})
	if err == nil {
		return result, nil
	}

	if !IsTransient(last) {
		return nil, err
	}
	if last != err {
		// Interrupted while waiting between attempts.
		return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrRenderFailed, attempt, errors.Join(err, last))
	}
	return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrRenderFailed, attempt, err)
}
