package html2pdf

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// TestGenerate - Caller-side retries
// ---------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	t.Parallel()

	launch := fmt.Errorf("%w: exec: not found", ErrLaunchFailure)
	timeout := fmt.Errorf("%w: while printing", ErrRenderTimeout)
	badInput := invalid(ErrScaleOutOfRange, "9")
	upstream := fmt.Errorf("%w: 404", ErrUpstreamFetch)

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   []error
	}{
		{
			name:      "first attempt succeeds",
			wantCalls: 1,
		},
		{
			name:      "transient then success",
			errs:      []error{launch, timeout},
			wantCalls: 3,
		},
		{
			name:      "exhausted",
			errs:      []error{launch, launch, timeout},
			wantCalls: 3,
			wantErr:   []error{ErrRenderFailed, ErrRenderTimeout},
		},
		{
			name:      "invalid input is not retried",
			errs:      []error{badInput},
			wantCalls: 1,
			wantErr:   []error{ErrInvalidInput, ErrScaleOutOfRange},
		},
		{
			name:      "upstream error is not retried",
			errs:      []error{upstream},
			wantCalls: 1,
			wantErr:   []error{ErrUpstreamFetch},
		},
		{
			name:      "page load error is not retried",
			errs:      []error{fmt.Errorf("%w: net::ERR_NAME_NOT_RESOLVED", ErrPageLoad)},
			wantCalls: 1,
			wantErr:   []error{ErrPageLoad},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &mockRenderer{errs: tt.errs}
			policy := RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond}

			res, err := Generate(context.Background(), r, Request{}, policy)

			if r.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", r.calls, tt.wantCalls)
			}
			if len(tt.wantErr) == 0 {
				if err != nil || res == nil {
					t.Fatalf("Generate() = %v, %v", res, err)
				}
				return
			}
			if res != nil {
				t.Error("result returned with error")
			}
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("error = %v, want %v", err, want)
				}
			}
			if errors.Is(err, ErrRenderFailed) != errors.Is(tt.wantErr[0], ErrRenderFailed) {
				t.Errorf("ErrRenderFailed mismatch: %v", err)
			}
		})
	}
}

func TestGenerate_ContextCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	r := &mockRenderer{errs: []error{ErrLaunchFailure, ErrLaunchFailure, ErrLaunchFailure}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Generate(ctx, r, Request{}, RetryPolicy{MaxAttempts: 3, Interval: time.Hour})
	if !errors.Is(err, ErrRenderFailed) || !errors.Is(err, ErrLaunchFailure) {
		t.Errorf("error = %v, want ErrRenderFailed wrapping ErrLaunchFailure", err)
	}
	if r.calls != 1 {
		t.Errorf("calls = %d, want 1", r.calls)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	if p.MaxAttempts != 3 || p.Interval != time.Second {
		t.Errorf("DefaultRetryPolicy() = %+v", p)
	}
}
