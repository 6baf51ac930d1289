package ohlcv

import (
	"context"
	"time"
)

// DeadlineSource bounds every Slab call with its own timeout so one slow
// upstream fetch cannot stall a whole dialog turn.
type DeadlineSource struct {
	inner   Source
	timeout time.Duration
}

// NewDeadlineSource wraps inner with a per-call deadline. A non-positive
// timeout disables the bound.
func NewDeadlineSource(inner Source, timeout time.Duration) *DeadlineSource {
	return &DeadlineSource{inner: inner, timeout: timeout}
}

// Name returns the source name.
func (d *DeadlineSource) Name() string {
	return d.inner.Name()
}

// Slab implements Source.
func (d *DeadlineSource) Slab(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.inner.Slab(ctx, tickers, start, end)
}
