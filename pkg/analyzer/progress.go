package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc is called after each file: current files done out of total,
// and the path just finished.
type ProgressFunc func(current, total int, path string)

// Tracker counts finished and failed files. It is safe for concurrent use.
type Tracker struct {
	total    atomic.Int32
	current  atomic.Int32
	failed   atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a tracker that invokes callback on every Tick and Fail.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected file count by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int32(n))
}

// SetTotal replaces the expected file count.
func (t *Tracker) SetTotal(n int) {
	t.total.Store(int32(n))
}

// Tick marks path as done.
func (t *Tracker) Tick(path string) {
	current := int(t.current.Add(1))
	if t.callback != nil {
		t.callback(current, int(t.total.Load()), path)
	}
}

// Fail marks path as done without a result.
func (t *Tracker) Fail(path string) {
	t.failed.Add(1)
	t.Tick(path)
}

// Current returns the number of files done, failed ones included.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Failed returns the number of files marked with Fail.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

// Total returns the expected file count.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context carrying t.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
