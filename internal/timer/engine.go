// Package timer drives a countdown toward a target instant.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the tick cadence of a countdown.
const DefaultInterval = time.Second

const (
	msPerSecond = 1000
	secPerMin   = 60
	secPerHour  = 60 * secPerMin
	secPerDay   = 24 * secPerHour
)

// Remaining is a non-negative duration split into calendar-free units.
type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Decompose splits a millisecond remainder into whole days, hours within the
// day, minutes within the hour and seconds within the minute. Sub-second
// remainders are truncated; non-positive input yields the zero value.
func Decompose(ms int64) Remaining {
	if ms <= 0 {
		return Remaining{}
	}
	total := ms / msPerSecond
	return Remaining{
		Days:    total / secPerDay,
		Hours:   total % secPerDay / secPerHour,
		Minutes: total % secPerHour / secPerMin,
		Seconds: total % secPerMin,
	}
}

// TotalSeconds folds the units back into seconds.
func (r Remaining) TotalSeconds() int64 {
	return r.Days*secPerDay + r.Hours*secPerHour + r.Minutes*secPerMin + r.Seconds
}

// IsZero reports whether nothing remains.
func (r Remaining) IsZero() bool {
	return r == Remaining{}
}

func (r Remaining) String() string {
	return fmt.Sprintf("%02dd %02d:%02d:%02d", r.Days, r.Hours, r.Minutes, r.Seconds)
}

// TickFunc receives the remaining time on every tick.
type TickFunc func(Remaining)

type options struct {
	interval time.Duration
	now      func() time.Time
}

// Option tunes an engine started with Start.
type Option func(*options)

// WithInterval overrides the tick cadence.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Handle controls a running countdown.
type Handle struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start evaluates the countdown immediately and then on every interval until
// the target is reached, the handle is stopped or ctx is cancelled.
//
// While time remains, onTick receives the decomposed remainder. Once the
// target is reached, onTick receives the zero Remaining, onComplete runs
// exactly once and the engine stops. A target already in the past completes
// on the first evaluation. Callbacks run on the engine goroutine, one at a
// time. Either callback may be nil.
func Start(ctx context.Context, target time.Time, onTick TickFunc, onComplete func(), opts ...Option) *Handle {
	o := options{interval: DefaultInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go h.run(ctx, target, onTick, onComplete, o)
	return h
}

// Stop asks the engine to halt without waiting for it. It is safe to call
// from inside a callback and more than once.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Cancel stops the engine and waits until it has exited. Once Cancel returns
// no callback is running and none will run again. Cancel after completion is
// a no-op. Calling Cancel from inside a callback deadlocks; use Stop there.
func (h *Handle) Cancel() {
	h.Stop()
	<-h.done
}

// Done is closed once the engine goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) run(ctx context.Context, target time.Time, onTick TickFunc, onComplete func(), o options) {
	defer close(h.done)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if h.halted(ctx) {
			return
		}
		if h.evaluate(ctx, target, onTick, onComplete, o.now()) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
		}
	}
}

// evaluate performs one tick and reports whether the countdown completed.
func (h *Handle) evaluate(ctx context.Context, target time.Time, onTick TickFunc, onComplete func(), now time.Time) bool {
	ms := target.Sub(now).Milliseconds()
	if ms > 0 {
		if onTick != nil {
			onTick(Decompose(ms))
		}
		return false
	}

	if onTick != nil {
		onTick(Remaining{})
	}
	if h.halted(ctx) {
		return true
	}
	if onComplete != nil {
		onComplete()
	}
	return true
}

func (h *Handle) halted(ctx context.Context) bool {
	select {
	case <-h.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
