package timer

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects callback invocations from the engine goroutine.
type recorder struct {
	mu        sync.Mutex
	ticks     []Remaining
	completes int
	completed chan struct{}
	doneAt    time.Time
}

func newRecorder() *recorder {
	return &recorder{completed: make(chan struct{})}
}

func (r *recorder) onTick(rem Remaining) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, rem)
}

func (r *recorder) onComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
	if r.completes == 1 {
		r.doneAt = time.Now()
		close(r.completed)
	}
}

func (r *recorder) snapshot() ([]Remaining, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Remaining(nil), r.ticks...), r.completes
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want Remaining
	}{
		{"zero", 0, Remaining{}},
		{"negative", -5000, Remaining{}},
		{"sub-second", 999, Remaining{}},
		{"one second", 1000, Remaining{Seconds: 1}},
		{"truncates", 61999, Remaining{Minutes: 1, Seconds: 1}},
		{"one hour", 3600 * 1000, Remaining{Hours: 1}},
		{"one day minus a second", 86399 * 1000, Remaining{Hours: 23, Minutes: 59, Seconds: 59}},
		{"mixed", (2*86400 + 3*3600 + 4*60 + 5) * 1000, Remaining{Days: 2, Hours: 3, Minutes: 4, Seconds: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decompose(tt.ms))
		})
	}
}

func TestDecompose_Identity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		ms := rng.Int63n(400 * 24 * 3600 * 1000)
		r := Decompose(ms)

		require.Equal(t, ms/1000, r.TotalSeconds(), "ms=%d", ms)
		require.True(t, r.Hours >= 0 && r.Hours < 24, "hours out of range for ms=%d", ms)
		require.True(t, r.Minutes >= 0 && r.Minutes < 60, "minutes out of range for ms=%d", ms)
		require.True(t, r.Seconds >= 0 && r.Seconds < 60, "seconds out of range for ms=%d", ms)
		require.True(t, r.Days >= 0)
	}
}

func TestRemaining_String(t *testing.T) {
	assert.Equal(t, "01d 02:03:04", Remaining{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}.String())
	assert.Equal(t, "00d 00:00:00", Remaining{}.String())
	assert.True(t, Remaining{}.IsZero())
}

func TestStart_PastTargetCompletesOnFirstTick(t *testing.T) {
	for _, target := range []time.Time{time.Now().Add(-time.Hour), time.Now()} {
		rec := newRecorder()
		h := Start(context.Background(), target, rec.onTick, rec.onComplete, WithInterval(10*time.Millisecond))

		select {
		case <-h.Done():
		case <-time.After(time.Second):
			t.Fatal("engine did not stop")
		}

		ticks, completes := rec.snapshot()
		assert.Equal(t, []Remaining{{}}, ticks)
		assert.Equal(t, 1, completes)
	}
}

func TestStart_FutureTargetCompletesOnce(t *testing.T) {
	const interval = 10 * time.Millisecond
	target := time.Now().Add(80 * time.Millisecond)

	rec := newRecorder()
	h := Start(context.Background(), target, rec.onTick, rec.onComplete, WithInterval(interval))
	defer h.Cancel()

	select {
	case <-rec.completed:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never completed")
	}
	<-h.Done()

	ticks, completes := rec.snapshot()
	assert.Equal(t, 1, completes)
	require.NotEmpty(t, ticks)
	assert.Equal(t, Remaining{}, ticks[len(ticks)-1])
	assert.False(t, rec.doneAt.Before(target), "completed before target")
	assert.Less(t, rec.doneAt.Sub(target), interval+100*time.Millisecond)
}

func TestStart_FakeClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	target := base.Add(26*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Millisecond)

	var step atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(step.Add(1)-1) * time.Hour)
	}

	rec := newRecorder()
	h := Start(context.Background(), target, rec.onTick, rec.onComplete,
		WithInterval(time.Millisecond), WithClock(clock))

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		h.Cancel()
		t.Fatal("engine did not finish")
	}

	ticks, completes := rec.snapshot()
	require.Len(t, ticks, 28)
	assert.Equal(t, Remaining{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}, ticks[0])
	assert.Equal(t, Remaining{Days: 1, Hours: 1, Minutes: 3, Seconds: 4}, ticks[1])
	assert.Equal(t, Remaining{Minutes: 3, Seconds: 4}, ticks[26])
	assert.Equal(t, Remaining{}, ticks[27])
	assert.Equal(t, 1, completes)
}

func TestHandle_CancelSilencesCallbacks(t *testing.T) {
	rec := newRecorder()
	firstTick := make(chan struct{})
	var once sync.Once

	h := Start(context.Background(), time.Now().Add(time.Hour), func(r Remaining) {
		rec.onTick(r)
		once.Do(func() { close(firstTick) })
	}, rec.onComplete, WithInterval(2*time.Millisecond))

	<-firstTick
	h.Cancel()
	before, _ := rec.snapshot()

	time.Sleep(50 * time.Millisecond)

	after, completes := rec.snapshot()
	assert.Equal(t, len(before), len(after))
	assert.Zero(t, completes)
}

func TestHandle_CancelAfterCompletionIsNoop(t *testing.T) {
	rec := newRecorder()
	h := Start(context.Background(), time.Now().Add(-time.Second), rec.onTick, rec.onComplete)
	<-h.Done()

	h.Cancel()
	h.Cancel()

	_, completes := rec.snapshot()
	assert.Equal(t, 1, completes)
}

func TestHandle_StopFromCallback(t *testing.T) {
	var h *Handle
	ready := make(chan struct{})
	var ticks atomic.Int32

	h = Start(context.Background(), time.Now().Add(time.Hour), func(Remaining) {
		<-ready
		ticks.Add(1)
		h.Stop()
	}, nil, WithInterval(time.Millisecond))
	close(ready)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop from callback did not halt the engine")
	}
	assert.Equal(t, int32(1), ticks.Load())
}

func TestStart_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder()
	h := Start(ctx, time.Now().Add(time.Hour), rec.onTick, rec.onComplete, WithInterval(time.Millisecond))

	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("context cancel did not halt the engine")
	}
	_, completes := rec.snapshot()
	assert.Zero(t, completes)
}
