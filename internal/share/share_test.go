package share

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countdown.share/internal/models"
	"countdown.share/internal/store"
)

// stubStore fails every call with err.
type stubStore struct {
	err     error
	creates int
}

func (s *stubStore) Create(context.Context, *models.SharedCountdown) error {
	s.creates++
	return s.err
}

func (s *stubStore) Get(context.Context, string) (*models.SharedCountdown, error) {
	return nil, s.err
}

func (s *stubStore) Ping(context.Context) error { return s.err }
func (s *stubStore) Close() error               { return nil }

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestService_ShareThenResolve(t *testing.T) {
	st := store.NewMemoryStore(0, 0)
	defer st.Close()
	svc := NewService(st, Config{})
	ctx := context.Background()

	spec := models.NewCountdownSpec("Launch", time.Now().Add(48*time.Hour), "")
	before := time.Now()
	shared, err := svc.Share(ctx, spec)
	require.NoError(t, err)
	require.NotEmpty(t, shared.ShareID)

	got, err := svc.Resolve(ctx, shared.ShareID)
	require.NoError(t, err)
	assert.Equal(t, spec.Name, got.Name)
	assert.True(t, got.Target.Equal(spec.Target))
	assert.Equal(t, spec.EndMessage, got.EndMessage)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), got.ExpiresAt, 5*time.Second)
}

func TestService_ExactExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore(0, 0)
	defer st.Close()
	svc := NewService(st, Config{Now: func() time.Time { return now }})

	shared, err := svc.Share(context.Background(), models.NewCountdownSpec("x", now.Add(time.Hour), ""))
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), shared.ExpiresAt)
	assert.Equal(t, now, shared.CreatedAt)
}

func TestService_ResolveNeverShared(t *testing.T) {
	st := store.NewMemoryStore(0, 0)
	defer st.Close()
	svc := NewService(st, Config{})

	_, err := svc.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ResolveExpired(t *testing.T) {
	st := store.NewMemoryStore(0, 0)
	defer st.Close()
	ctx := context.Background()

	clock := time.Now()
	svc := NewService(st, Config{Now: func() time.Time { return clock }})
	shared, err := svc.Share(ctx, models.NewCountdownSpec("x", clock.Add(time.Hour), ""))
	require.NoError(t, err)

	clock = clock.Add(31 * 24 * time.Hour)
	_, err = svc.Resolve(ctx, shared.ShareID)
	assert.ErrorIs(t, err, ErrExpired)

	raw, err := st.Get(ctx, shared.ShareID)
	require.NoError(t, err, "expired record must still exist")
	assert.Equal(t, shared.ShareID, raw.ShareID)
}

func TestService_CollisionRetries(t *testing.T) {
	st := store.NewMemoryStore(0, 0)
	defer st.Close()
	ctx := context.Background()
	spec := models.NewCountdownSpec("x", time.Now().Add(time.Hour), "")

	svc := NewService(st, Config{NewID: sequence("aaa", "aaa", "bbb")})
	first, err := svc.Share(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "aaa", first.ShareID)

	second, err := svc.Share(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, "bbb", second.ShareID)

	stuck := NewService(st, Config{NewID: sequence("aaa")})
	_, err = stuck.Share(ctx, spec)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestService_RemoteFailures(t *testing.T) {
	stub := &stubStore{err: errors.New("dial tcp: connection refused")}
	svc := NewService(stub, Config{})
	ctx := context.Background()

	_, err := svc.Share(ctx, models.NewCountdownSpec("x", time.Now().Add(time.Hour), ""))
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, 1, stub.creates, "transport failures are not retried")

	_, err = svc.Resolve(ctx, "abc")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestService_DuplicateIsInvariantViolation(t *testing.T) {
	svc := NewService(&stubStore{err: store.ErrDuplicate}, Config{})
	_, err := svc.Resolve(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestService_ShareRejectsIncompleteSpec(t *testing.T) {
	stub := &stubStore{}
	svc := NewService(stub, Config{})

	_, err := svc.Share(context.Background(), models.CountdownSpec{Name: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, stub.creates)
}

func TestService_Timeout(t *testing.T) {
	svc := NewService(&blockingStore{}, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := svc.Resolve(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

type blockingStore struct{ stubStore }

func (blockingStore) Get(ctx context.Context, _ string) (*models.SharedCountdown, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestUnconfigured(t *testing.T) {
	var s Sharer = Unconfigured{Reason: "REMOTE_URL is not set"}

	_, err := s.Share(context.Background(), models.NewCountdownSpec("x", time.Now().Add(time.Hour), ""))
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "REMOTE_URL")

	_, err = s.Resolve(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	_, err = Unconfigured{}.Resolve(context.Background(), "abc")
	assert.Equal(t, ErrRemoteUnavailable, err)
}

func TestClassify(t *testing.T) {
	c := &models.SharedCountdown{ShareID: "x"}

	assert.Equal(t, Ready{Countdown: c}, Classify(c, nil))
	assert.Equal(t, NotFound{}, Classify(nil, ErrNotFound))
	assert.Equal(t, Expired{}, Classify(nil, ErrExpired))
	assert.IsType(t, Broken{}, Classify(nil, ErrInvariant))
	assert.IsType(t, TransportError{}, Classify(nil, Unconfigured{}.err()))
	assert.IsType(t, TransportError{}, Classify(nil, errors.New("boom")))
}
