package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"countdown.share/internal/models"
	"countdown.share/internal/share"
	"countdown.share/internal/store"
)

type testCLI struct {
	*cli
	clock time.Time
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	t.Setenv("COUNTDOWN_DB", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("BASE_URL", "http://countdown.test")
	t.Setenv("STORE_TYPE", "memory")
	t.Setenv("LOG_LEVEL", "error")

	tc := &testCLI{clock: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore(0, 0)
	t.Cleanup(func() { _ = st.Close() })

	tc.cli = &cli{
		now:      func() time.Time { return tc.clock },
		interval: 5 * time.Millisecond,
	}
	svc := share.NewService(st, share.Config{Now: tc.cli.now})
	tc.sharer = func(context.Context) (share.Sharer, func(), error) {
		return svc, func() {}, nil
	}
	return tc
}

func (tc *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := tc.rootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestStartAndResume(t *testing.T) {
	tc := newTestCLI(t)

	out, err := tc.run(t, "start", "--name", "Launch", "--at", "2026-10-19T13:00:00Z", "--detach")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved countdown to Launch")

	tc.clock = tc.clock.Add(2 * time.Hour)
	out, err = tc.run(t, "resume")
	require.NoError(t, err)
	assert.Contains(t, out, "Launch\n")
	assert.Contains(t, out, "00d 00:00:00")
	assert.True(t, strings.HasSuffix(out, "Woohoo! Countdown to Launch has ended!\n"))
}

func TestStartRejectsPast(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "start", "--name", "Launch", "--at", "2020-01-01T00:00:00Z", "--detach")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStartRejectsUnreadableDate(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "start", "--name", "Launch", "--at", "next tuesday", "--detach")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestResumeWithoutCountdown(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "resume")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no countdown saved")
}

func TestShareThenShow(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "start", "--name", "Party", "--at", "2026-10-20T00:00:00Z", "--message", "Let's go", "--detach")
	require.NoError(t, err)

	out, err := tc.run(t, "share")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "http://countdown.test/shared/"))
	assert.Equal(t, "Expires 2026-11-18T12:00:00Z", lines[1])

	shareID := strings.TrimPrefix(lines[0], "http://countdown.test/shared/")

	tc.clock = time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	out, err = tc.run(t, "show", shareID)
	require.NoError(t, err)
	assert.Contains(t, out, "Party\n")
	assert.True(t, strings.HasSuffix(out, "Let's go\n"))
}

func TestShowOutcomes(t *testing.T) {
	tc := newTestCLI(t)

	_, err := tc.run(t, "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")

	_, err = tc.run(t, "start", "--name", "Party", "--at", "2026-10-20T00:00:00Z", "--detach")
	require.NoError(t, err)
	out, err := tc.run(t, "share")
	require.NoError(t, err)
	shareID := strings.TrimPrefix(strings.Split(out, "\n")[0], "http://countdown.test/shared/")

	tc.clock = tc.clock.Add(31 * 24 * time.Hour)
	_, err = tc.run(t, "show", shareID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestShareUnconfigured(t *testing.T) {
	tc := newTestCLI(t)
	tc.sharer = tc.openSharer

	_, err := tc.run(t, "start", "--name", "Party", "--at", "2026-10-20T00:00:00Z", "--detach")
	require.NoError(t, err)

	_, err = tc.run(t, "share")
	assert.ErrorIs(t, err, share.ErrRemoteUnavailable)
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-01-02T03:04:05Z", time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2030-01-02T03:04:05.5+02:00", time.Date(2030, 1, 2, 1, 4, 5, 500_000_000, time.UTC)},
		{"2030-01-02 03:04", time.Date(2030, 1, 2, 3, 4, 0, 0, time.Local)},
		{" 2030-01-02T03:04 ", time.Date(2030, 1, 2, 3, 4, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseInstant(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}
