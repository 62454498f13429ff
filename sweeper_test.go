package sessionkit

import (
	"context"
	"testing"
	"time"

	"github.com/resumeforge/sessionkit/session"
	"github.com/stretchr/testify/require"
)

func TestNewSweeperDisabledWhenIntervalZero(t *testing.T) {
	cfg := testConfig()
	cfg.Cleanup.Interval = 0
	h := newServiceHarness(t, cfg)

	w := NewSweeper(h.svc)
	require.Nil(t, w)

	// nil sweeper is inert
	w.Start(context.Background())
	w.Stop()
	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSweeperRunOnceReapsExpired(t *testing.T) {
	h := newServiceHarness(t, testConfig())
	ctx := context.Background()

	tokens, err := h.svc.CreateSession(ctx, "u1", session.Profile{})
	require.NoError(t, err)

	// logical expiry only; the store still holds the record
	h.clock.Advance(25 * time.Hour)
	require.True(t, h.mr.Exists("session:"+tokens.SessionID))

	w := NewSweeper(h.svc)
	require.NotNil(t, w)
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, h.mr.Exists("session:"+tokens.SessionID))
}

func TestSweeperLoopRunsOnInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Cleanup.Interval = 10 * time.Millisecond
	cfg.Cleanup.Timeout = time.Second
	h := newServiceHarness(t, cfg)
	ctx := context.Background()

	tokens, err := h.svc.CreateSession(ctx, "u1", session.Profile{})
	require.NoError(t, err)
	h.clock.Advance(25 * time.Hour)

	w := NewSweeper(h.svc)
	w.Start(ctx)
	w.Start(ctx)
	defer w.Stop()

	require.Eventually(t, func() bool {
		return !h.mr.Exists("session:" + tokens.SessionID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Cleanup.Interval = 5 * time.Millisecond
	h := newServiceHarness(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	w := NewSweeper(h.svc)
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

func TestSweeperStopWithoutStart(t *testing.T) {
	h := newServiceHarness(t, testConfig())
	w := NewSweeper(h.svc)
	w.Stop()
	w.Stop()
}
