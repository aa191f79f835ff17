package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type expirer struct {
	at  time.Time
	n   int64
	err error
}

func (e *expirer) ExpireLapsedInvitations(_ context.Context, now time.Time) (int64, error) {
	e.at = now
	return e.n, e.err
}

func TestInvitationSweep(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.FixedZone("x", 3600))
	store := &expirer{n: 3}
	job := InvitationSweep(store, discard(), func() time.Time { return fixed })

	require.NoError(t, job(context.Background()))
	require.Equal(t, fixed.UTC(), store.at)

	store.err = errors.New("db down")
	require.Error(t, job(context.Background()))
}

type pending int64

func (p pending) Pending(context.Context) (int64, error) { return int64(p), nil }

func TestOutboxBacklogGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := OutboxBacklog(pending(7), reg)
	require.NoError(t, job(context.Background()))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	require.Equal(t, "vetcare_outbox_pending_events", mfs[0].GetName())
	require.Equal(t, 7.0, mfs[0].GetMetric()[0].GetGauge().GetValue())
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := NewRunner(discard(), time.Second)
	require.Error(t, r.Add("bad", "not a spec", func(context.Context) error { return nil }))
}

func TestRunnerRunsJobs(t *testing.T) {
	r := NewRunner(discard(), time.Second)
	var calls atomic.Int32
	require.NoError(t, r.Add("tick", "@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}
