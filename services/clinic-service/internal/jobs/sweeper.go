package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type InvitationExpirer interface {
	ExpireLapsedInvitations(ctx context.Context, now time.Time) (int64, error)
}

// InvitationSweep marks pending invitations past their deadline as EXPIRED.
func InvitationSweep(store InvitationExpirer, logger *slog.Logger, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		n, err := store.ExpireLapsedInvitations(ctx, now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("invitations expired", "count", n)
		}
		return nil
	}
}

type PendingCounter interface {
	Pending(ctx context.Context) (int64, error)
}

// OutboxBacklog publishes the number of unpublished outbox rows as a gauge.
func OutboxBacklog(store PendingCounter, reg prometheus.Registerer) Job {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vetcare",
		Name:      "outbox_pending_events",
		Help:      "Outbox events not yet published to Kafka.",
	})
	if reg != nil {
		reg.MustRegister(gauge)
	}
	return func(ctx context.Context) error {
		n, err := store.Pending(ctx)
		if err != nil {
			return err
		}
		gauge.Set(float64(n))
		return nil
	}
}
