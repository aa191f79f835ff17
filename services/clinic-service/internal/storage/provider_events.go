package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ProviderEvent identifies one delivery from a payment provider.
type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

func insertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	return mapErr(err)
}

// RecordProviderEvent stores an event that changes no other state. It returns
// ErrDuplicateEvent for redeliveries.
func (s *Store) RecordProviderEvent(ctx context.Context, evt ProviderEvent) error {
	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		return insertProviderEvent(ctx, tx, evt)
	}))
}
