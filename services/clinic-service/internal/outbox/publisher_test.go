package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/libs/kafkax"
	"github.com/vetcare/vetcare/services/clinic-service/internal/migrations"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) forAggregate(id string) []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []kafka.Message
	for _, m := range w.msgs {
		if string(m.Key) == id {
			out = append(out, m)
		}
	}
	return out
}

func openTestPublisher(t *testing.T) (*db.Pool, *Publisher) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(logger, url, migrations.FS, migrations.Dir))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPublisher(pool, NewRepository(pool), logger, PublisherConfig{Brokers: "localhost:9092", BatchSize: 500})
}

func insertEvents(t *testing.T, pool *db.Pool, aggregateID string, types ...string) {
	t.Helper()
	err := pool.InTx(context.Background(), func(tx pgx.Tx) error {
		for _, typ := range types {
			evt, err := NewEvent("appointment", aggregateID, "c-"+aggregateID, typ, map[string]string{"id": aggregateID})
			if err != nil {
				return err
			}
			if err := Insert(context.Background(), tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func unpublishedCount(t *testing.T, pool *db.Pool, aggregateID string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM outbox_events WHERE aggregate_id = $1 AND published_at IS NULL`, aggregateID).Scan(&n)
	require.NoError(t, err)
	return n
}

// drain publishes until the table holds nothing unpublished for this run.
func drain(t *testing.T, p *Publisher, w MessageWriter) {
	t.Helper()
	for i := 0; i < 20; i++ {
		n, err := p.publishBatch(context.Background(), w)
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
}

func TestPublishBatchIntegration(t *testing.T) {
	pool, p := openTestPublisher(t)
	aggregateID := "apt_" + uuid.NewString()[:8]
	insertEvents(t, pool, aggregateID, AppointmentBooked, AppointmentConfirmed)
	require.Equal(t, 2, unpublishedCount(t, pool, aggregateID))

	w := &recordingWriter{}
	drain(t, p, w)

	msgs := w.forAggregate(aggregateID)
	require.Len(t, msgs, 2)
	require.Equal(t, AppointmentBooked, msgs[0].Topic)
	require.Equal(t, AppointmentConfirmed, msgs[1].Topic)
	require.Equal(t, "c-"+aggregateID, kafkax.HeaderValue(msgs[0].Headers, "clinic_id"))
	require.JSONEq(t, `{"id":"`+aggregateID+`"}`, string(msgs[0].Value))
	require.Zero(t, unpublishedCount(t, pool, aggregateID))

	again := &recordingWriter{}
	drain(t, p, again)
	require.Empty(t, again.forAggregate(aggregateID))
}

func TestPublishBatchKeepsRowsWhenWriteFails(t *testing.T) {
	pool, p := openTestPublisher(t)
	aggregateID := "apt_" + uuid.NewString()[:8]
	insertEvents(t, pool, aggregateID, AppointmentStatusChanged)

	failing := &recordingWriter{err: errors.New("broker down")}
	_, err := p.publishBatch(context.Background(), failing)
	require.EqualError(t, err, "broker down")
	require.Equal(t, 1, unpublishedCount(t, pool, aggregateID))

	w := &recordingWriter{}
	drain(t, p, w)
	require.Len(t, w.forAggregate(aggregateID), 1)
	require.Zero(t, unpublishedCount(t, pool, aggregateID))
}
