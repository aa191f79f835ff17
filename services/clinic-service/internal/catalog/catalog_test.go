package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type memCache struct {
	data   map[string]string
	getErr error
}

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingLoader struct {
	loads int
}

func (l *countingLoader) GetClinicBySlug(_ context.Context, slug string) (model.Clinic, error) {
	l.loads++
	if slug != "paws" {
		return model.Clinic{}, storage.ErrNotFound
	}
	return model.Clinic{ID: "c1", Slug: "paws", Name: "Paws", Status: model.ClinicActive, Active: true}, nil
}

func (l *countingLoader) ListServices(context.Context, string) ([]model.Service, error) {
	return []model.Service{{ID: "s1", Name: "Checkup", DurationMinutes: 30}}, nil
}

func (l *countingLoader) ListVets(context.Context, string) ([]model.User, error) {
	return []model.User{{ID: "v1", Name: "Dr One", Role: identity.Vet, Email: "secret@example.com"}}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestClinicReadThroughAndInvalidate(t *testing.T) {
	cache := &memCache{data: map[string]string{}}
	loader := &countingLoader{}
	c := New(cache, loader, time.Minute, discard())
	ctx := context.Background()

	got, err := c.Clinic(ctx, "paws")
	require.NoError(t, err)
	require.True(t, got.Bookable)
	require.Equal(t, []Vet{{ID: "v1", Name: "Dr One"}}, got.Vets)
	require.Equal(t, 1, loader.loads)

	_, err = c.Clinic(ctx, "paws")
	require.NoError(t, err)
	require.Equal(t, 1, loader.loads, "second read is served from cache")
	require.NotContains(t, cache.data[slugKey("paws")], "secret@example.com")

	c.Invalidate(ctx, "c1")
	require.Empty(t, cache.data)

	_, err = c.Clinic(ctx, "paws")
	require.NoError(t, err)
	require.Equal(t, 2, loader.loads)
}

func TestClinicCacheErrorsDegrade(t *testing.T) {
	cache := &memCache{data: map[string]string{}, getErr: errors.New("connection refused")}
	loader := &countingLoader{}
	c := New(cache, loader, time.Minute, discard())

	_, err := c.Clinic(context.Background(), "paws")
	require.NoError(t, err)

	_, err = c.Clinic(context.Background(), "unknown")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNilCacheIsPassThrough(t *testing.T) {
	loader := &countingLoader{}
	c := New(nil, loader, 0, discard())
	_, err := c.Clinic(context.Background(), "paws")
	require.NoError(t, err)
	_, err = c.Clinic(context.Background(), "paws")
	require.NoError(t, err)
	require.Equal(t, 2, loader.loads)
	c.Invalidate(context.Background(), "c1")
}
