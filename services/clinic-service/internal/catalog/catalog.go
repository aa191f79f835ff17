// Package catalog serves the public clinic page (profile, services, vets)
// through a Redis read-through cache.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

// Cache is the subset of redis.Cmdable the catalog uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Loader interface {
	GetClinicBySlug(ctx context.Context, slug string) (model.Clinic, error)
	ListServices(ctx context.Context, clinicID string) ([]model.Service, error)
	ListVets(ctx context.Context, clinicID string) ([]model.User, error)
}

type Vet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clinic is the public view of one clinic.
type Clinic struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Address       string              `json:"address"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	Timezone      string              `json:"timezone"`
	BusinessHours model.BusinessHours `json:"business_hours"`
	Bookable      bool                `json:"bookable"`
	Services      []model.Service     `json:"services"`
	Vets          []Vet               `json:"vets"`
}

type Catalog struct {
	cache  Cache
	loader Loader
	ttl    time.Duration
	logger *slog.Logger
}

// New returns a catalog; a nil cache disables caching.
func New(cache Cache, loader Loader, ttl time.Duration, logger *slog.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{cache: cache, loader: loader, ttl: ttl, logger: logger}
}

func slugKey(slug string) string { return "catalog:clinic:" + slug }
func clinicKey(id string) string  { return "catalog:clinic-id:" + id }

// Clinic returns the public view of the clinic with slug, loading it on a miss.
// Cache failures degrade to a direct load.
func (c *Catalog) Clinic(ctx context.Context, slug string) (Clinic, error) {
	if c.cache != nil {
		raw, err := c.cache.Get(ctx, slugKey(slug)).Bytes()
		switch {
		case err == nil:
			var out Clinic
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
			c.logger.Warn("catalog cache entry unreadable", "slug", slug)
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("catalog cache get failed", "slug", slug, "err", err)
		}
	}

	out, err := c.load(ctx, slug)
	if err != nil {
		return Clinic{}, err
	}
	if c.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, slugKey(slug), raw, c.ttl).Err(); err != nil {
				c.logger.Warn("catalog cache set failed", "slug", slug, "err", err)
			}
			if err := c.cache.Set(ctx, clinicKey(out.ID), slug, c.ttl).Err(); err != nil {
				c.logger.Warn("catalog cache set failed", "clinic_id", out.ID, "err", err)
			}
		}
	}
	return out, nil
}

// Invalidate drops the cached view of a clinic after a mutation.
func (c *Catalog) Invalidate(ctx context.Context, clinicID string) {
	if c.cache == nil || clinicID == "" {
		return
	}
	slug, err := c.cache.Get(ctx, clinicKey(clinicID)).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		c.logger.Warn("catalog invalidate lookup failed", "clinic_id", clinicID, "err", err)
		return
	}
	if err := c.cache.Del(ctx, slugKey(slug), clinicKey(clinicID)).Err(); err != nil {
		c.logger.Warn("catalog invalidate failed", "clinic_id", clinicID, "err", err)
	}
}

func (c *Catalog) load(ctx context.Context, slug string) (Clinic, error) {
	clinic, err := c.loader.GetClinicBySlug(ctx, slug)
	if err != nil {
		return Clinic{}, err
	}
	services, err := c.loader.ListServices(ctx, clinic.ID)
	if err != nil {
		return Clinic{}, err
	}
	vets, err := c.loader.ListVets(ctx, clinic.ID)
	if err != nil {
		return Clinic{}, err
	}
	out := Clinic{
		ID:            clinic.ID,
		Name:          clinic.Name,
		Slug:          clinic.Slug,
		Address:       clinic.Address,
		Phone:         clinic.Phone,
		Email:         clinic.Email,
		Timezone:      clinic.Timezone,
		BusinessHours: clinic.BusinessHours,
		Bookable:      clinic.Bookable(),
		Services:      services,
		Vets:          make([]Vet, 0, len(vets)),
	}
	if out.Services == nil {
		out.Services = []model.Service{}
	}
	for _, v := range vets {
		out.Vets = append(out.Vets, Vet{ID: v.ID, Name: v.Name})
	}
	return out, nil
}
