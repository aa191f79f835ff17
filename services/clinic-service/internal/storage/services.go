package storage

import (
	"context"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

const serviceColumns = `id, clinic_id, name, duration_minutes, price_cents, currency, color, active, created_at`

func scanService(row rowScanner) (model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.ClinicID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.Currency, &svc.Color, &svc.Active, &svc.CreatedAt)
	return svc, mapErr(err)
}

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	svc.ID = newID()
	svc.Active = true
	err := s.pool.QueryRow(ctx, `
		INSERT INTO services (id, clinic_id, name, duration_minutes, price_cents, currency, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, svc.ID, svc.ClinicID, svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Currency, svc.Color).Scan(&svc.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetService(ctx context.Context, clinicID, id string) (model.Service, error) {
	return scanService(s.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE id = $1 AND clinic_id = $2 AND active
	`, id, clinicID))
}

func (s *Store) ListServices(ctx context.Context, clinicID string) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE clinic_id = $1 AND active
		ORDER BY name ASC
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) UpdateService(ctx context.Context, svc model.Service) (model.Service, error) {
	return scanService(s.pool.QueryRow(ctx, `
		UPDATE services
		SET name = $3, duration_minutes = $4, price_cents = $5, currency = $6, color = $7
		WHERE id = $1 AND clinic_id = $2 AND active
		RETURNING `+serviceColumns,
		svc.ID, svc.ClinicID, svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Currency, svc.Color))
}

func (s *Store) DeactivateService(ctx context.Context, clinicID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE services SET active = false WHERE id = $1 AND clinic_id = $2 AND active
	`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
