package storage

import (
	"context"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

func (s *Store) CreateHoliday(ctx context.Context, h *model.PublicHoliday) error {
	h.ID = newID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO public_holidays (id, clinic_id, name, date)
		VALUES ($1, $2, $3, $4)
	`, h.ID, h.ClinicID, h.Name, h.Date)
	return mapErr(err)
}

// ListHolidays returns holidays with from <= date < to; zero bounds are open.
func (s *Store) ListHolidays(ctx context.Context, clinicID string, from, to time.Time) ([]model.PublicHoliday, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, clinic_id, name, date
		FROM public_holidays
		WHERE clinic_id = $1
			AND ($2::date IS NULL OR date >= $2::date)
			AND ($3::date IS NULL OR date < $3::date)
		ORDER BY date ASC
	`, clinicID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PublicHoliday
	for rows.Next() {
		var h model.PublicHoliday
		if err := rows.Scan(&h.ID, &h.ClinicID, &h.Name, &h.Date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteHoliday hard-deletes; holidays are configuration rather than records.
func (s *Store) DeleteHoliday(ctx context.Context, clinicID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM public_holidays WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
