package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/outbox"
)

const clinicColumns = `id, name, slug, address, phone, email, timezone, business_hours, plan, status, active, created_at, updated_at`

func scanClinic(row rowScanner) (model.Clinic, error) {
	var c model.Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Address, &c.Phone, &c.Email, &c.Timezone, &c.BusinessHours,
		&c.Plan, &c.Status, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if c.BusinessHours == nil {
		c.BusinessHours = model.BusinessHours{}
	}
	return c, mapErr(err)
}

// CreateClinicWithAdmin inserts a clinic and its first CLINIC_ADMIN in one transaction.
func (s *Store) CreateClinicWithAdmin(ctx context.Context, c *model.Clinic, admin *model.User) error {
	c.ID = newID()
	if c.BusinessHours == nil {
		c.BusinessHours = model.DefaultBusinessHours()
	}
	if c.Plan == "" {
		c.Plan = model.PlanFree
	}
	c.Status = model.ClinicActive
	c.Active = true
	admin.ClinicID = c.ID

	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO clinics (id, name, slug, address, phone, email, timezone, business_hours, plan, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`, c.ID, c.Name, c.Slug, c.Address, c.Phone, c.Email, c.Timezone, c.BusinessHours, c.Plan, c.Status).
			Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		if err := insertUser(ctx, tx, admin); err != nil {
			return err
		}
		evt, err := outbox.NewEvent("clinic", c.ID, c.ID, outbox.ClinicOnboarded, map[string]any{
			"clinic_id": c.ID,
			"slug":      c.Slug,
			"admin_id":  admin.ID,
		})
		if err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, evt)
	}))
}

func (s *Store) GetClinic(ctx context.Context, id string) (model.Clinic, error) {
	return scanClinic(s.pool.QueryRow(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE id = $1 AND active`, id))
}

func (s *Store) GetClinicBySlug(ctx context.Context, slug string) (model.Clinic, error) {
	return scanClinic(s.pool.QueryRow(ctx, `SELECT `+clinicColumns+` FROM clinics WHERE slug = $1 AND active`, slug))
}

// ListClinics backs the platform console; includeInactive lets super admins see
// deactivated tenants so they can be restored.
func (s *Store) ListClinics(ctx context.Context, includeInactive bool) ([]model.Clinic, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+clinicColumns+`
		FROM clinics
		WHERE active OR $1
		ORDER BY created_at DESC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateClinicProfile saves the settings form.
func (s *Store) UpdateClinicProfile(ctx context.Context, c model.Clinic) (model.Clinic, error) {
	return scanClinic(s.pool.QueryRow(ctx, `
		UPDATE clinics
		SET name = $2, address = $3, phone = $4, email = $5, timezone = $6, business_hours = $7, updated_at = now()
		WHERE id = $1 AND active
		RETURNING `+clinicColumns,
		c.ID, c.Name, c.Address, c.Phone, c.Email, c.Timezone, c.BusinessHours))
}

// ClinicAdminUpdate carries the fields a super admin may change; nil means unchanged.
type ClinicAdminUpdate struct {
	Status *model.ClinicStatus
	Plan   *model.Plan
	Active *bool
}

func (s *Store) UpdateClinicAdmin(ctx context.Context, id string, upd ClinicAdminUpdate) (model.Clinic, error) {
	var status, plan *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	if upd.Plan != nil {
		v := string(*upd.Plan)
		plan = &v
	}
	return scanClinic(s.pool.QueryRow(ctx, `
		UPDATE clinics
		SET status = COALESCE($2, status),
			plan = COALESCE($3, plan),
			active = COALESCE($4, active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+clinicColumns,
		id, status, plan, upd.Active))
}

// SetClinicPlan applies a paid plan change, recording the provider event so
// redelivered webhooks are ignored.
func (s *Store) SetClinicPlan(ctx context.Context, clinicID string, plan model.Plan, evt ProviderEvent) error {
	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := insertProviderEvent(ctx, tx, evt); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE clinics SET plan = $2, updated_at = now()
			WHERE id = $1 AND active
		`, clinicID, plan)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		out, err := outbox.NewEvent("clinic", clinicID, clinicID, outbox.ClinicPlanChanged, map[string]any{
			"clinic_id":         clinicID,
			"plan":              plan,
			"provider":          evt.Provider,
			"provider_event_id": evt.ProviderEventID,
		})
		if err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, out)
	}))
}
