package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/outbox"
)

const detailsSelect = `
	SELECT a.id, a.clinic_id, a.pet_id, a.service_id, COALESCE(a.vet_id, ''), a.booked_by_id,
		a.appointment_date, a.duration_minutes, a.status, a.notes, a.created_at, a.updated_at,
		p.name, s.name, s.price_cents, s.currency, c.name, c.timezone, COALESCE(v.name, ''),
		o.id, o.name, o.email, o.phone
	FROM appointments a
	JOIN pets p ON p.id = a.pet_id
	JOIN services s ON s.id = a.service_id
	JOIN clinics c ON c.id = a.clinic_id
	JOIN users o ON o.id = p.owner_id
	LEFT JOIN users v ON v.id = a.vet_id`

func scanDetails(row rowScanner) (model.AppointmentDetails, error) {
	var d model.AppointmentDetails
	err := row.Scan(&d.ID, &d.ClinicID, &d.PetID, &d.ServiceID, &d.VetID, &d.BookedByID,
		&d.AppointmentDate, &d.DurationMinutes, &d.Status, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
		&d.PetName, &d.ServiceName, &d.PriceCents, &d.Currency, &d.ClinicName, &d.ClinicTZ, &d.VetName,
		&d.OwnerID, &d.OwnerName, &d.OwnerEmail, &d.OwnerPhone)
	return d, mapErr(err)
}

func appointmentPayload(a model.Appointment) map[string]any {
	return map[string]any{
		"appointment_id":   a.ID,
		"clinic_id":        a.ClinicID,
		"pet_id":           a.PetID,
		"service_id":       a.ServiceID,
		"vet_id":           a.VetID,
		"appointment_date": a.AppointmentDate.UTC().Format(time.RFC3339),
		"status":           a.Status,
	}
}

func insertAppointmentEvent(ctx context.Context, tx pgx.Tx, a model.Appointment, eventType string, extra map[string]any) error {
	payload := appointmentPayload(a)
	for k, v := range extra {
		payload[k] = v
	}
	evt, err := outbox.NewEvent("appointment", a.ID, a.ClinicID, eventType, payload)
	if err != nil {
		return err
	}
	return outbox.Insert(ctx, tx, evt)
}

// CreateAppointment inserts a PENDING appointment and its booked event.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	a.ID = newID()
	a.Status = model.StatusPending
	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(id, clinic_id, pet_id, service_id, vet_id, booked_by_id, appointment_date, duration_minutes, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`, a.ID, a.ClinicID, a.PetID, a.ServiceID, nullable(a.VetID), a.BookedByID, a.AppointmentDate,
			a.DurationMinutes, a.Status, a.Notes).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}
		return insertAppointmentEvent(ctx, tx, *a, outbox.AppointmentBooked, nil)
	}))
}

// AppointmentScope restricts lookups the same way PetScope does; OwnerID
// matches the owner of the appointment's pet.
type AppointmentScope struct {
	ClinicID string
	OwnerID  string
}

func (s *Store) GetAppointment(ctx context.Context, id string, scope AppointmentScope) (model.AppointmentDetails, error) {
	return scanDetails(s.pool.QueryRow(ctx, detailsSelect+`
		WHERE a.id = $1 AND ($2 = '' OR a.clinic_id = $2) AND ($3 = '' OR p.owner_id = $3)
	`, id, scope.ClinicID, scope.OwnerID))
}

func (s *Store) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.AppointmentDetails, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, detailsSelect+`
		WHERE ($1 = '' OR a.clinic_id = $1)
			AND ($2 = '' OR p.owner_id = $2)
			AND ($3 = '' OR a.vet_id = $3)
			AND ($4 = '' OR a.pet_id = $4)
			AND ($5 = '' OR a.status = $5)
			AND ($6::timestamptz IS NULL OR a.appointment_date >= $6)
			AND ($7::timestamptz IS NULL OR a.appointment_date < $7)
		ORDER BY a.appointment_date ASC
		LIMIT $8
	`, f.ClinicID, f.OwnerID, f.VetID, f.PetID, string(f.Status), nullableTime(f.From), nullableTime(f.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDetails
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BookedIntervals returns the open (PENDING or CONFIRMED) appointments of a
// clinic overlapping [start, end). An empty vetID returns every vet's bookings.
func (s *Store) BookedIntervals(ctx context.Context, clinicID, vetID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(vet_id, ''), appointment_date, duration_minutes, status
		FROM appointments
		WHERE clinic_id = $1
			AND ($2 = '' OR vet_id = $2)
			AND status IN ('PENDING', 'CONFIRMED')
			AND appointment_date < $4
			AND appointment_date + make_interval(mins => duration_minutes) > $3
		ORDER BY appointment_date ASC
	`, clinicID, vetID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a := model.Appointment{ClinicID: clinicID}
		if err := rows.Scan(&a.ID, &a.VetID, &a.AppointmentDate, &a.DurationMinutes, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// needsSlotCheck reports whether moving cur to next starts occupying a vet's
// calendar that it did not occupy before.
func needsSlotCheck(cur, next model.Appointment) bool {
	if next.VetID == "" || !next.Status.Open() {
		return false
	}
	return !cur.Status.Open() || cur.VetID != next.VetID
}

// ensureSlotFree fails with ErrSlotTaken when another open appointment of the
// same vet overlaps a.
func ensureSlotFree(ctx context.Context, q db.Querier, a model.Appointment) error {
	var clash bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE clinic_id = $1
				AND vet_id = $2
				AND id <> $3
				AND status IN ('PENDING', 'CONFIRMED')
				AND appointment_date < $5
				AND appointment_date + make_interval(mins => duration_minutes) > $4
		)
	`, a.ClinicID, a.VetID, a.ID, a.AppointmentDate, a.End()).Scan(&clash)
	if err != nil {
		return err
	}
	if clash {
		return ErrSlotTaken
	}
	return nil
}

// AppointmentUpdate carries staff edits; nil fields are unchanged. An empty
// VetID pointer value unassigns the vet.
type AppointmentUpdate struct {
	Status *model.AppointmentStatus
	VetID  *string
	Notes  *string
}

// StatusChange is returned by writes that move an appointment between statuses.
type StatusChange struct {
	Appointment    model.AppointmentDetails
	PreviousStatus model.AppointmentStatus
}

func (c StatusChange) Changed() bool {
	return c.PreviousStatus != c.Appointment.Status
}

// UpdateAppointment applies a staff edit. allowed decides whether the status
// move is legal given the current status; it runs under the row lock.
func (s *Store) UpdateAppointment(ctx context.Context, clinicID, id string, upd AppointmentUpdate,
	allowed func(from, to model.AppointmentStatus) bool) (StatusChange, error) {
	var change StatusChange
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		cur, err := lockAppointment(ctx, tx, id, clinicID)
		if err != nil {
			return err
		}
		change.PreviousStatus = cur.Status
		next := cur
		if upd.Status != nil && *upd.Status != cur.Status {
			if allowed != nil && !allowed(cur.Status, *upd.Status) {
				return ErrInvalidTransition
			}
			next.Status = *upd.Status
		}
		if upd.VetID != nil {
			next.VetID = *upd.VetID
		}
		if upd.Notes != nil {
			next.Notes = *upd.Notes
		}
		if needsSlotCheck(cur, next) {
			if err := ensureSlotFree(ctx, tx, next); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, vet_id = $3, notes = $4, updated_at = now()
			WHERE id = $1
		`, id, next.Status, nullable(next.VetID), next.Notes)
		if err != nil {
			return mapErr(err)
		}
		if next.Status != cur.Status {
			return insertAppointmentEvent(ctx, tx, next, outbox.AppointmentStatusChanged, map[string]any{
				"previous_status": cur.Status,
			})
		}
		return nil
	})
	if err != nil {
		return StatusChange{}, mapErr(err)
	}
	change.Appointment, err = s.GetAppointment(ctx, id, AppointmentScope{ClinicID: clinicID})
	return change, err
}

// CancelOwnedAppointment lets an owner cancel an open appointment of one of their pets.
func (s *Store) CancelOwnedAppointment(ctx context.Context, ownerID, id string) (StatusChange, error) {
	var change StatusChange
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var cur model.Appointment
		err := tx.QueryRow(ctx, `
			SELECT a.id, a.clinic_id, a.pet_id, a.service_id, COALESCE(a.vet_id, ''), a.appointment_date, a.status
			FROM appointments a
			JOIN pets p ON p.id = a.pet_id
			WHERE a.id = $1 AND p.owner_id = $2
			FOR UPDATE OF a
		`, id, ownerID).Scan(&cur.ID, &cur.ClinicID, &cur.PetID, &cur.ServiceID, &cur.VetID, &cur.AppointmentDate, &cur.Status)
		if err != nil {
			return mapErr(err)
		}
		change.PreviousStatus = cur.Status
		if !cur.Status.Open() {
			return ErrInvalidTransition
		}
		if _, err := tx.Exec(ctx, `
			UPDATE appointments SET status = 'CANCELLED', updated_at = now() WHERE id = $1
		`, id); err != nil {
			return err
		}
		cur.Status = model.StatusCancelled
		return insertAppointmentEvent(ctx, tx, cur, outbox.AppointmentStatusChanged, map[string]any{
			"previous_status": change.PreviousStatus,
			"cancelled_by":    "owner",
		})
	})
	if err != nil {
		return StatusChange{}, mapErr(err)
	}
	change.Appointment, err = s.GetAppointment(ctx, id, AppointmentScope{OwnerID: ownerID})
	return change, err
}

// ConfirmAppointment sets an appointment to CONFIRMED after a verified payment.
// The assignment is absolute: replaying it leaves the row unchanged and writes
// no second event.
func (s *Store) ConfirmAppointment(ctx context.Context, id string, payment PaymentRef) (StatusChange, error) {
	var change StatusChange
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		cur, err := lockAppointment(ctx, tx, id, "")
		if err != nil {
			return err
		}
		change.PreviousStatus = cur.Status
		if !model.PaymentCanConfirm(cur.Status) {
			return nil
		}
		next := cur
		next.Status = model.StatusConfirmed
		if needsSlotCheck(cur, next) {
			if err := ensureSlotFree(ctx, tx, next); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE appointments SET status = 'CONFIRMED', updated_at = now() WHERE id = $1
		`, id); err != nil {
			return mapErr(err)
		}
		cur.Status = model.StatusConfirmed
		return insertAppointmentEvent(ctx, tx, cur, outbox.AppointmentConfirmed, map[string]any{
			"previous_status":  change.PreviousStatus,
			"payment_provider": payment.Provider,
			"payment_amount":   payment.Amount,
			"payment_currency": payment.Currency,
		})
	})
	if err != nil {
		return StatusChange{}, mapErr(err)
	}
	change.Appointment, err = s.GetAppointment(ctx, id, AppointmentScope{})
	return change, err
}

// PaymentRef describes the payment that confirmed an appointment.
type PaymentRef struct {
	Provider string
	Amount   string
	Currency string
}

func lockAppointment(ctx context.Context, tx pgx.Tx, id, clinicID string) (model.Appointment, error) {
	var a model.Appointment
	err := tx.QueryRow(ctx, `
		SELECT id, clinic_id, pet_id, service_id, COALESCE(vet_id, ''), booked_by_id, appointment_date,
			duration_minutes, status, notes, created_at, updated_at
		FROM appointments
		WHERE id = $1 AND ($2 = '' OR clinic_id = $2)
		FOR UPDATE
	`, id, clinicID).Scan(&a.ID, &a.ClinicID, &a.PetID, &a.ServiceID, &a.VetID, &a.BookedByID, &a.AppointmentDate,
		&a.DurationMinutes, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return a, mapErr(err)
}
