package storage

import (
	"context"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

// ClinicSummary is the headline data of the clinic dashboard.
type ClinicSummary struct {
	Today          []model.AppointmentDetails `json:"today"`
	UpcomingCount  int64                      `json:"upcoming_count"`
	PendingCount   int64                      `json:"pending_count"`
	ActivePets     int64                      `json:"active_pets"`
	ActiveServices int64                      `json:"active_services"`
}

func (s *Store) ClinicSummary(ctx context.Context, clinicID string, dayStart, dayEnd, now time.Time) (ClinicSummary, error) {
	var sum ClinicSummary
	var err error
	sum.Today, err = s.ListAppointments(ctx, model.AppointmentFilter{ClinicID: clinicID, From: dayStart, To: dayEnd})
	if err != nil {
		return sum, err
	}
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM appointments WHERE clinic_id = $1 AND appointment_date >= $2 AND status IN ('PENDING', 'CONFIRMED')),
			(SELECT count(*) FROM appointments WHERE clinic_id = $1 AND status = 'PENDING'),
			(SELECT count(*) FROM pets WHERE clinic_id = $1 AND active),
			(SELECT count(*) FROM services WHERE clinic_id = $1 AND active)
	`, clinicID, now).Scan(&sum.UpcomingCount, &sum.PendingCount, &sum.ActivePets, &sum.ActiveServices)
	return sum, err
}

// PlatformSummary is the headline data of the super-admin console.
type PlatformSummary struct {
	Clinics          int64            `json:"clinics"`
	SuspendedClinics int64            `json:"suspended_clinics"`
	UsersByRole      map[string]int64 `json:"users_by_role"`
	Appointments30d  int64            `json:"appointments_30d"`
}

func (s *Store) PlatformSummary(ctx context.Context, now time.Time) (PlatformSummary, error) {
	sum := PlatformSummary{UsersByRole: map[string]int64{}}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM clinics WHERE active),
			(SELECT count(*) FROM clinics WHERE active AND status = 'SUSPENDED'),
			(SELECT count(*) FROM appointments WHERE created_at >= $1)
	`, now.Add(-30*24*time.Hour)).Scan(&sum.Clinics, &sum.SuspendedClinics, &sum.Appointments30d)
	if err != nil {
		return sum, err
	}
	rows, err := s.pool.Query(ctx, `SELECT role, count(*) FROM users WHERE active GROUP BY role`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return sum, err
		}
		sum.UsersByRole[role] = n
	}
	return sum, rows.Err()
}
