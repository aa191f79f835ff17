// Package storage holds the PostgreSQL repositories of the clinic service.
// Every tenant-scoped query is filtered by clinic id, and soft-deleted rows
// (active = false) are invisible unless a method says otherwise.
package storage

import (
	"errors"

	"github.com/google/uuid"

	"github.com/vetcare/vetcare/libs/db"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type conflictError struct{ msg string }

func (e conflictError) Error() string        { return e.msg }
func (e conflictError) Is(target error) bool { return target == ErrConflict }

var (
	ErrSlugTaken        error = conflictError{"clinic slug already taken"}
	ErrEmailTaken       error = conflictError{"email already registered"}
	ErrSlotTaken        error = conflictError{"vet is already booked at that time"}
	ErrInvitationExists error = conflictError{"a pending invitation already exists for this email"}
	ErrHolidayExists    error = conflictError{"a holiday already exists on that date"}
	ErrDuplicateEvent   error = conflictError{"provider event already processed"}
)

var constraintErrors = map[string]error{
	"clinics_slug_key":                ErrSlugTaken,
	"users_email_key":                 ErrEmailTaken,
	"appointments_vet_slot_key":       ErrSlotTaken,
	"invitations_pending_email_key":   ErrInvitationExists,
	"public_holidays_clinic_date_key": ErrHolidayExists,
	"provider_events_pkey":            ErrDuplicateEvent,
}

// Store is the repository set backed by one connection pool.
type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func newID() string {
	return uuid.NewString()
}

// mapErr turns driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	for constraint, mapped := range constraintErrors {
		if db.IsUniqueViolation(err, constraint) {
			return mapped
		}
	}
	if db.IsUniqueViolation(err) {
		return conflictError{"record already exists"}
	}
	return err
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) || db.IsNotFound(err) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) || db.IsUniqueViolation(err) }

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ErrInvalidTransition rejects a status move the caller is not allowed to make.
var ErrInvalidTransition = errors.New("appointment status change not allowed")
