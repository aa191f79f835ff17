package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/migrations"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

func TestMapErr(t *testing.T) {
	require.NoError(t, mapErr(nil))
	require.ErrorIs(t, mapErr(pgx.ErrNoRows), ErrNotFound)

	slot := &pgconn.PgError{Code: "23505", ConstraintName: "appointments_vet_slot_key"}
	err := mapErr(fmt.Errorf("insert: %w", slot))
	require.ErrorIs(t, err, ErrSlotTaken)
	require.ErrorIs(t, err, ErrConflict)
	require.True(t, IsConflict(err))

	other := &pgconn.PgError{Code: "23505", ConstraintName: "something_else"}
	require.ErrorIs(t, mapErr(other), ErrConflict)

	plain := errors.New("boom")
	require.Equal(t, plain, mapErr(plain))
	require.False(t, IsNotFound(plain))
}

func TestStatusChange(t *testing.T) {
	c := StatusChange{PreviousStatus: model.StatusPending}
	c.Appointment.Status = model.StatusConfirmed
	require.True(t, c.Changed())
	c.PreviousStatus = model.StatusConfirmed
	require.False(t, c.Changed())
}

func TestNeedsSlotCheck(t *testing.T) {
	base := model.Appointment{ID: "a", VetID: "vet-1", Status: model.StatusCancelled}
	reopened := base
	reopened.Status = model.StatusPending
	require.True(t, needsSlotCheck(base, reopened))

	pending := reopened
	require.False(t, needsSlotCheck(pending, pending), "unchanged open row")

	moved := pending
	moved.VetID = "vet-2"
	require.True(t, needsSlotCheck(pending, moved))

	noVet := reopened
	noVet.VetID = ""
	require.False(t, needsSlotCheck(base, noVet))

	closed := pending
	closed.Status = model.StatusCompleted
	require.False(t, needsSlotCheck(pending, closed))
}

// openTestStore applies the schema to DATABASE_URL; the database should be disposable.
func openTestStore(t *testing.T) *Store {
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
	return New(pool)
}

func TestBookingLifecycleIntegration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	suffix := newID()[:8]

	clinic := model.Clinic{Name: "Paws " + suffix, Slug: "paws-" + suffix, Timezone: "UTC"}
	admin := model.User{Email: "admin-" + suffix + "@example.com", PasswordHash: "x", Name: "Admin", Role: identity.ClinicAdmin}
	require.NoError(t, s.CreateClinicWithAdmin(ctx, &clinic, &admin))

	dup := model.Clinic{Name: "Dup", Slug: clinic.Slug}
	dupAdmin := model.User{Email: "other-" + suffix + "@example.com", PasswordHash: "x", Name: "B", Role: identity.ClinicAdmin}
	require.ErrorIs(t, s.CreateClinicWithAdmin(ctx, &dup, &dupAdmin), ErrSlugTaken)

	vet := model.User{Email: "vet-" + suffix + "@example.com", PasswordHash: "x", Name: "Dr Vet", Role: identity.Vet, ClinicID: clinic.ID}
	require.NoError(t, s.CreateUser(ctx, &vet))
	owner := model.User{Email: "owner-" + suffix + "@example.com", PasswordHash: "x", Name: "Owner", Role: identity.PetOwner, ClinicID: clinic.ID}
	require.NoError(t, s.CreateUser(ctx, &owner))

	pet := model.Pet{Name: "Rex", Species: model.SpeciesDog, Gender: model.GenderMale, OwnerID: owner.ID, ClinicID: clinic.ID}
	require.NoError(t, s.CreatePet(ctx, &pet))
	svc := model.Service{ClinicID: clinic.ID, Name: "Checkup", DurationMinutes: 30, PriceCents: 5000, Currency: "AUD", Color: "#112233"}
	require.NoError(t, s.CreateService(ctx, &svc))

	at := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	appt := model.Appointment{ClinicID: clinic.ID, PetID: pet.ID, ServiceID: svc.ID, VetID: vet.ID, BookedByID: owner.ID,
		AppointmentDate: at, DurationMinutes: 30}
	require.NoError(t, s.CreateAppointment(ctx, &appt))

	clash := appt
	require.ErrorIs(t, s.CreateAppointment(ctx, &clash), ErrSlotTaken)

	booked, err := s.BookedIntervals(ctx, clinic.ID, vet.ID, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, booked, 1)

	change, err := s.ConfirmAppointment(ctx, appt.ID, PaymentRef{Provider: "payhere", Amount: "50.00", Currency: "AUD"})
	require.NoError(t, err)
	require.True(t, change.Changed())
	require.Equal(t, model.StatusConfirmed, change.Appointment.Status)
	require.Equal(t, "Rex", change.Appointment.PetName)

	again, err := s.ConfirmAppointment(ctx, appt.ID, PaymentRef{Provider: "payhere"})
	require.NoError(t, err)
	require.False(t, again.Changed())

	_, err = s.ConfirmAppointment(ctx, "apt_missing", PaymentRef{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.SetUserActive(ctx, vet.ID, false)
	require.NoError(t, err)
	_, err = s.GetUserByEmail(ctx, vet.Email)
	require.ErrorIs(t, err, ErrNotFound)
	registered, err := s.EmailRegistered(ctx, vet.Email)
	require.NoError(t, err)
	require.True(t, registered)
	registered, err = s.EmailRegistered(ctx, "nobody-"+suffix+"@example.com")
	require.NoError(t, err)
	require.False(t, registered)

	require.NoError(t, s.DeactivatePet(ctx, pet.ID, PetScope{OwnerID: owner.ID}))
	_, err = s.GetPet(ctx, pet.ID, PetScope{ClinicID: clinic.ID})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReopenRejectsOverlapIntegration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	suffix := newID()[:8]

	clinic := model.Clinic{Name: "Reopen " + suffix, Slug: "reopen-" + suffix, Timezone: "UTC"}
	admin := model.User{Email: "radmin-" + suffix + "@example.com", PasswordHash: "x", Name: "Admin", Role: identity.ClinicAdmin}
	require.NoError(t, s.CreateClinicWithAdmin(ctx, &clinic, &admin))
	vet := model.User{Email: "rvet-" + suffix + "@example.com", PasswordHash: "x", Name: "Dr Vet", Role: identity.Vet, ClinicID: clinic.ID}
	require.NoError(t, s.CreateUser(ctx, &vet))
	owner := model.User{Email: "rowner-" + suffix + "@example.com", PasswordHash: "x", Name: "Owner", Role: identity.PetOwner, ClinicID: clinic.ID}
	require.NoError(t, s.CreateUser(ctx, &owner))
	pet := model.Pet{Name: "Tom", Species: model.SpeciesCat, Gender: model.GenderMale, OwnerID: owner.ID, ClinicID: clinic.ID}
	require.NoError(t, s.CreatePet(ctx, &pet))
	svc := model.Service{ClinicID: clinic.ID, Name: "Dental", DurationMinutes: 30, Currency: "AUD", Color: "#112233"}
	require.NoError(t, s.CreateService(ctx, &svc))

	at := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	first := model.Appointment{ClinicID: clinic.ID, PetID: pet.ID, ServiceID: svc.ID, VetID: vet.ID, BookedByID: owner.ID,
		AppointmentDate: at, DurationMinutes: 30}
	require.NoError(t, s.CreateAppointment(ctx, &first))

	cancelled := model.StatusCancelled
	_, err := s.UpdateAppointment(ctx, clinic.ID, first.ID, AppointmentUpdate{Status: &cancelled}, model.StaffCanSet)
	require.NoError(t, err)

	second := first
	second.ID = ""
	second.AppointmentDate = at.Add(15 * time.Minute)
	require.NoError(t, s.CreateAppointment(ctx, &second))

	pending := model.StatusPending
	_, err = s.UpdateAppointment(ctx, clinic.ID, first.ID, AppointmentUpdate{Status: &pending}, model.StaffCanSet)
	require.ErrorIs(t, err, ErrSlotTaken)
	got, err := s.GetAppointment(ctx, first.ID, AppointmentScope{ClinicID: clinic.ID})
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, got.Status)

	_, err = s.UpdateAppointment(ctx, clinic.ID, second.ID, AppointmentUpdate{Status: &cancelled}, model.StaffCanSet)
	require.NoError(t, err)
	change, err := s.UpdateAppointment(ctx, clinic.ID, first.ID, AppointmentUpdate{Status: &pending}, model.StaffCanSet)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, change.Appointment.Status)
}
