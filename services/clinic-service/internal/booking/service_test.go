package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type fakeStore struct {
	services map[string]model.Service
	vets     map[string]model.User
	pets     map[string]model.Pet
	holidays []model.PublicHoliday
	booked   []model.Appointment
	created  []model.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services: map[string]model.Service{
			"svc-1": {ID: "svc-1", ClinicID: "c1", Name: "Checkup", DurationMinutes: 30, PriceCents: 5000, Currency: "AUD", Active: true},
		},
		vets: map[string]model.User{
			"vet-1": {ID: "vet-1", ClinicID: "c1", Role: identity.Vet, Name: "Dr One", Active: true},
			"vet-2": {ID: "vet-2", ClinicID: "c1", Role: identity.Vet, Name: "Dr Two", Active: true},
		},
		pets: map[string]model.Pet{
			"pet-1": {ID: "pet-1", ClinicID: "c1", OwnerID: "owner-1", Name: "Rex", Active: true},
		},
	}
}

func (f *fakeStore) GetService(_ context.Context, clinicID, id string) (model.Service, error) {
	s, ok := f.services[id]
	if !ok || s.ClinicID != clinicID {
		return model.Service{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetVet(_ context.Context, clinicID, id string) (model.User, error) {
	v, ok := f.vets[id]
	if !ok || v.ClinicID != clinicID {
		return model.User{}, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) ListVets(_ context.Context, clinicID string) ([]model.User, error) {
	var out []model.User
	for _, id := range []string{"vet-1", "vet-2"} {
		if v, ok := f.vets[id]; ok && v.ClinicID == clinicID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPet(_ context.Context, id string, scope storage.PetScope) (model.Pet, error) {
	p, ok := f.pets[id]
	if !ok || (scope.ClinicID != "" && p.ClinicID != scope.ClinicID) || (scope.OwnerID != "" && p.OwnerID != scope.OwnerID) {
		return model.Pet{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListHolidays(_ context.Context, _ string, from, to time.Time) ([]model.PublicHoliday, error) {
	var out []model.PublicHoliday
	for _, h := range f.holidays {
		if !h.Date.Before(from) && h.Date.Before(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) BookedIntervals(_ context.Context, _ string, vetID string, start, end time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.booked {
		if vetID != "" && a.VetID != vetID {
			continue
		}
		if a.AppointmentDate.Before(end) && a.End().After(start) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAppointment(_ context.Context, a *model.Appointment) error {
	a.ID = "apt-new"
	a.Status = model.StatusPending
	f.created = append(f.created, *a)
	return nil
}

func testClinic() model.Clinic {
	return model.Clinic{
		ID:            "c1",
		Timezone:      "UTC",
		BusinessHours: model.DefaultBusinessHours(),
		Status:        model.ClinicActive,
		Active:        true,
	}
}

// 2026-03-02 is a Monday.
func newTestService(store *fakeStore) *Service {
	svc := NewService(store, 30*time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func validRequest() Request {
	return Request{
		Clinic:     testClinic(),
		OwnerID:    "owner-1",
		PetID:      "pet-1",
		ServiceID:  "svc-1",
		VetID:      "vet-1",
		Date:       "2026-03-02",
		Time:       "10:00",
		BookedByID: "owner-1",
	}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	store := newFakeStore()
	b, err := newTestService(store).Book(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, b.Appointment.Status)
	require.Equal(t, 30, b.Appointment.DurationMinutes)
	require.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), b.Appointment.AppointmentDate)
	require.Equal(t, "vet-1", b.Appointment.VetID)
	require.Len(t, store.created, 1)
}

func TestBookValidation(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Request)
		field string
	}{
		{"missing service", func(r *Request) { r.ServiceID = "" }, "service_id"},
		{"missing time", func(r *Request) { r.Time = " " }, "time"},
		{"bad date", func(r *Request) { r.Date = "02/03/2026" }, "date"},
		{"past", func(r *Request) { r.Date = "2026-02-27" }, "time"},
		{"foreign pet", func(r *Request) { r.OwnerID = "owner-2" }, "pet_id"},
		{"unknown service", func(r *Request) { r.ServiceID = "svc-x" }, "service_id"},
		{"unknown vet", func(r *Request) { r.VetID = "vet-x" }, "vet_id"},
		{"sunday closed", func(r *Request) { r.Date = "2026-03-08" }, "date"},
		{"before opening", func(r *Request) { r.Time = "08:30" }, "time"},
		{"runs past closing", func(r *Request) { r.Time = "16:45" }, "time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			req := validRequest()
			tc.edit(&req)
			_, err := newTestService(store).Book(context.Background(), req)
			require.Error(t, err)
			require.True(t, model.IsValidation(err), "got %v", err)
			require.Contains(t, err.Error(), tc.field)
			require.Empty(t, store.created)
		})
	}
}

func TestBookRejectsHolidayAndSuspendedClinic(t *testing.T) {
	store := newFakeStore()
	store.holidays = []model.PublicHoliday{{Name: "Poya", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}}
	_, err := newTestService(store).Book(context.Background(), validRequest())
	require.True(t, model.IsValidation(err))
	require.Contains(t, err.Error(), "Poya")

	req := validRequest()
	req.Clinic.Status = model.ClinicSuspended
	_, err = newTestService(newFakeStore()).Book(context.Background(), req)
	require.ErrorIs(t, err, ErrClinicUnavailable)
}

func TestBookRejectsOverlapForSameVet(t *testing.T) {
	store := newFakeStore()
	store.booked = []model.Appointment{{ID: "a", VetID: "vet-1", AppointmentDate: time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC), DurationMinutes: 30}}
	_, err := newTestService(store).Book(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrSlotTaken)

	req := validRequest()
	req.VetID = "vet-2"
	_, err = newTestService(store).Book(context.Background(), req)
	require.NoError(t, err)
}

func TestAvailability(t *testing.T) {
	store := newFakeStore()
	store.booked = []model.Appointment{
		{VetID: "vet-1", AppointmentDate: time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC), DurationMinutes: 60},
		{VetID: "vet-2", AppointmentDate: time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC), DurationMinutes: 30},
	}
	svc := newTestService(store)

	// Saturday 09:00-13:00 with 30 minute steps.
	got, err := svc.Availability(context.Background(), AvailabilityQuery{Clinic: testClinic(), ServiceID: "svc-1", Date: "2026-03-07"})
	require.NoError(t, err)
	require.True(t, got.Open)
	require.Len(t, got.Slots, 7)
	require.Equal(t, time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC), got.Slots[0])

	got, err = svc.Availability(context.Background(), AvailabilityQuery{Clinic: testClinic(), ServiceID: "svc-1", VetID: "vet-1", Date: "2026-03-07"})
	require.NoError(t, err)
	require.Len(t, got.Slots, 6)
	require.Equal(t, time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), got.Slots[0])

	got, err = svc.Availability(context.Background(), AvailabilityQuery{Clinic: testClinic(), ServiceID: "svc-1", Date: "2026-03-08"})
	require.NoError(t, err)
	require.False(t, got.Open)
	require.Equal(t, "closed", got.Reason)
	require.Empty(t, got.Slots)

	_, err = svc.Availability(context.Background(), AvailabilityQuery{Clinic: testClinic(), ServiceID: "nope", Date: "2026-03-07"})
	require.True(t, model.IsValidation(err))
}

func TestBookOnDSTChangeUsesWallClockHours(t *testing.T) {
	// 2026-03-08 is the US spring-forward Sunday.
	clinic := testClinic()
	clinic.Timezone = "America/New_York"
	clinic.BusinessHours = model.BusinessHours{"sunday": {Open: "09:00", Close: "17:00"}}

	req := validRequest()
	req.Clinic = clinic
	req.Date = "2026-03-08"
	req.Time = "09:00"
	store := newFakeStore()
	b, err := newTestService(store).Book(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 9, b.Appointment.AppointmentDate.In(clinic.Location()).Hour())

	req.Time = "16:45"
	_, err = newTestService(newFakeStore()).Book(context.Background(), req)
	require.True(t, model.IsValidation(err), "got %v", err)

	got, err := newTestService(newFakeStore()).Availability(context.Background(), AvailabilityQuery{Clinic: clinic, ServiceID: "svc-1", Date: "2026-03-08"})
	require.NoError(t, err)
	require.True(t, got.Open)
	require.Len(t, got.Slots, 16)
	require.Equal(t, 9, got.Slots[0].In(clinic.Location()).Hour())
	require.Equal(t, 16, got.Slots[15].In(clinic.Location()).Hour())
	require.Equal(t, 30, got.Slots[15].In(clinic.Location()).Minute())
}
