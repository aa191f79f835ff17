// Package booking computes open appointment slots and validates booking requests.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

var (
	ErrClinicUnavailable = errors.New("clinic is not accepting bookings")
	ErrSlotTaken         = storage.ErrSlotTaken
)

// Store is the persistence the booking flow reads and writes.
type Store interface {
	GetService(ctx context.Context, clinicID, id string) (model.Service, error)
	GetVet(ctx context.Context, clinicID, vetID string) (model.User, error)
	ListVets(ctx context.Context, clinicID string) ([]model.User, error)
	GetPet(ctx context.Context, id string, scope storage.PetScope) (model.Pet, error)
	ListHolidays(ctx context.Context, clinicID string, from, to time.Time) ([]model.PublicHoliday, error)
	BookedIntervals(ctx context.Context, clinicID, vetID string, start, end time.Time) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
}

type Service struct {
	store Store
	step  time.Duration
	now   func() time.Time
}

func NewService(store Store, step time.Duration) *Service {
	if step <= 0 {
		step = 15 * time.Minute
	}
	return &Service{store: store, step: step, now: time.Now}
}

type AvailabilityQuery struct {
	Clinic    model.Clinic
	ServiceID string
	VetID     string
	Date      string
}

type Availability struct {
	Date    string      `json:"date"`
	Open    bool        `json:"open"`
	Reason  string      `json:"reason,omitempty"`
	Slots   []time.Time `json:"slots"`
	Service string      `json:"service_id"`
	VetID   string      `json:"vet_id,omitempty"`
}

// Availability lists open start times for the service on one clinic-local date.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	out := Availability{Date: strings.TrimSpace(q.Date), Service: q.ServiceID, VetID: q.VetID, Slots: []time.Time{}}
	if !q.Clinic.Bookable() {
		return out, ErrClinicUnavailable
	}
	loc := q.Clinic.Location()
	day, err := parseDate(out.Date, loc)
	if err != nil {
		return out, err
	}
	svc, err := s.lookupService(ctx, q.Clinic.ID, q.ServiceID)
	if err != nil {
		return out, err
	}

	windowStart, windowEnd, ok := q.Clinic.BusinessHours.Window(day, loc)
	if !ok {
		out.Reason = "closed"
		return out, nil
	}
	if holiday, err := s.holidayOn(ctx, q.Clinic.ID, day); err != nil {
		return out, err
	} else if holiday != "" {
		out.Reason = "holiday: " + holiday
		return out, nil
	}

	vetIDs, err := s.candidateVets(ctx, q.Clinic.ID, q.VetID)
	if err != nil {
		return out, err
	}
	booked, err := s.store.BookedIntervals(ctx, q.Clinic.ID, q.VetID, windowStart, windowEnd)
	if err != nil {
		return out, err
	}
	calendars := calendarsFor(vetIDs, booked)

	out.Open = true
	slots := AvailableSlotsAny(windowStart, windowEnd, svc.Duration(), s.step, calendars, s.now().In(loc))
	if slots != nil {
		out.Slots = slots
	}
	return out, nil
}

// Request is a booking submission from the portal or the front desk.
type Request struct {
	Clinic     model.Clinic
	OwnerID    string
	PetID      string
	ServiceID  string
	VetID      string
	Date       string
	Time       string
	Notes      string
	BookedByID string
}

type Booking struct {
	Appointment model.Appointment
	Service     model.Service
	Pet         model.Pet
	Vet         *model.User
}

// Book validates req against the clinic calendar and stores a PENDING appointment.
func (s *Service) Book(ctx context.Context, req Request) (Booking, error) {
	if err := req.validateShape(); err != nil {
		return Booking{}, err
	}
	if !req.Clinic.Bookable() {
		return Booking{}, ErrClinicUnavailable
	}
	loc := req.Clinic.Location()
	start, err := parseDateTime(req.Date, req.Time, loc)
	if err != nil {
		return Booking{}, err
	}
	if !start.After(s.now()) {
		return Booking{}, model.Invalid("time", "must be in the future")
	}

	pet, err := s.store.GetPet(ctx, req.PetID, storage.PetScope{ClinicID: req.Clinic.ID, OwnerID: req.OwnerID})
	if err != nil {
		if storage.IsNotFound(err) {
			return Booking{}, model.Invalid("pet_id", "pet not found")
		}
		return Booking{}, err
	}
	svc, err := s.lookupService(ctx, req.Clinic.ID, req.ServiceID)
	if err != nil {
		return Booking{}, err
	}
	var vet *model.User
	if req.VetID != "" {
		v, err := s.store.GetVet(ctx, req.Clinic.ID, req.VetID)
		if err != nil {
			if storage.IsNotFound(err) {
				return Booking{}, model.Invalid("vet_id", "vet not found")
			}
			return Booking{}, err
		}
		vet = &v
	}

	end := start.Add(svc.Duration())
	open, closeAt, ok := req.Clinic.BusinessHours.Window(start, loc)
	if !ok {
		return Booking{}, model.Invalid("date", "clinic is closed on that day")
	}
	if start.Before(open) || end.After(closeAt) {
		return Booking{}, model.Invalid("time", fmt.Sprintf("must be within business hours %s-%s",
			open.Format("15:04"), closeAt.Format("15:04")))
	}
	if holiday, err := s.holidayOn(ctx, req.Clinic.ID, start); err != nil {
		return Booking{}, err
	} else if holiday != "" {
		return Booking{}, model.Invalid("date", "clinic is closed for "+holiday)
	}
	if vet != nil {
		booked, err := s.store.BookedIntervals(ctx, req.Clinic.ID, vet.ID, start, end)
		if err != nil {
			return Booking{}, err
		}
		if len(booked) > 0 {
			return Booking{}, ErrSlotTaken
		}
	}

	appt := model.Appointment{
		ClinicID:        req.Clinic.ID,
		PetID:           pet.ID,
		ServiceID:       svc.ID,
		BookedByID:      req.BookedByID,
		AppointmentDate: start.UTC(),
		DurationMinutes: svc.DurationMinutes,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if vet != nil {
		appt.VetID = vet.ID
	}
	if err := s.store.CreateAppointment(ctx, &appt); err != nil {
		return Booking{}, err
	}
	return Booking{Appointment: appt, Service: svc, Pet: pet, Vet: vet}, nil
}

// ValidateVet checks that vetID is an active VET of the clinic; empty is allowed.
func (s *Service) ValidateVet(ctx context.Context, clinicID, vetID string) error {
	if vetID == "" {
		return nil
	}
	if _, err := s.store.GetVet(ctx, clinicID, vetID); err != nil {
		if storage.IsNotFound(err) {
			return model.Invalid("vet_id", "vet not found")
		}
		return err
	}
	return nil
}

func (r *Request) validateShape() error {
	r.PetID = strings.TrimSpace(r.PetID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.VetID = strings.TrimSpace(r.VetID)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	switch {
	case r.ServiceID == "":
		return model.Invalid("service_id", "is required")
	case r.PetID == "":
		return model.Invalid("pet_id", "is required")
	case r.Date == "":
		return model.Invalid("date", "is required")
	case r.Time == "":
		return model.Invalid("time", "is required")
	case r.BookedByID == "":
		return model.Invalid("booked_by_id", "is required")
	case len(r.Notes) > 2000:
		return model.Invalid("notes", "must be at most 2000 characters")
	}
	return nil
}

func (s *Service) lookupService(ctx context.Context, clinicID, serviceID string) (model.Service, error) {
	if strings.TrimSpace(serviceID) == "" {
		return model.Service{}, model.Invalid("service_id", "is required")
	}
	svc, err := s.store.GetService(ctx, clinicID, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Service{}, model.Invalid("service_id", "service not found")
		}
		return model.Service{}, err
	}
	return svc, nil
}

// holidayOn returns the holiday name on the clinic-local date of t, if any.
func (s *Service) holidayOn(ctx context.Context, clinicID string, t time.Time) (string, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	holidays, err := s.store.ListHolidays(ctx, clinicID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}
	for _, h := range holidays {
		if model.SameDay(h.Date, day) {
			return h.Name, nil
		}
	}
	return "", nil
}

func (s *Service) candidateVets(ctx context.Context, clinicID, vetID string) ([]string, error) {
	if vetID != "" {
		if err := s.ValidateVet(ctx, clinicID, vetID); err != nil {
			return nil, err
		}
		return []string{vetID}, nil
	}
	vets, err := s.store.ListVets(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(vets))
	for _, v := range vets {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// calendarsFor groups booked appointments by vet. Appointments without a vet
// do not block any calendar.
func calendarsFor(vetIDs []string, booked []model.Appointment) [][]Interval {
	byVet := make(map[string][]Interval, len(vetIDs))
	for _, a := range booked {
		if a.VetID == "" {
			continue
		}
		byVet[a.VetID] = append(byVet[a.VetID], Interval{Start: a.AppointmentDate, End: a.End()})
	}
	calendars := make([][]Interval, 0, len(vetIDs))
	for _, id := range vetIDs {
		calendars = append(calendars, byVet[id])
	}
	return calendars
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, model.Invalid("date", "is required")
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, model.Invalid("date", "must be YYYY-MM-DD")
	}
	return d, nil
}

func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if _, err := parseDate(date, loc); err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly+" 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, model.Invalid("time", "must be HH:MM")
	}
	return t, nil
}
