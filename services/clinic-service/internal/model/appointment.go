package model

import (
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusPending       AppointmentStatus = "PENDING"
	StatusConfirmed     AppointmentStatus = "CONFIRMED"
	StatusPaymentFailed AppointmentStatus = "PAYMENT_FAILED"
	StatusCancelled     AppointmentStatus = "CANCELLED"
	StatusCompleted     AppointmentStatus = "COMPLETED"
	StatusNoShow        AppointmentStatus = "NO_SHOW"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusPaymentFailed, StatusCancelled, StatusCompleted, StatusNoShow:
		return st, nil
	}
	return "", Invalid("status", "unknown appointment status")
}

// Open reports whether the appointment still occupies its slot.
func (s AppointmentStatus) Open() bool {
	return s == StatusPending || s == StatusConfirmed
}

// PaymentCanConfirm reports whether a verified payment may move an
// appointment to CONFIRMED. Closed and cancelled appointments are left alone.
func PaymentCanConfirm(from AppointmentStatus) bool {
	return from == StatusPending || from == StatusPaymentFailed
}

// StaffCanSet reports whether clinic staff may move an appointment from one
// status to another. CONFIRMED is only reachable from a verified payment.
func StaffCanSet(from, to AppointmentStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return from == StatusPending || from == StatusConfirmed || from == StatusPaymentFailed
	case StatusCompleted, StatusNoShow:
		return from == StatusPending || from == StatusConfirmed
	case StatusPending:
		return from == StatusCancelled || from == StatusNoShow || from == StatusPaymentFailed
	default:
		return false
	}
}

type Appointment struct {
	ID              string            `json:"id"`
	ClinicID        string            `json:"clinic_id"`
	PetID           string            `json:"pet_id"`
	ServiceID       string            `json:"service_id"`
	VetID           string            `json:"vet_id,omitempty"`
	BookedByID      string            `json:"booked_by_id"`
	AppointmentDate time.Time         `json:"appointment_date"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          AppointmentStatus `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (a Appointment) End() time.Time {
	return a.AppointmentDate.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// AppointmentDetails joins an appointment with the names shown in views and notifications.
type AppointmentDetails struct {
	Appointment
	PetName     string `json:"pet_name"`
	ServiceName string `json:"service_name"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	ClinicName  string `json:"clinic_name"`
	ClinicTZ    string `json:"-"`
	VetName     string `json:"vet_name,omitempty"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name"`
	OwnerEmail  string `json:"owner_email"`
	OwnerPhone  string `json:"owner_phone,omitempty"`
}

// LocalDate renders the appointment start in the clinic timezone.
func (d AppointmentDetails) LocalDate() time.Time {
	return d.AppointmentDate.In(Clinic{Timezone: d.ClinicTZ}.Location())
}

// AppointmentFilter narrows dashboard and portal listings.
type AppointmentFilter struct {
	ClinicID string
	OwnerID  string
	VetID    string
	PetID    string
	Status   AppointmentStatus
	From     time.Time
	To       time.Time
	Limit    int
}
