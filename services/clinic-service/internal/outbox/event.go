package outbox

import (
	"encoding/json"
	"fmt"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	ClinicID      string
	EventType     string
	Payload       []byte
}

const (
	AppointmentBooked        = "clinic.appointment.booked.v1"
	AppointmentConfirmed     = "clinic.appointment.confirmed.v1"
	AppointmentStatusChanged = "clinic.appointment.status_changed.v1"
	InvitationCreated        = "clinic.invitation.created.v1"
	InvitationAccepted       = "clinic.invitation.accepted.v1"
	ClinicOnboarded          = "clinic.onboarded.v1"
	ClinicPlanChanged        = "clinic.plan_changed.v1"
)

// NewEvent marshals payload into an event envelope.
func NewEvent(aggregateType, aggregateID, clinicID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("outbox payload %s: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		ClinicID:      clinicID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
