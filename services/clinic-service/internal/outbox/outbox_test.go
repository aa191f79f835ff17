package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/libs/kafkax"
)

func TestNewEventMarshalsPayload(t *testing.T) {
	evt, err := NewEvent("appointment", "apt_1", "c1", AppointmentBooked, map[string]string{"status": "PENDING"})
	require.NoError(t, err)
	require.Equal(t, "appointment", evt.AggregateType)
	require.Equal(t, "c1", evt.ClinicID)
	require.JSONEq(t, `{"status":"PENDING"}`, string(evt.Payload))

	_, err = NewEvent("appointment", "apt_1", "c1", AppointmentBooked, make(chan int))
	require.Error(t, err)
}

func TestMessageCarriesHeaders(t *testing.T) {
	msg := Message(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "apt_1",
		ClinicID:    "c1",
		EventType:   AppointmentConfirmed,
		Payload:     []byte(`{}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})
	require.Equal(t, AppointmentConfirmed, msg.Topic)
	require.Equal(t, "apt_1", string(msg.Key))
	require.Equal(t, "evt-1", kafkax.HeaderValue(msg.Headers, "event_id"))
	require.Equal(t, "c1", kafkax.HeaderValue(msg.Headers, "clinic_id"))
}
