package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

const whenLayout = "Mon 02 Jan 2006, 15:04 MST"

// Dispatcher sends booking and invitation notifications. Every send is best
// effort: failures are logged and counted, never returned.
type Dispatcher struct {
	email    EmailSender
	sms      SMSSender
	renderer *Renderer
	logger   *slog.Logger
	timeout  time.Duration
	baseURL  string
	sent     *prometheus.CounterVec
}

type DispatcherConfig struct {
	Timeout    time.Duration
	BaseURL    string
	Registerer prometheus.Registerer
}

func NewDispatcher(email EmailSender, sms SMSSender, renderer *Renderer, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetcare",
		Name:      "notifications_total",
		Help:      "Notifications attempted by channel, template and outcome.",
	}, []string{"channel", "template", "outcome"})
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(sent)
	}
	return &Dispatcher{
		email:    email,
		sms:      sms,
		renderer: renderer,
		logger:   logger,
		timeout:  cfg.Timeout,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		sent:     sent,
	}
}

func appointmentData(d model.AppointmentDetails) AppointmentData {
	return AppointmentData{
		ClinicName:    d.ClinicName,
		RecipientName: d.OwnerName,
		PetName:       d.PetName,
		ServiceName:   d.ServiceName,
		VetName:       d.VetName,
		When:          d.LocalDate().Format(whenLayout),
		Status:        strings.ReplaceAll(strings.ToLower(string(d.Status)), "_", " "),
	}
}

// BookingReceived tells the owner a booking was stored (email and SMS).
func (d *Dispatcher) BookingReceived(ctx context.Context, appt model.AppointmentDetails, paymentRequired bool) {
	data := appointmentData(appt)
	data.PaymentRequired = paymentRequired
	d.sendEmail(ctx, TemplateBookingReceived, appt.OwnerEmail, "Booking received: "+appt.PetName, data,
		"appointment_id", appt.ID, "clinic_id", appt.ClinicID)
	d.sendSMS(ctx, TemplateBookingReceived, appt.OwnerPhone,
		appt.ClinicName+": booking for "+appt.PetName+" on "+data.When+" received.",
		"appointment_id", appt.ID, "clinic_id", appt.ClinicID)
}

// BookingConfirmed is sent once a payment confirms the appointment.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, appt model.AppointmentDetails) {
	data := appointmentData(appt)
	d.sendEmail(ctx, TemplateBookingConfirmed, appt.OwnerEmail, "Appointment confirmed: "+appt.PetName, data,
		"appointment_id", appt.ID, "clinic_id", appt.ClinicID)
}

// StatusChanged tells the owner about a staff-made status change.
func (d *Dispatcher) StatusChanged(ctx context.Context, appt model.AppointmentDetails) {
	data := appointmentData(appt)
	d.sendEmail(ctx, TemplateStatusChanged, appt.OwnerEmail, "Appointment "+data.Status+": "+appt.PetName, data,
		"appointment_id", appt.ID, "clinic_id", appt.ClinicID)
	d.sendSMS(ctx, TemplateStatusChanged, appt.OwnerPhone,
		appt.ClinicName+": appointment for "+appt.PetName+" on "+data.When+" is now "+data.Status+".",
		"appointment_id", appt.ID, "clinic_id", appt.ClinicID)
}

// Invitation emails the accept link for a staff invitation.
func (d *Dispatcher) Invitation(ctx context.Context, inv model.Invitation, clinicName string) {
	data := InvitationData{
		ClinicName: clinicName,
		Role:       strings.ReplaceAll(strings.ToLower(string(inv.Role)), "_", " "),
		Link:       d.InvitationLink(inv.Token),
		Expires:    inv.ExpiresAt.UTC().Format(whenLayout),
	}
	d.sendEmail(ctx, TemplateInvitation, inv.Email, "You're invited to "+clinicName, data,
		"invitation_id", inv.ID, "clinic_id", inv.ClinicID)
}

func (d *Dispatcher) InvitationLink(token string) string {
	return d.baseURL + "/invite?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) sendEmail(ctx context.Context, tmpl, to, subject string, data any, attrs ...any) {
	if d.email == nil || to == "" {
		return
	}
	html, err := d.renderer.Render(tmpl, data)
	if err != nil {
		d.logger.Error("email render failed", append(attrs, "template", tmpl, "err", err)...)
		d.sent.WithLabelValues("email", tmpl, "error").Inc()
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.email.Send(ctx, Email{To: to, Subject: subject, HTML: html}); err != nil {
		d.logger.Error("email send failed", append(attrs, "template", tmpl, "provider", d.email.ProviderID(), "err", err)...)
		d.sent.WithLabelValues("email", tmpl, "error").Inc()
		return
	}
	d.sent.WithLabelValues("email", tmpl, "sent").Inc()
}

func (d *Dispatcher) sendSMS(ctx context.Context, tmpl, to, body string, attrs ...any) {
	if d.sms == nil || to == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.sms.Send(ctx, to, body); err != nil {
		d.logger.Error("sms send failed", append(attrs, "template", tmpl, "provider", d.sms.ProviderID(), "err", err)...)
		d.sent.WithLabelValues("sms", tmpl, "error").Inc()
		return
	}
	d.sent.WithLabelValues("sms", tmpl, "sent").Inc()
}
