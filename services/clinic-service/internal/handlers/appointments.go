package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/booking"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/payhere"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type bookingRequest struct {
	ClinicSlug string `json:"clinic_slug"`
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
	PetID      string `json:"pet_id"`
	ServiceID  string `json:"service_id"`
	VetID      string `json:"vet_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Notes      string `json:"notes"`
}

type bookingResponse struct {
	Appointment model.AppointmentDetails `json:"appointment"`
	Payment     *payhere.Checkout        `json:"payment,omitempty"`
}

type appointmentUpdateRequest struct {
	Status *string `json:"status"`
	VetID  *string `json:"vet_id"`
	Notes  *string `json:"notes"`
}

// ListClinicAppointments lists the clinic calendar. from/to are clinic-local
// dates, to inclusive.
func (h *Handler) ListClinicAppointments(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ViewAppointments)
	if !ok {
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	filter, err := appointmentFilter(q, clinic.Location())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter.ClinicID = clinicID
	filter.VetID = strings.TrimSpace(q.Get("vet_id"))
	filter.PetID = strings.TrimSpace(q.Get("pet_id"))
	list, err := h.store.ListAppointments(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(list))
}

// CreateClinicAppointment books on behalf of a pet owner at the front desk.
func (h *Handler) CreateClinicAppointment(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.BookAppointment)
	if !ok {
		return
	}
	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	clinic, err := h.store.GetClinic(ctx, clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if email := strings.ToLower(strings.TrimSpace(req.OwnerEmail)); ownerID == "" && email != "" {
		owner, err := h.store.GetOwner(ctx, "", email)
		if err != nil {
			if storage.IsNotFound(err) {
				h.fail(w, r, model.Invalid("owner_email", "pet owner not found"))
				return
			}
			h.fail(w, r, err)
			return
		}
		ownerID = owner.ID
	}
	h.book(w, r, "front_desk", booking.Request{
		Clinic:     clinic,
		OwnerID:    ownerID,
		PetID:      req.PetID,
		ServiceID:  req.ServiceID,
		VetID:      req.VetID,
		Date:       req.Date,
		Time:       req.Time,
		Notes:      req.Notes,
		BookedByID: id.UserID,
	})
}

// UpdateClinicAppointment applies a staff status change, vet reassignment or
// note edit. CONFIRMED can only come from a verified payment.
func (h *Handler) UpdateClinicAppointment(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.UpdateAppointmentStatus)
	if !ok {
		return
	}
	var req appointmentUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	var upd storage.AppointmentUpdate
	if req.Status != nil {
		status, err := model.ParseAppointmentStatus(*req.Status)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if status == model.StatusConfirmed {
			h.fail(w, r, model.Invalid("status", "CONFIRMED is set by a verified payment"))
			return
		}
		upd.Status = &status
	}
	if req.VetID != nil {
		vetID := strings.TrimSpace(*req.VetID)
		if err := h.booking.ValidateVet(ctx, clinicID, vetID); err != nil {
			h.fail(w, r, err)
			return
		}
		upd.VetID = &vetID
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if len(notes) > 2000 {
			h.fail(w, r, model.Invalid("notes", "must be at most 2000 characters"))
			return
		}
		upd.Notes = &notes
	}
	if upd.Status == nil && upd.VetID == nil && upd.Notes == nil {
		h.fail(w, r, model.Invalid("", "no fields to update"))
		return
	}

	change, err := h.store.UpdateAppointment(ctx, clinicID, pathID(r), upd, model.StaffCanSet)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if change.Changed() {
		h.logger.Info("appointment status changed",
			"clinic_id", clinicID,
			"appointment_id", change.Appointment.ID,
			"from", change.PreviousStatus,
			"to", change.Appointment.Status,
			"by", id.UserID,
		)
		h.notify.StatusChanged(ctx, change.Appointment)
	}
	writeOK(w, http.StatusOK, change.Appointment)
}

func (h *Handler) ListOwnAppointments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ViewPortal)
	if !ok {
		return
	}
	loc, err := h.ownerLocation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := appointmentFilter(r.URL.Query(), loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter.OwnerID = id.UserID
	list, err := h.store.ListAppointments(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(list))
}

// CreateOwnAppointment books for one of the caller's pets at the clinic named
// by clinic_slug, or the owner's own clinic.
func (h *Handler) CreateOwnAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.BookAppointment)
	if !ok {
		return
	}
	if id.Role != identity.PetOwner {
		h.fail(w, r, identity.ErrForbidden)
		return
	}
	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	clinic, err := h.ownerClinic(r.Context(), id, req.ClinicSlug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.book(w, r, "portal", booking.Request{
		Clinic:     clinic,
		OwnerID:    id.UserID,
		PetID:      req.PetID,
		ServiceID:  req.ServiceID,
		VetID:      req.VetID,
		Date:       req.Date,
		Time:       req.Time,
		Notes:      req.Notes,
		BookedByID: id.UserID,
	})
}

func (h *Handler) CancelOwnAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ViewPortal)
	if !ok {
		return
	}
	change, err := h.store.CancelOwnedAppointment(r.Context(), id.UserID, pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("appointment cancelled by owner", "appointment_id", change.Appointment.ID, "clinic_id", change.Appointment.ClinicID)
	h.notify.StatusChanged(r.Context(), change.Appointment)
	writeOK(w, http.StatusOK, change.Appointment)
}

// OwnerAvailability lists open slots at ?clinic=<slug>.
func (h *Handler) OwnerAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.BookAppointment)
	if !ok {
		return
	}
	clinic, err := h.ownerClinic(r.Context(), id, r.URL.Query().Get("clinic"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.availability(w, r, clinic)
}

// ClinicAvailability is the front-desk view of open slots.
func (h *Handler) ClinicAvailability(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.BookAppointment)
	if !ok {
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.availability(w, r, clinic)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request, clinic model.Clinic) {
	q := r.URL.Query()
	avail, err := h.booking.Availability(r.Context(), booking.AvailabilityQuery{
		Clinic:    clinic,
		ServiceID: strings.TrimSpace(q.Get("service_id")),
		VetID:     strings.TrimSpace(q.Get("vet_id")),
		Date:      q.Get("date"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, avail)
}

// book runs the booking flow and answers with the stored appointment plus the
// payment redirect when one is due.
func (h *Handler) book(w http.ResponseWriter, r *http.Request, channel string, req booking.Request) {
	ctx := r.Context()
	b, err := h.booking.Book(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.booked(channel)
	details, err := h.store.GetAppointment(ctx, b.Appointment.ID, storage.AppointmentScope{ClinicID: req.Clinic.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("appointment booked",
		"appointment_id", details.ID,
		"clinic_id", details.ClinicID,
		"service_id", details.ServiceID,
		"vet_id", details.VetID,
		"channel", channel,
	)

	resp := bookingResponse{Appointment: details}
	if h.cfg.PayHere.Enabled() && b.Service.PriceCents > 0 {
		first, last := payhere.SplitName(details.OwnerName)
		checkout, err := h.cfg.PayHere.Checkout(payhere.CheckoutRequest{
			OrderID:   details.ID,
			Items:     details.ServiceName,
			Amount:    model.FormatAmount(details.PriceCents),
			Currency:  details.Currency,
			FirstName: first,
			LastName:  last,
			Email:     details.OwnerEmail,
			Phone:     details.OwnerPhone,
		})
		if err != nil {
			h.logger.Error("payhere checkout build failed", "appointment_id", details.ID, "err", err)
		} else {
			resp.Payment = &checkout
		}
	}
	h.notify.BookingReceived(ctx, details, resp.Payment != nil)
	writeOK(w, http.StatusCreated, resp)
}

// ownerClinic resolves the clinic a pet owner acts on: the one named by slug,
// else the owner's own.
func (h *Handler) ownerClinic(ctx context.Context, id *identity.Identity, slug string) (model.Clinic, error) {
	if slug = strings.TrimSpace(slug); slug != "" {
		clinic, err := h.store.GetClinicBySlug(ctx, slug)
		if storage.IsNotFound(err) {
			return model.Clinic{}, model.Invalid("clinic", "clinic not found")
		}
		return clinic, err
	}
	clinicID := id.ClinicID
	if clinicID == "" {
		user, err := h.store.GetUser(ctx, id.UserID)
		if err != nil {
			return model.Clinic{}, err
		}
		clinicID = user.ClinicID
	}
	if clinicID == "" {
		return model.Clinic{}, model.Invalid("clinic", "is required")
	}
	return h.store.GetClinic(ctx, clinicID)
}

// ownerLocation is the time zone of the owner's clinic, or UTC for owners not
// tied to one.
func (h *Handler) ownerLocation(ctx context.Context, id *identity.Identity) (*time.Location, error) {
	clinic, err := h.ownerClinic(ctx, id, "")
	switch {
	case model.IsValidation(err):
		return time.UTC, nil
	case err != nil:
		return nil, err
	}
	return clinic.Location(), nil
}

func appointmentFilter(q url.Values, loc *time.Location) (model.AppointmentFilter, error) {
	var f model.AppointmentFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := model.ParseAppointmentStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return f, model.Invalid("from", "must be YYYY-MM-DD")
		}
		f.From = d
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return f, model.Invalid("to", "must be YYYY-MM-DD")
		}
		f.To = d.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return f, model.Invalid("to", "must not be before from")
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, model.Invalid("limit", "must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}
