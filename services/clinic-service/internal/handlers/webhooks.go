package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vetcare/vetcare/libs/httpx"
	"github.com/vetcare/vetcare/services/clinic-service/internal/billing"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/payhere"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

const maxWebhookBody = 64 << 10

type webhookError struct {
	Error string `json:"error"`
}

func webhookFail(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, webhookError{Error: msg})
}

// PayHereNotify handles the PayHere server-to-server notification. The
// signature is the only authentication; nothing changes unless it matches.
func (h *Handler) PayHereNotify(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimSpace(h.cfg.PayHere.MerchantSecret)
	if secret == "" {
		h.metrics.webhook("payhere", "unconfigured")
		webhookFail(w, http.StatusServiceUnavailable, "payhere webhook not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		h.metrics.webhook("payhere", "bad_request")
		webhookFail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	n, err := payhere.ParseNotification(r.PostForm)
	if err != nil {
		h.metrics.webhook("payhere", "bad_request")
		webhookFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payhere.Verify(n, secret); err != nil {
		h.logger.Warn("payhere signature mismatch", "order_id", n.OrderID, "status_code", n.StatusCode)
		h.metrics.webhook("payhere", "invalid_signature")
		webhookFail(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if !n.Success() {
		h.logger.Info("payhere notification without success status",
			"order_id", n.OrderID,
			"status_code", n.StatusCode,
		)
		h.metrics.webhook("payhere", "ignored")
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	ctx := r.Context()
	change, err := h.store.ConfirmAppointment(ctx, n.OrderID, storage.PaymentRef{
		Provider: "payhere",
		Amount:   n.Amount,
		Currency: n.Currency,
	})
	switch {
	case storage.IsNotFound(err):
		h.logger.Warn("payhere notification for unknown order", "order_id", n.OrderID)
		h.metrics.webhook("payhere", "not_found")
		webhookFail(w, http.StatusNotFound, "appointment not found")
		return
	case errors.Is(err, storage.ErrSlotTaken):
		h.logger.Warn("paid appointment slot already taken", "order_id", n.OrderID)
		h.metrics.webhook("payhere", "conflict")
		webhookFail(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("payhere confirmation failed", "order_id", n.OrderID, "err", err)
		httpx.ReportError(r, err)
		h.metrics.webhook("payhere", "error")
		webhookFail(w, http.StatusInternalServerError, "internal error")
		return
	}

	if change.Changed() {
		h.logger.Info("appointment confirmed by payment",
			"appointment_id", change.Appointment.ID,
			"clinic_id", change.Appointment.ClinicID,
			"previous_status", change.PreviousStatus,
			"amount", n.Amount,
			"currency", n.Currency,
		)
		h.metrics.confirmations.Inc()
		h.metrics.webhook("payhere", "confirmed")
		h.notify.BookingConfirmed(ctx, change.Appointment)
	} else if change.PreviousStatus == model.StatusConfirmed {
		h.metrics.webhook("payhere", "replay")
	} else {
		h.logger.Warn("payment for appointment that cannot be confirmed",
			"appointment_id", change.Appointment.ID,
			"clinic_id", change.Appointment.ClinicID,
			"status", change.PreviousStatus,
		)
		h.metrics.webhook("payhere", "ignored")
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StripeWebhook applies subscription events to clinic plans.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		webhookFail(w, http.StatusServiceUnavailable, "stripe webhook not configured")
		return
	}
	sig := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	if sig == "" {
		h.metrics.webhook("stripe", "bad_request")
		webhookFail(w, http.StatusBadRequest, "missing Stripe-Signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		webhookFail(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	res, err := h.billing.HandleWebhook(r.Context(), body, sig)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		h.metrics.webhook("stripe", "unconfigured")
		webhookFail(w, http.StatusServiceUnavailable, "stripe webhook not configured")
		return
	case errors.Is(err, billing.ErrInvalidSignature):
		h.metrics.webhook("stripe", "invalid_signature")
		webhookFail(w, http.StatusBadRequest, "invalid signature")
		return
	case storage.IsNotFound(err):
		h.logger.Warn("stripe event for unknown clinic", "clinic_id", res.ClinicID, "provider_event_id", res.EventID)
		h.metrics.webhook("stripe", "not_found")
		webhookFail(w, http.StatusNotFound, "clinic not found")
		return
	case err != nil:
		h.logger.Error("stripe webhook failed", "provider_event_id", res.EventID, "err", err)
		httpx.ReportError(r, err)
		h.metrics.webhook("stripe", "error")
		webhookFail(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := "ok"
	if res.Duplicate {
		status = "duplicate"
	}
	if res.ClinicID != "" && !res.Duplicate {
		h.invalidateCatalog(r.Context(), res.ClinicID)
	}
	h.metrics.webhook("stripe", status)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}
