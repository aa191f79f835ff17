package handlers

import (
	"net/http"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

type serviceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
	Color           string `json:"color"`
}

func (s serviceRequest) input() model.ServiceInput {
	return model.ServiceInput{
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		Currency:        s.Currency,
		Color:           s.Color,
	}
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ViewDashboard)
	if !ok {
		return
	}
	services, err := h.store.ListServices(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(services))
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageServices)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc := model.Service{ClinicID: clinicID}
	if err := req.input().Apply(&svc); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.CreateService(r.Context(), &svc); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusCreated, svc)
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageServices)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := h.store.GetService(r.Context(), clinicID, pathID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.input().Apply(&svc); err != nil {
		h.fail(w, r, err)
		return
	}
	svc, err = h.store.UpdateService(r.Context(), svc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusOK, svc)
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageServices)
	if !ok {
		return
	}
	if err := h.store.DeactivateService(r.Context(), clinicID, pathID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusOK, nil)
}
