package handlers

import (
	"net/http"
	"strings"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

// PublicClinic serves the booking page data for one clinic: profile, active
// services and active vets. Suspended clinics are listed but not bookable.
func (h *Handler) PublicClinic(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.PathValue("slug"))
	if err := model.ValidateSlug(slug); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.catalog.Clinic(r.Context(), slug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, view)
}
