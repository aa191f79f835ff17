package handlers

import (
	"net/http"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type dashboardSummary struct {
	Clinic model.Clinic `json:"clinic"`
	storage.ClinicSummary
}

type portalSummary struct {
	Pets     []model.Pet                `json:"pets"`
	Upcoming []model.AppointmentDetails `json:"upcoming"`
}

// Dashboard is the clinic home page: today's calendar plus headline counts.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ViewDashboard)
	if !ok {
		return
	}
	ctx := r.Context()
	clinic, err := h.store.GetClinic(ctx, clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	now := h.now()
	start, end := clinicDay(now, clinic.Location())
	sum, err := h.store.ClinicSummary(ctx, clinicID, start, end, now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum.Today = orEmpty(sum.Today)
	writeOK(w, http.StatusOK, dashboardSummary{Clinic: clinic, ClinicSummary: sum})
}

// Portal is the pet owner home page.
func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ViewPortal)
	if !ok {
		return
	}
	ctx := r.Context()
	pets, err := h.store.ListPets(ctx, storage.PetScope{OwnerID: id.UserID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.store.ListAppointments(ctx, model.AppointmentFilter{OwnerID: id.UserID, From: h.now(), Limit: 50})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	upcoming := make([]model.AppointmentDetails, 0, len(list))
	for _, a := range list {
		if a.Status.Open() {
			upcoming = append(upcoming, a)
		}
	}
	writeOK(w, http.StatusOK, portalSummary{Pets: orEmpty(pets), Upcoming: upcoming})
}
