package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type adminClinicRequest struct {
	Status *string `json:"status"`
	Plan   *string `json:"plan"`
	Active *bool   `json:"active"`
}

type adminUserRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) AdminSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, identity.ManageClinics); !ok {
		return
	}
	sum, err := h.store.PlatformSummary(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, sum)
}

// AdminClinics lists clinics; ?include_inactive=true shows deactivated ones
// so they can be restored.
func (h *Handler) AdminClinics(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, identity.ManageClinics); !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	clinics, err := h.store.ListClinics(r.Context(), includeInactive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(clinics))
}

func (h *Handler) AdminUpdateClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ManageClinics)
	if !ok {
		return
	}
	var req adminClinicRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var upd storage.ClinicAdminUpdate
	if req.Status != nil {
		status, err := model.ParseClinicStatus(*req.Status)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		upd.Status = &status
	}
	if req.Plan != nil {
		plan, err := model.ParsePlan(*req.Plan)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		upd.Plan = &plan
	}
	upd.Active = req.Active
	if upd.Status == nil && upd.Plan == nil && upd.Active == nil {
		h.fail(w, r, model.Invalid("", "no fields to update"))
		return
	}
	h.updateClinic(w, r, id, upd)
}

// AdminDeleteClinic deactivates a clinic; its rows are kept.
func (h *Handler) AdminDeleteClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ManageClinics)
	if !ok {
		return
	}
	inactive := false
	h.updateClinic(w, r, id, storage.ClinicAdminUpdate{Active: &inactive})
}

func (h *Handler) updateClinic(w http.ResponseWriter, r *http.Request, id *identity.Identity, upd storage.ClinicAdminUpdate) {
	clinic, err := h.store.UpdateClinicAdmin(r.Context(), pathID(r), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("clinic updated by platform admin",
		"clinic_id", clinic.ID,
		"status", clinic.Status,
		"plan", clinic.Plan,
		"active", clinic.Active,
		"by", id.UserID,
	)
	h.invalidateCatalog(r.Context(), clinic.ID)
	writeOK(w, http.StatusOK, clinic)
}

// AdminUsers lists users across clinics, filtered by ?clinic_id= and ?role=.
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, identity.ManageUsers); !ok {
		return
	}
	q := r.URL.Query()
	filter := storage.UserFilter{ClinicID: strings.TrimSpace(q.Get("clinic_id")), IncludeInactive: true}
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		role, err := identity.ParseRole(raw)
		if err != nil {
			h.fail(w, r, model.Invalid("role", "unknown role"))
			return
		}
		filter.Roles = []identity.Role{role}
	}
	users, err := h.store.ListUsers(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(users))
}

func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, identity.ManageUsers)
	if !ok {
		return
	}
	var req adminUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		h.fail(w, r, model.Invalid("active", "is required"))
		return
	}
	target := pathID(r)
	if target == id.UserID && !*req.Active {
		h.fail(w, r, model.Invalid("active", "you cannot deactivate yourself"))
		return
	}
	user, err := h.store.SetUserActive(r.Context(), target, *req.Active)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("user activation changed", "user_id", user.ID, "active", user.Active, "by", id.UserID)
	if user.ClinicID != "" && user.Role == identity.Vet {
		h.invalidateCatalog(r.Context(), user.ClinicID)
	}
	writeOK(w, http.StatusOK, user)
}
