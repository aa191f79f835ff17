package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vetcare/vetcare/libs/httpx"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type invitationPreview struct {
	Email      string                 `json:"email"`
	Role       identity.Role          `json:"role"`
	ClinicName string                 `json:"clinic_name"`
	ClinicSlug string                 `json:"clinic_slug"`
	Status     model.InvitationStatus `json:"status"`
	ExpiresAt  string                 `json:"expires_at"`
}

func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageInvitations)
	if !ok {
		return
	}
	invs, err := h.store.ListInvitations(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(invs))
}

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.ManageInvitations)
	if !ok {
		return
	}
	var req createInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := model.NormalizeEmail(req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil || !role.Invitable() {
		h.fail(w, r, model.Invalid("role", "must be CLINIC_ADMIN, VET or RECEPTIONIST"))
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	registered, err := h.store.EmailRegistered(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if registered {
		h.logger.Info("invitation for registered email rejected", "clinic_id", clinicID)
		h.fail(w, r, storage.ErrEmailTaken)
		return
	}

	token, err := newOpaqueToken()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv := model.Invitation{
		ClinicID:    clinicID,
		Email:       email,
		Role:        role,
		Token:       token,
		ExpiresAt:   h.now().Add(model.InvitationTTL).UTC(),
		InvitedByID: id.UserID,
	}
	if err := h.store.CreateInvitation(r.Context(), &inv); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("invitation created", "clinic_id", clinicID, "invitation_id", inv.ID, "role", role)
	h.notify.Invitation(r.Context(), inv, clinic.Name)
	writeOK(w, http.StatusCreated, inv)
}

func (h *Handler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageInvitations)
	if !ok {
		return
	}
	if err := h.store.RevokeInvitation(r.Context(), clinicID, pathID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// PreviewInvitation lets the invite page show who is inviting whom before the
// account is created.
func (h *Handler) PreviewInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.GetInvitationByToken(r.Context(), strings.TrimSpace(r.PathValue("token")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), inv.ClinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := inv.Status
	if inv.Lapsed(h.now()) {
		status = model.InvitationExpired
	}
	writeOK(w, http.StatusOK, invitationPreview{
		Email:      inv.Email,
		Role:       inv.Role,
		ClinicName: clinic.Name,
		ClinicSlug: clinic.Slug,
		Status:     status,
		ExpiresAt:  inv.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// AcceptInvitation creates the invited staff account and signs it in.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		h.fail(w, r, model.Invalid("token", "is required"))
		return
	}
	inv, err := h.store.GetInvitationByToken(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := newAccount(inv.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv, err = h.store.AcceptInvitation(r.Context(), token, &user, h.now())
	switch {
	case errors.Is(err, storage.ErrInvitationExpired):
		h.logger.Info("expired invitation presented", "invitation_id", inv.ID, "clinic_id", inv.ClinicID)
		httpx.WriteError(w, http.StatusGone, "invitation has expired")
		return
	case errors.Is(err, storage.ErrInvitationUnusable):
		httpx.WriteError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	h.logger.Info("invitation accepted", "invitation_id", inv.ID, "clinic_id", inv.ClinicID, "user_id", user.ID)
	h.startSession(w, r, http.StatusCreated, user, "")
}
