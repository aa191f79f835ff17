package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

type settingsRequest struct {
	Name          string              `json:"name"`
	Address       string              `json:"address"`
	Phone         string              `json:"phone"`
	Email         string              `json:"email"`
	Timezone      string              `json:"timezone"`
	BusinessHours model.BusinessHours `json:"business_hours"`
}

type holidayRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageSettings)
	if !ok {
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, clinic)
}

// UpdateSettings replaces the clinic profile and weekly hours. The slug and
// plan are not editable here.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageSettings)
	if !ok {
		return
	}
	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	clinic, err := h.store.GetClinic(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.apply(&clinic); err != nil {
		h.fail(w, r, err)
		return
	}
	clinic, err = h.store.UpdateClinicProfile(r.Context(), clinic)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusOK, clinic)
}

func (req settingsRequest) apply(c *model.Clinic) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Invalid("name", "is required")
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = c.Timezone
	}
	if err := model.ValidateTimezone(tz); err != nil {
		return err
	}
	phone, err := model.NormalizePhone(req.Phone)
	if err != nil {
		return err
	}
	email := ""
	if strings.TrimSpace(req.Email) != "" {
		if email, err = model.NormalizeEmail(req.Email); err != nil {
			return err
		}
	}
	hours := c.BusinessHours
	if req.BusinessHours != nil {
		if err := req.BusinessHours.Validate(); err != nil {
			return err
		}
		hours = req.BusinessHours
	}
	c.Name = name
	c.Address = strings.TrimSpace(req.Address)
	c.Phone = phone
	c.Email = email
	c.Timezone = tz
	c.BusinessHours = hours
	return nil
}

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageSettings)
	if !ok {
		return
	}
	holidays, err := h.store.ListHolidays(r.Context(), clinicID, time.Time{}, time.Time{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(holidays))
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageSettings)
	if !ok {
		return
	}
	var req holidayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(w, r, model.Invalid("name", "is required"))
		return
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		h.fail(w, r, model.Invalid("date", "must be YYYY-MM-DD"))
		return
	}
	holiday := model.PublicHoliday{ClinicID: clinicID, Name: name, Date: date}
	if err := h.store.CreateHoliday(r.Context(), &holiday); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, holiday)
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ManageSettings)
	if !ok {
		return
	}
	if err := h.store.DeleteHoliday(r.Context(), clinicID, pathID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// BillingCheckout starts a Stripe checkout moving the clinic to a paid plan.
func (h *Handler) BillingCheckout(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.ManageBilling)
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := model.ParsePlan(req.Plan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.billing == nil {
		h.fail(w, r, errBillingDisabled)
		return
	}
	ctx := r.Context()
	clinic, err := h.store.GetClinic(ctx, clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	email := ""
	if u, err := h.store.GetUser(ctx, id.UserID); err == nil {
		email = u.Email
	}
	sess, err := h.billing.Checkout(ctx, clinic, plan, email, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, sess)
}

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	_, clinicID, ok := h.staffScope(w, r, identity.ViewDashboard)
	if !ok {
		return
	}
	staff, err := h.store.ListStaff(r.Context(), clinicID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, orEmpty(staff))
}

type staffUpdateRequest struct {
	Role string `json:"role"`
}

func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.ManageStaff)
	if !ok {
		return
	}
	var req staffUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil || !role.Invitable() {
		h.fail(w, r, model.Invalid("role", "must be CLINIC_ADMIN, VET or RECEPTIONIST"))
		return
	}
	target := pathID(r)
	if target == id.UserID && role != id.Role {
		h.fail(w, r, model.Invalid("role", "you cannot change your own role"))
		return
	}
	user, err := h.store.UpdateStaffRole(r.Context(), clinicID, target, role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("staff role changed", "clinic_id", clinicID, "user_id", user.ID, "role", role, "by", id.UserID)
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusOK, user)
}

func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	id, clinicID, ok := h.staffScope(w, r, identity.ManageStaff)
	if !ok {
		return
	}
	target := pathID(r)
	if target == id.UserID {
		h.fail(w, r, model.Invalid("id", "you cannot deactivate yourself"))
		return
	}
	if err := h.store.DeactivateStaff(r.Context(), clinicID, target); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("staff deactivated", "clinic_id", clinicID, "user_id", target, "by", id.UserID)
	h.invalidateCatalog(r.Context(), clinicID)
	writeOK(w, http.StatusOK, nil)
}
