package handlers

import (
	"net/http"
	"strings"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

type onboardingRequest struct {
	ClinicName    string `json:"clinic_name"`
	Slug          string `json:"slug"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Timezone      string `json:"timezone"`
	AdminName     string `json:"admin_name"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

// Onboarding creates a clinic together with its first CLINIC_ADMIN and signs
// the admin in.
func (h *Handler) Onboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	clinic, err := req.clinic()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	admin, err := newAccount(req.AdminEmail, req.AdminPassword, req.AdminName, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	admin.Role = identity.ClinicAdmin

	if err := h.store.CreateClinicWithAdmin(r.Context(), &clinic, &admin); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("clinic onboarded", "clinic_id", clinic.ID, "slug", clinic.Slug, "admin_id", admin.ID)
	h.startSession(w, r, http.StatusCreated, admin, "")
}

func (req onboardingRequest) clinic() (model.Clinic, error) {
	name := strings.TrimSpace(req.ClinicName)
	if name == "" {
		return model.Clinic{}, model.Invalid("clinic_name", "is required")
	}
	if len(name) > 120 {
		return model.Clinic{}, model.Invalid("clinic_name", "must be at most 120 characters")
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = model.Slugify(name)
	}
	if err := model.ValidateSlug(slug); err != nil {
		return model.Clinic{}, err
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if err := model.ValidateTimezone(tz); err != nil {
		return model.Clinic{}, err
	}
	phone, err := model.NormalizePhone(req.Phone)
	if err != nil {
		return model.Clinic{}, err
	}
	email := ""
	if strings.TrimSpace(req.Email) != "" {
		if email, err = model.NormalizeEmail(req.Email); err != nil {
			return model.Clinic{}, err
		}
	}
	return model.Clinic{
		Name:          name,
		Slug:          slug,
		Address:       strings.TrimSpace(req.Address),
		Phone:         phone,
		Email:         email,
		Timezone:      tz,
		BusinessHours: model.DefaultBusinessHours(),
		Plan:          model.PlanFree,
	}, nil
}
