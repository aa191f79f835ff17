package handlers

import "net/http"

// Routes mounts every route on mux. Role checks for whole areas happen in
// the route gate; handlers still authorize each action.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /register", h.RegisterPage)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("POST /api/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/auth/me", h.Me)
	mux.HandleFunc("POST /api/onboarding", h.Onboarding)
	mux.HandleFunc("POST /api/invitations/accept", h.AcceptInvitation)
	mux.HandleFunc("GET /api/invitations/{token}", h.PreviewInvitation)
	mux.HandleFunc("GET /api/public/clinics/{slug}", h.PublicClinic)

	mux.HandleFunc("POST /api/webhooks/payhere", h.PayHereNotify)
	mux.HandleFunc("POST /api/webhooks/stripe", h.StripeWebhook)

	mux.HandleFunc("GET /dashboard", h.Dashboard)
	mux.HandleFunc("GET /dashboard/appointments", h.ListClinicAppointments)
	mux.HandleFunc("POST /dashboard/appointments", h.CreateClinicAppointment)
	mux.HandleFunc("PATCH /dashboard/appointments/{id}", h.UpdateClinicAppointment)
	mux.HandleFunc("GET /dashboard/availability", h.ClinicAvailability)
	mux.HandleFunc("GET /dashboard/pets", h.ListPets)
	mux.HandleFunc("POST /dashboard/pets", h.CreatePet)
	mux.HandleFunc("GET /dashboard/pets/{id}", h.GetPet)
	mux.HandleFunc("PATCH /dashboard/pets/{id}", h.UpdatePet)
	mux.HandleFunc("DELETE /dashboard/pets/{id}", h.DeletePet)
	mux.HandleFunc("GET /dashboard/services", h.ListServices)
	mux.HandleFunc("POST /dashboard/services", h.CreateService)
	mux.HandleFunc("PATCH /dashboard/services/{id}", h.UpdateService)
	mux.HandleFunc("DELETE /dashboard/services/{id}", h.DeleteService)
	mux.HandleFunc("GET /dashboard/staff", h.ListStaff)
	mux.HandleFunc("PATCH /dashboard/staff/{id}", h.UpdateStaff)
	mux.HandleFunc("DELETE /dashboard/staff/{id}", h.DeleteStaff)
	mux.HandleFunc("GET /dashboard/invitations", h.ListInvitations)
	mux.HandleFunc("POST /dashboard/invitations", h.CreateInvitation)
	mux.HandleFunc("DELETE /dashboard/invitations/{id}", h.RevokeInvitation)
	mux.HandleFunc("GET /dashboard/settings", h.GetSettings)
	mux.HandleFunc("PUT /dashboard/settings", h.UpdateSettings)
	mux.HandleFunc("GET /dashboard/settings/holidays", h.ListHolidays)
	mux.HandleFunc("POST /dashboard/settings/holidays", h.CreateHoliday)
	mux.HandleFunc("DELETE /dashboard/settings/holidays/{id}", h.DeleteHoliday)
	mux.HandleFunc("POST /dashboard/billing/checkout", h.BillingCheckout)

	mux.HandleFunc("GET /patient", h.Portal)
	mux.HandleFunc("GET /patient/pets", h.ListPets)
	mux.HandleFunc("POST /patient/pets", h.CreatePet)
	mux.HandleFunc("GET /patient/pets/{id}", h.GetPet)
	mux.HandleFunc("PATCH /patient/pets/{id}", h.UpdatePet)
	mux.HandleFunc("DELETE /patient/pets/{id}", h.DeletePet)
	mux.HandleFunc("GET /patient/appointments", h.ListOwnAppointments)
	mux.HandleFunc("POST /patient/appointments", h.CreateOwnAppointment)
	mux.HandleFunc("POST /patient/appointments/{id}/cancel", h.CancelOwnAppointment)
	mux.HandleFunc("GET /patient/availability", h.OwnerAvailability)

	mux.HandleFunc("GET /admin", h.AdminSummary)
	mux.HandleFunc("GET /admin/clinics", h.AdminClinics)
	mux.HandleFunc("PATCH /admin/clinics/{id}", h.AdminUpdateClinic)
	mux.HandleFunc("DELETE /admin/clinics/{id}", h.AdminDeleteClinic)
	mux.HandleFunc("GET /admin/users", h.AdminUsers)
	mux.HandleFunc("PATCH /admin/users/{id}", h.AdminUpdateUser)
}

// RouteLabel returns the matched pattern for metrics so ids do not explode
// label cardinality.
func RouteLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}
