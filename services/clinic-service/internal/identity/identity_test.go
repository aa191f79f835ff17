package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vetcare/vetcare/libs/auth"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		require.Equal(t, r, got)
	}
	got, err := ParseRole(" pet_owner ")
	require.NoError(t, err)
	require.Equal(t, PetOwner, got)

	_, err = ParseRole("OWNER")
	require.Error(t, err)
}

func TestHome(t *testing.T) {
	require.Equal(t, "/admin", SuperAdmin.Home())
	require.Equal(t, "/patient", PetOwner.Home())
	require.Equal(t, "/dashboard", ClinicAdmin.Home())
	require.Equal(t, "/dashboard", Vet.Home())
	require.Equal(t, "/dashboard", Receptionist.Home())
}

func TestCanTable(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{ClinicAdmin, ManageServices, true},
		{ClinicAdmin, ManageClinics, false},
		{Vet, ManageServices, false},
		{Vet, UpdateAppointmentStatus, true},
		{Receptionist, BookAppointment, true},
		{Receptionist, ManageStaff, false},
		{PetOwner, ViewDashboard, false},
		{PetOwner, ManageOwnPets, true},
		{PetOwner, ViewPortal, true},
		{SuperAdmin, ManageClinics, true},
		{SuperAdmin, ViewPortal, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Can(tc.role, tc.action), "%s %s", tc.role, tc.action)
	}
}

func TestEveryActionHasAnOwner(t *testing.T) {
	for _, a := range Actions() {
		require.NotEqual(t, "unknown", a.String())
		allowed := false
		for _, r := range Roles() {
			allowed = allowed || Can(r, a)
		}
		require.True(t, allowed, "no role may %s", a)
	}
	require.False(t, Can(Role("GUEST"), ViewDashboard))
}

func TestRequire(t *testing.T) {
	require.ErrorIs(t, Require(nil, ViewPortal), ErrUnauthenticated)
	require.ErrorIs(t, Require(&Identity{Role: Vet}, ManageStaff), ErrForbidden)
	require.NoError(t, Require(&Identity{Role: Vet}, ViewAppointments))
}

func TestClinicScope(t *testing.T) {
	staff := &Identity{UserID: "u1", ClinicID: "c1", Role: Receptionist}
	got, err := ClinicScope(staff, "")
	require.NoError(t, err)
	require.Equal(t, "c1", got)

	_, err = ClinicScope(staff, "c2")
	require.ErrorIs(t, err, ErrForbidden)

	admin := &Identity{UserID: "root", Role: SuperAdmin}
	_, err = ClinicScope(admin, "")
	require.ErrorIs(t, err, ErrForbidden)
	got, err = ClinicScope(admin, "c9")
	require.NoError(t, err)
	require.Equal(t, "c9", got)

	_, err = ClinicScope(&Identity{UserID: "o", Role: PetOwner, ClinicID: "c1"}, "")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = ClinicScope(nil, "c1")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestEvaluate(t *testing.T) {
	owner := &Identity{UserID: "o", Role: PetOwner}
	vet := &Identity{UserID: "v", ClinicID: "c", Role: Vet}
	root := &Identity{UserID: "r", Role: SuperAdmin}

	cases := []struct {
		name     string
		path     string
		id       *Identity
		allow    bool
		redirect string
	}{
		{"anonymous dashboard", "/dashboard/pets?x=1", nil, false, "/login?next=%2Fdashboard%2Fpets%3Fx%3D1"},
		{"anonymous patient", "/patient", nil, false, "/login?next=%2Fpatient"},
		{"anonymous admin", "/admin/clinics", nil, false, "/login?next=%2Fadmin%2Fclinics"},
		{"owner on dashboard", "/dashboard", owner, false, "/patient"},
		{"vet on patient", "/patient/pets", vet, false, "/dashboard"},
		{"vet on admin", "/admin", vet, false, "/dashboard"},
		{"owner on patient", "/patient/appointments", owner, true, ""},
		{"vet on dashboard", "/dashboard/appointments", vet, true, ""},
		{"root on dashboard", "/dashboard", root, true, ""},
		{"root on admin", "/admin/users", root, true, ""},
		{"signed in on login", "/login", owner, false, "/patient"},
		{"signed in on register", "/register", root, false, "/admin"},
		{"anonymous login", "/login", nil, true, ""},
		{"segment boundary", "/administrator", nil, true, ""},
		{"public api", "/api/public/clinics/x", nil, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(tc.path)
			require.NoError(t, err)
			d := Evaluate(u, tc.id)
			require.Equal(t, tc.allow, d.Allow)
			require.Equal(t, tc.redirect, d.Redirect)
		})
	}
}

func TestGateRedirectCodes(t *testing.T) {
	h := Gate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fdashboard", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/patient/pets", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = httptest.NewRecorder()
	req0 := httptest.NewRequest(http.MethodGet, "/login", nil)
	req0 = req0.WithContext(WithIdentity(req0.Context(), Identity{UserID: "a", Role: SuperAdmin}))
	h.ServeHTTP(rr, req0)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/admin", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/patient", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: "o", Role: PetOwner}))
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestResolve(t *testing.T) {
	signer, err := auth.NewSigner("test-secret", "vetcare", time.Hour)
	require.NoError(t, err)
	token, err := signer.Issue("u1", "c1", string(Vet))
	require.NoError(t, err)

	var got *Identity
	h := Resolve(signer, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	require.Equal(t, Identity{UserID: "u1", ClinicID: "c1", Role: Vet}, *got)

	got = nil
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)

	got = &Identity{}
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Nil(t, got)

	bad, err := signer.Issue("u2", "", "GUEST")
	require.NoError(t, err)
	got = &Identity{}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Nil(t, got)
}

func TestLogAttrs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Nil(t, LogAttrs(req))
	req = req.WithContext(WithIdentity(context.Background(), Identity{UserID: "u", ClinicID: "c", Role: Vet}))
	require.Equal(t, []any{"user_id", "u", "clinic_id", "c", "role", "VET"}, LogAttrs(req))
}
