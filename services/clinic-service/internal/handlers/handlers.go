// Package handlers serves the clinic dashboard, the pet-owner portal, the
// platform console, authentication and payment webhooks over HTTP/JSON.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vetcare/vetcare/libs/httpx"
	"github.com/vetcare/vetcare/services/clinic-service/internal/billing"
	"github.com/vetcare/vetcare/services/clinic-service/internal/booking"
	"github.com/vetcare/vetcare/services/clinic-service/internal/catalog"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/payhere"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

// Store is the persistence the handlers need. *storage.Store satisfies it.
type Store interface {
	booking.Store

	CreateClinicWithAdmin(ctx context.Context, c *model.Clinic, admin *model.User) error
	GetClinic(ctx context.Context, id string) (model.Clinic, error)
	GetClinicBySlug(ctx context.Context, slug string) (model.Clinic, error)
	ListClinics(ctx context.Context, includeInactive bool) ([]model.Clinic, error)
	UpdateClinicProfile(ctx context.Context, c model.Clinic) (model.Clinic, error)
	UpdateClinicAdmin(ctx context.Context, id string, upd storage.ClinicAdminUpdate) (model.Clinic, error)

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	EmailRegistered(ctx context.Context, email string) (bool, error)
	GetOwner(ctx context.Context, id, email string) (model.User, error)
	ListUsers(ctx context.Context, f storage.UserFilter) ([]model.User, error)
	ListStaff(ctx context.Context, clinicID string) ([]model.User, error)
	UpdateStaffRole(ctx context.Context, clinicID, userID string, role identity.Role) (model.User, error)
	DeactivateStaff(ctx context.Context, clinicID, userID string) error
	SetUserActive(ctx context.Context, userID string, active bool) (model.User, error)
	BindOwnerClinic(ctx context.Context, userID, clinicID string) error
	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (model.User, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	CreatePet(ctx context.Context, p *model.Pet) error
	ListPets(ctx context.Context, scope storage.PetScope) ([]model.Pet, error)
	UpdatePet(ctx context.Context, p model.Pet, scope storage.PetScope) (model.Pet, error)
	DeactivatePet(ctx context.Context, id string, scope storage.PetScope) error

	CreateService(ctx context.Context, svc *model.Service) error
	ListServices(ctx context.Context, clinicID string) ([]model.Service, error)
	UpdateService(ctx context.Context, svc model.Service) (model.Service, error)
	DeactivateService(ctx context.Context, clinicID, id string) error

	GetAppointment(ctx context.Context, id string, scope storage.AppointmentScope) (model.AppointmentDetails, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.AppointmentDetails, error)
	UpdateAppointment(ctx context.Context, clinicID, id string, upd storage.AppointmentUpdate, allowed func(from, to model.AppointmentStatus) bool) (storage.StatusChange, error)
	CancelOwnedAppointment(ctx context.Context, ownerID, id string) (storage.StatusChange, error)
	ConfirmAppointment(ctx context.Context, id string, payment storage.PaymentRef) (storage.StatusChange, error)

	CreateInvitation(ctx context.Context, inv *model.Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (model.Invitation, error)
	ListInvitations(ctx context.Context, clinicID string) ([]model.Invitation, error)
	RevokeInvitation(ctx context.Context, clinicID, id string) error
	AcceptInvitation(ctx context.Context, token string, u *model.User, now time.Time) (model.Invitation, error)

	CreateHoliday(ctx context.Context, h *model.PublicHoliday) error
	DeleteHoliday(ctx context.Context, clinicID, id string) error

	ClinicSummary(ctx context.Context, clinicID string, dayStart, dayEnd, now time.Time) (storage.ClinicSummary, error)
	PlatformSummary(ctx context.Context, now time.Time) (storage.PlatformSummary, error)
}

// Notifier delivers best-effort messages. *notify.Dispatcher satisfies it.
type Notifier interface {
	BookingReceived(ctx context.Context, appt model.AppointmentDetails, paymentRequired bool)
	BookingConfirmed(ctx context.Context, appt model.AppointmentDetails)
	StatusChanged(ctx context.Context, appt model.AppointmentDetails)
	Invitation(ctx context.Context, inv model.Invitation, clinicName string)
}

// Catalog is the cached public clinic view. *catalog.Catalog satisfies it.
type Catalog interface {
	Clinic(ctx context.Context, slug string) (catalog.Clinic, error)
	Invalidate(ctx context.Context, clinicID string)
}

// Billing drives plan upgrades. *billing.Stripe satisfies it.
type Billing interface {
	Checkout(ctx context.Context, clinic model.Clinic, plan model.Plan, customerEmail, idempotencyKey string) (billing.CheckoutSession, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (billing.WebhookResult, error)
}

// TokenIssuer mints access tokens. *auth.Signer satisfies it.
type TokenIssuer interface {
	Issue(userID, clinicID, role string) (string, error)
	TTL() time.Duration
}

var errBillingDisabled = fmt.Errorf("plan upgrades: %w", billing.ErrNotConfigured)

type Config struct {
	RefreshTTL   time.Duration
	CookieSecure bool
	PayHere      payhere.Config
}

type Deps struct {
	Store    Store
	Booking  *booking.Service
	Notifier Notifier
	Catalog  Catalog
	Billing  Billing
	Tokens   TokenIssuer
	Metrics  *Metrics
	Logger   *slog.Logger
	Config   Config
}

type Handler struct {
	store   Store
	booking *booking.Service
	notify  Notifier
	catalog Catalog
	billing Billing
	tokens  TokenIssuer
	metrics *Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

func New(d Deps) *Handler {
	if d.Config.RefreshTTL <= 0 {
		d.Config.RefreshTTL = 30 * 24 * time.Hour
	}
	if d.Booking == nil {
		d.Booking = booking.NewService(d.Store, 0)
	}
	if d.Catalog == nil {
		d.Catalog = catalog.New(nil, d.Store, 0, d.Logger)
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return &Handler{
		store:   d.Store,
		booking: d.Booking,
		notify:  d.Notifier,
		catalog: d.Catalog,
		billing: d.Billing,
		tokens:  d.Tokens,
		metrics: d.Metrics,
		logger:  d.Logger,
		cfg:     d.Config,
		now:     time.Now,
	}
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeOK(w http.ResponseWriter, status int, data any) {
	httpx.WriteJSON(w, status, envelope{Success: true, Data: data})
}

const maxJSONBody = 1 << 20

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeBody(r, v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

// fail maps err onto the response status. Unexpected errors are logged and
// reported; the client only sees a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.WriteError(w, http.StatusUnprocessableEntity, ve.Error())
	case errors.Is(err, identity.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, identity.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrInvitationExpired):
		httpx.WriteError(w, http.StatusGone, err.Error())
	case storage.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrInvalidTransition), errors.Is(err, booking.ErrClinicUnavailable):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case storage.IsConflict(err):
		httpx.WriteError(w, http.StatusConflict, "record already exists")
	case errors.Is(err, billing.ErrNotConfigured), errors.Is(err, payhere.ErrNotConfigured):
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.ReportError(r, err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// authorize returns the caller when they may perform action.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action identity.Action) (*identity.Identity, bool) {
	id := identity.FromContext(r.Context())
	if err := identity.Require(id, action); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return id, true
}

// staffScope authorizes a staff action and resolves the clinic it applies to.
// Super admins pass ?clinic_id=.
func (h *Handler) staffScope(w http.ResponseWriter, r *http.Request, action identity.Action) (*identity.Identity, string, bool) {
	id, ok := h.authorize(w, r, action)
	if !ok {
		return nil, "", false
	}
	clinicID, err := identity.ClinicScope(id, r.URL.Query().Get("clinic_id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, "", false
	}
	return id, clinicID, true
}

func (h *Handler) invalidateCatalog(ctx context.Context, clinicID string) {
	h.catalog.Invalidate(ctx, clinicID)
}

// clinicDay returns the bounds of the clinic-local day containing now.
func clinicDay(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}

// orEmpty keeps empty lists as [] in responses.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
