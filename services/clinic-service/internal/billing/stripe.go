// Package billing upgrades clinic plans through Stripe Checkout and applies
// the resulting webhooks.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

const Provider = "stripe"

var (
	ErrNotConfigured    = errors.New("stripe billing not configured")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrNoPrice          = errors.New("no stripe price for plan")
)

type Config struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	PriceStarter     string
	PricePro         string
	SuccessURL       string
	CancelURL        string
}

func (c Config) CheckoutEnabled() bool { return strings.TrimSpace(c.SecretKey) != "" }
func (c Config) WebhookEnabled() bool  { return strings.TrimSpace(c.WebhookSecret) != "" }

// PriceFor maps a paid plan to its Stripe price id.
func (c Config) PriceFor(plan model.Plan) (string, error) {
	var price string
	switch plan {
	case model.PlanStarter:
		price = c.PriceStarter
	case model.PlanPro:
		price = c.PricePro
	}
	if strings.TrimSpace(price) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPrice, plan)
	}
	return price, nil
}

// PlanForPrice is the inverse of PriceFor; unknown prices report false.
func (c Config) PlanForPrice(price string) (model.Plan, bool) {
	switch {
	case price == "":
		return "", false
	case price == c.PriceStarter:
		return model.PlanStarter, true
	case price == c.PricePro:
		return model.PlanPro, true
	}
	return "", false
}

type PlanStore interface {
	SetClinicPlan(ctx context.Context, clinicID string, plan model.Plan, evt storage.ProviderEvent) error
	RecordProviderEvent(ctx context.Context, evt storage.ProviderEvent) error
}

// SessionCreator creates a Stripe Checkout session.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Stripe struct {
	cfg      Config
	sessions SessionCreator
	store    PlanStore
	logger   *slog.Logger
}

func New(cfg Config, store PlanStore, logger *slog.Logger) *Stripe {
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = 5 * time.Minute
	}
	s := &Stripe{cfg: cfg, store: store, logger: logger}
	if cfg.CheckoutEnabled() {
		s.sessions = &checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	}
	return s
}

// WithSessions replaces the Stripe API client.
func (s *Stripe) WithSessions(c SessionCreator) *Stripe {
	s.sessions = c
	return s
}

// CheckoutSession is the redirect a clinic admin follows to pay.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Checkout starts a subscription checkout moving clinic to plan.
func (s *Stripe) Checkout(ctx context.Context, clinic model.Clinic, plan model.Plan, customerEmail, idempotencyKey string) (CheckoutSession, error) {
	if s.sessions == nil {
		return CheckoutSession{}, ErrNotConfigured
	}
	if plan == clinic.Plan {
		return CheckoutSession{}, model.Invalid("plan", "clinic is already on this plan")
	}
	price, err := s.cfg.PriceFor(plan)
	if err != nil {
		return CheckoutSession{}, model.Invalid("plan", "must be STARTER or PRO")
	}
	meta := map[string]string{
		"clinic_id": clinic.ID,
		"plan":      string(plan),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(clinic.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		Metadata:         meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta},
	}
	params.Context = ctx
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	sess, err := s.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Info("stripe checkout session created", "clinic_id", clinic.ID, "plan", plan, "stripe_session_id", sess.ID)
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// WebhookResult reports what a verified webhook delivery changed.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
	ClinicID  string
	Plan      model.Plan
}

// HandleWebhook verifies and applies one Stripe delivery. Redeliveries are
// reported as Duplicate and change nothing.
func (s *Stripe) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if !s.cfg.WebhookEnabled() {
		return WebhookResult{}, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(body, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                s.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := WebhookResult{EventID: evt.ID, EventType: string(evt.Type)}
	pe := storage.ProviderEvent{
		Provider:        Provider,
		ProviderEventID: evt.ID,
		EventType:       res.EventType,
		Payload:         body,
	}
	s.logger.Info("billing provider event received", "provider", Provider, "provider_event_id", evt.ID, "event_type", res.EventType)

	res.ClinicID, res.Plan = s.planChange(evt)
	if res.ClinicID != "" {
		err = s.store.SetClinicPlan(ctx, res.ClinicID, res.Plan, pe)
	} else {
		err = s.store.RecordProviderEvent(ctx, pe)
	}
	if errors.Is(err, storage.ErrDuplicateEvent) {
		s.logger.Info("billing provider event duplicate ignored", "provider", Provider, "provider_event_id", evt.ID)
		res.Duplicate = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if res.ClinicID != "" {
		s.logger.Info("clinic plan changed", "clinic_id", res.ClinicID, "plan", res.Plan, "provider_event_id", evt.ID)
	}
	return res, nil
}

// planChange extracts the clinic and target plan from events that move a
// plan. Other events return an empty clinic id.
func (s *Stripe) planChange(evt stripe.Event) (string, model.Plan) {
	switch evt.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			s.logger.Error("stripe: invalid checkout session payload", "err", err)
			return "", ""
		}
		return s.fromMetadata(session.Metadata, "")

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			s.logger.Error("stripe: invalid subscription payload", "err", err)
			return "", ""
		}
		if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
			return "", ""
		}
		price := ""
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			price = sub.Items.Data[0].Price.ID
		}
		return s.fromMetadata(sub.Metadata, price)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			s.logger.Error("stripe: invalid subscription payload", "err", err)
			return "", ""
		}
		clinicID := strings.TrimSpace(sub.Metadata["clinic_id"])
		if clinicID == "" {
			s.logger.Warn("stripe: missing clinic_id on subscription")
			return "", ""
		}
		return clinicID, model.PlanFree
	}
	return "", ""
}

func (s *Stripe) fromMetadata(meta map[string]string, price string) (string, model.Plan) {
	clinicID := strings.TrimSpace(meta["clinic_id"])
	if clinicID == "" {
		s.logger.Warn("stripe: missing clinic_id metadata")
		return "", ""
	}
	if plan, ok := s.cfg.PlanForPrice(price); ok {
		return clinicID, plan
	}
	plan, err := model.ParsePlan(meta["plan"])
	if err != nil {
		s.logger.Warn("stripe: missing or unknown plan metadata", "clinic_id", clinicID, "plan", meta["plan"])
		return "", ""
	}
	return clinicID, plan
}
