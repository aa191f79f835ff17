package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

const testSecret = "whsec_test"

type planCall struct {
	clinicID string
	plan     model.Plan
	evt      storage.ProviderEvent
}

type fakeStore struct {
	seen     map[string]bool
	plans    []planCall
	recorded []storage.ProviderEvent
}

func newFakeStore() *fakeStore { return &fakeStore{seen: map[string]bool{}} }

func (f *fakeStore) dedupe(evt storage.ProviderEvent) error {
	if f.seen[evt.ProviderEventID] {
		return storage.ErrDuplicateEvent
	}
	f.seen[evt.ProviderEventID] = true
	return nil
}

func (f *fakeStore) SetClinicPlan(_ context.Context, clinicID string, plan model.Plan, evt storage.ProviderEvent) error {
	if err := f.dedupe(evt); err != nil {
		return err
	}
	f.plans = append(f.plans, planCall{clinicID, plan, evt})
	return nil
}

func (f *fakeStore) RecordProviderEvent(_ context.Context, evt storage.ProviderEvent) error {
	if err := f.dedupe(evt); err != nil {
		return err
	}
	f.recorded = append(f.recorded, evt)
	return nil
}

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func testConfig() Config {
	return Config{
		SecretKey:     "sk_test",
		WebhookSecret: testSecret,
		PriceStarter:  "price_starter",
		PricePro:      "price_pro",
		SuccessURL:    "https://app.test/dashboard/billing?ok=1",
		CancelURL:     "https://app.test/dashboard/billing",
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func signed(t *testing.T, id, typ string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"created":     time.Now().Unix(),
		"type":        typ,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return payload, sp.Header
}

func TestCheckoutBuildsSubscriptionSession(t *testing.T) {
	sessions := &fakeSessions{}
	s := New(testConfig(), newFakeStore(), discard()).WithSessions(sessions)

	sess, err := s.Checkout(context.Background(), model.Clinic{ID: "c1", Plan: model.PlanFree}, model.PlanPro, "admin@paws.test", "idem-1")
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", sess.ID)

	p := sessions.params
	require.Equal(t, string(stripe.CheckoutSessionModeSubscription), *p.Mode)
	require.Equal(t, "price_pro", *p.LineItems[0].Price)
	require.Equal(t, "c1", p.Metadata["clinic_id"])
	require.Equal(t, "PRO", p.SubscriptionData.Metadata["plan"])
	require.Equal(t, "idem-1", *p.IdempotencyKey)
	require.Equal(t, "admin@paws.test", *p.CustomerEmail)
}

func TestCheckoutRejects(t *testing.T) {
	s := New(testConfig(), newFakeStore(), discard()).WithSessions(&fakeSessions{})
	_, err := s.Checkout(context.Background(), model.Clinic{ID: "c1", Plan: model.PlanPro}, model.PlanPro, "", "")
	require.True(t, model.IsValidation(err))

	_, err = s.Checkout(context.Background(), model.Clinic{ID: "c1"}, model.PlanFree, "", "")
	require.True(t, model.IsValidation(err))

	s = New(testConfig(), newFakeStore(), discard()).WithSessions(&fakeSessions{err: errors.New("boom")})
	_, err = s.Checkout(context.Background(), model.Clinic{ID: "c1"}, model.PlanStarter, "", "")
	require.Error(t, err)

	cfg := testConfig()
	cfg.SecretKey = ""
	_, err = New(cfg, newFakeStore(), discard()).Checkout(context.Background(), model.Clinic{ID: "c1"}, model.PlanStarter, "", "")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestWebhookAppliesCheckoutOnce(t *testing.T) {
	store := newFakeStore()
	s := New(testConfig(), store, discard())
	body, sig := signed(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":       "cs_test_1",
		"object":   "checkout.session",
		"metadata": map[string]any{"clinic_id": "c1", "plan": "STARTER"},
	})

	res, err := s.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, []planCall{{"c1", model.PlanStarter, store.plans[0].evt}}, store.plans)
	require.Equal(t, "evt_1", store.plans[0].evt.ProviderEventID)

	res, err = s.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Len(t, store.plans, 1)
}

func TestWebhookSubscriptionEvents(t *testing.T) {
	store := newFakeStore()
	s := New(testConfig(), store, discard())

	body, sig := signed(t, "evt_2", "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   "active",
		"metadata": map[string]any{"clinic_id": "c1", "plan": "STARTER"},
		"items": map[string]any{
			"object": "list",
			"data":   []any{map[string]any{"id": "si_1", "price": map[string]any{"id": "price_pro"}}},
		},
	})
	_, err := s.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, model.PlanPro, store.plans[0].plan, "price id wins over metadata")

	body, sig = signed(t, "evt_3", "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   "canceled",
		"metadata": map[string]any{"clinic_id": "c1"},
	})
	_, err = s.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.Equal(t, model.PlanFree, store.plans[1].plan)

	body, sig = signed(t, "evt_4", "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   "past_due",
		"metadata": map[string]any{"clinic_id": "c1", "plan": "PRO"},
	})
	res, err := s.HandleWebhook(context.Background(), body, sig)
	require.NoError(t, err)
	require.Empty(t, res.ClinicID)
	require.Len(t, store.plans, 2)
	require.Len(t, store.recorded, 1)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := New(testConfig(), newFakeStore(), discard())
	body, _ := signed(t, "evt_5", "invoice.paid", map[string]any{"id": "in_1"})
	_, err := s.HandleWebhook(context.Background(), body, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	cfg := testConfig()
	cfg.WebhookSecret = ""
	_, err = New(cfg, newFakeStore(), discard()).HandleWebhook(context.Background(), body, "")
	require.ErrorIs(t, err, ErrNotConfigured)
}
