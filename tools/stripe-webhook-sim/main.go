// Command stripe-webhook-sim posts a signed Stripe event to the clinic
// service so plan upgrades can be exercised without the Stripe CLI.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "clinic service base url")
		evtType  = flag.String("type", getenv("STRIPE_EVENT_TYPE", "checkout.session.completed"), "stripe event type")
		clinicID = flag.String("clinic-id", getenv("CLINIC_ID", ""), "clinic_id metadata")
		plan     = flag.String("plan", getenv("PLAN", "STARTER"), "plan metadata (STARTER or PRO)")
		price    = flag.String("price", getenv("STRIPE_PRICE", ""), "subscription price id; overrides the plan when set")
		status   = flag.String("status", getenv("SUBSCRIPTION_STATUS", "active"), "subscription status for customer.subscription.* events")
		secret   = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*clinicID) == "" {
		fatal("CLINIC_ID is required")
	}

	now := time.Now().UTC()
	eventID := fmt.Sprintf("evt_test_%d", now.UnixNano())

	payload, err := buildEventJSON(eventID, *evtType, now, *clinicID, strings.ToUpper(*plan), *price, *status)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	fmt.Printf("event=%s status=%d body=%s\n", eventID, resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, clinicID, plan, price, status string) ([]byte, error) {
	metadata := map[string]any{
		"clinic_id": clinicID,
		"plan":      plan,
	}
	var object map[string]any
	switch eventType {
	case "checkout.session.completed":
		object = map[string]any{
			"id":       "cs_test_" + clinicID,
			"object":   "checkout.session",
			"mode":     "subscription",
			"metadata": metadata,
		}
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		object = map[string]any{
			"id":       "sub_test_" + clinicID,
			"object":   "subscription",
			"status":   status,
			"metadata": metadata,
		}
		if price != "" {
			object["items"] = map[string]any{
				"object": "list",
				"data": []any{map[string]any{
					"id":     "si_test_" + clinicID,
					"object": "subscription_item",
					"price":  map[string]any{"id": price, "object": "price"},
				}},
			}
		}
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
