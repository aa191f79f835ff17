// Command payhere-webhook-sim posts a signed PayHere payment notification to
// the clinic service, the way the gateway calls the notify URL.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/payhere"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "clinic service base url")
		merchant = flag.String("merchant-id", getenv("PAYHERE_MERCHANT_ID", ""), "merchant id")
		secret   = flag.String("secret", getenv("PAYHERE_MERCHANT_SECRET", ""), "merchant secret used to sign the notification")
		orderID  = flag.String("order-id", getenv("ORDER_ID", ""), "appointment id")
		amount   = flag.String("amount", getenv("AMOUNT", ""), "payhere_amount, e.g. 1500.00")
		currency = flag.String("currency", getenv("CURRENCY", "LKR"), "payhere_currency")
		status   = flag.String("status", getenv("STATUS_CODE", payhere.StatusSuccess), "status_code (2 success, 0 pending, -1 cancelled, -2 failed, -3 chargeback)")
		tamper   = flag.Bool("tamper", false, "flip the signature to check rejection")
	)
	flag.Parse()

	for name, v := range map[string]string{"merchant-id": *merchant, "secret": *secret, "order-id": *orderID, "amount": *amount} {
		if strings.TrimSpace(v) == "" {
			fatal(name + " is required")
		}
	}

	form := notification(*merchant, *orderID, *amount, strings.ToUpper(*currency), *status, *secret)
	if *tamper {
		form.Set("md5sig", strings.Repeat("0", 32))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.PostForm(strings.TrimRight(*baseURL, "/")+"/api/webhooks/payhere", form)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	fmt.Printf("order=%s status_code=%s http=%d body=%s\n", *orderID, *status, resp.StatusCode, strings.TrimSpace(string(body)))
}

func notification(merchantID, orderID, amount, currency, status, secret string) url.Values {
	return url.Values{
		"merchant_id":      {merchantID},
		"order_id":         {orderID},
		"payment_id":       {fmt.Sprintf("sim_%d", time.Now().UnixNano())},
		"payhere_amount":   {amount},
		"payhere_currency": {currency},
		"status_code":      {status},
		"md5sig":           {payhere.NotificationSignature(merchantID, orderID, amount, currency, status, secret)},
		"method":           {"TEST"},
	}
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
