// Package payhere implements the PayHere checkout hash and notification
// signature (merchant secret double-MD5 scheme).
package payhere

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// StatusSuccess is the status_code PayHere sends for a completed payment.
const StatusSuccess = "2"

const DefaultCheckoutURL = "https://sandbox.payhere.lk/pay/checkout"

var (
	ErrNotConfigured    = errors.New("payhere is not configured")
	ErrMissingField     = errors.New("missing notification field")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Config struct {
	MerchantID     string
	MerchantSecret string
	CheckoutURL    string
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.MerchantID) != "" && strings.TrimSpace(c.MerchantSecret) != ""
}

// Notification is the form body PayHere posts to the notify URL.
type Notification struct {
	MerchantID string
	OrderID    string
	Amount     string
	Currency   string
	StatusCode string
	MD5Sig     string
}

func ParseNotification(form url.Values) (Notification, error) {
	n := Notification{
		MerchantID: strings.TrimSpace(form.Get("merchant_id")),
		OrderID:    strings.TrimSpace(form.Get("order_id")),
		Amount:     strings.TrimSpace(form.Get("payhere_amount")),
		Currency:   strings.TrimSpace(form.Get("payhere_currency")),
		StatusCode: strings.TrimSpace(form.Get("status_code")),
		MD5Sig:     strings.TrimSpace(form.Get("md5sig")),
	}
	required := []struct{ name, value string }{
		{"merchant_id", n.MerchantID},
		{"order_id", n.OrderID},
		{"payhere_amount", n.Amount},
		{"payhere_currency", n.Currency},
		{"status_code", n.StatusCode},
		{"md5sig", n.MD5Sig},
	}
	for _, f := range required {
		if f.value == "" {
			return n, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return n, nil
}

func (n Notification) Success() bool {
	return n.StatusCode == StatusSuccess
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NotificationSignature is UPPER(MD5(merchant_id + order_id + amount + currency + status_code + UPPER(MD5(secret)))).
func NotificationSignature(merchantID, orderID, amount, currency, statusCode, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + statusCode + upperMD5(secret))
}

// CheckoutHash is UPPER(MD5(merchant_id + order_id + amount + currency + UPPER(MD5(secret)))).
func CheckoutHash(merchantID, orderID, amount, currency, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + upperMD5(secret))
}

// Verify recomputes the notification signature and compares it case-sensitively.
func Verify(n Notification, secret string) error {
	if secret == "" {
		return ErrNotConfigured
	}
	want := NotificationSignature(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, secret)
	if subtle.ConstantTimeCompare([]byte(want), []byte(n.MD5Sig)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// CheckoutRequest describes the order a customer is redirected to pay for.
type CheckoutRequest struct {
	OrderID   string
	Items     string
	Amount    string
	Currency  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Checkout is the form a browser posts to the PayHere checkout page.
type Checkout struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

func (c Config) Checkout(req CheckoutRequest) (Checkout, error) {
	if !c.Enabled() {
		return Checkout{}, ErrNotConfigured
	}
	action := c.CheckoutURL
	if action == "" {
		action = DefaultCheckoutURL
	}
	fields := map[string]string{
		"merchant_id": c.MerchantID,
		"return_url":  c.ReturnURL,
		"cancel_url":  c.CancelURL,
		"notify_url":  c.NotifyURL,
		"order_id":    req.OrderID,
		"items":       req.Items,
		"currency":    req.Currency,
		"amount":      req.Amount,
		"first_name":  req.FirstName,
		"last_name":   req.LastName,
		"email":       req.Email,
		"phone":       req.Phone,
		"hash":        CheckoutHash(c.MerchantID, req.OrderID, req.Amount, req.Currency, c.MerchantSecret),
	}
	return Checkout{Action: action, Fields: fields}, nil
}

// SplitName returns the first and remaining words of a display name.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
