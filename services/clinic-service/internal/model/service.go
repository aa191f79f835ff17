package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Service is a bookable offering of a clinic (consultation, vaccination...).
type Service struct {
	ID              string    `json:"id"`
	ClinicID        string    `json:"clinic_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Currency        string    `json:"currency"`
	Color           string    `json:"color"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Amount formats the price the way payment gateways expect it ("1500.00").
func (s Service) Amount() string {
	return FormatAmount(s.PriceCents)
}

func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const DefaultServiceColor = "#3b82f6"

type ServiceInput struct {
	Name            string
	DurationMinutes int
	PriceCents      int64
	Currency        string
	Color           string
}

func (in ServiceInput) Apply(s *Service) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Invalid("name", "is required")
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > 8*60 {
		return Invalid("duration_minutes", "must be between 1 and 480")
	}
	if in.DurationMinutes%5 != 0 {
		return Invalid("duration_minutes", "must be a multiple of 5")
	}
	if in.PriceCents < 0 {
		return Invalid("price_cents", "cannot be negative")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "LKR"
	}
	if len(currency) != 3 {
		return Invalid("currency", "must be a 3-letter ISO code")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = DefaultServiceColor
	}
	if !colorPattern.MatchString(color) {
		return Invalid("color", "must be #RRGGBB")
	}
	s.Name = name
	s.DurationMinutes = in.DurationMinutes
	s.PriceCents = in.PriceCents
	s.Currency = currency
	s.Color = strings.ToLower(color)
	return nil
}
