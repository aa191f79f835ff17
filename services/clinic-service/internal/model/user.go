package model

import (
	"net/mail"
	"strings"
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
)

type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Name         string        `json:"name"`
	Phone        string        `json:"phone"`
	Role         identity.Role `json:"role"`
	ClinicID     string        `json:"clinic_id,omitempty"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (u User) Identity() identity.Identity {
	return identity.Identity{UserID: u.ID, ClinicID: u.ClinicID, Role: u.Role}
}

// NormalizeEmail trims and lower-cases an address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", Invalid("email", "is not a valid address")
	}
	return email, nil
}

const MinPasswordLength = 8

func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return Invalid("password", "must be at least 8 characters")
	}
	if len(pw) > 72 {
		return Invalid("password", "must be at most 72 bytes")
	}
	return nil
}

// NormalizePhone keeps a leading + and digits; an empty phone is allowed.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", Invalid("phone", "contains invalid characters")
		}
	}
	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", Invalid("phone", "must have 7-15 digits")
	}
	return b.String(), nil
}
