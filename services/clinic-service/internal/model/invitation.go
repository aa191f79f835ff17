package model

import (
	"time"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	ID          string           `json:"id"`
	ClinicID    string           `json:"clinic_id"`
	Email       string           `json:"email"`
	Role        identity.Role    `json:"role"`
	Token       string           `json:"-"`
	Status      InvitationStatus `json:"status"`
	ExpiresAt   time.Time        `json:"expires_at"`
	InvitedByID string           `json:"invited_by_id"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Usable reports whether the invitation can still be accepted at now.
func (i Invitation) Usable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}

// Lapsed reports a pending invitation whose deadline has passed.
func (i Invitation) Lapsed(now time.Time) bool {
	return i.Status == InvitationPending && !now.Before(i.ExpiresAt)
}
