package identity

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	SuperAdmin   Role = "SUPER_ADMIN"
	ClinicAdmin  Role = "CLINIC_ADMIN"
	Vet          Role = "VET"
	Receptionist Role = "RECEPTIONIST"
	PetOwner     Role = "PET_OWNER"
)

// Roles lists every role in privilege order.
func Roles() []Role {
	return []Role{SuperAdmin, ClinicAdmin, Vet, Receptionist, PetOwner}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case SuperAdmin, ClinicAdmin, Vet, Receptionist, PetOwner:
		return true
	}
	return false
}

// IsStaff reports whether the role may use the clinic dashboard.
func (r Role) IsStaff() bool {
	switch r {
	case SuperAdmin, ClinicAdmin, Vet, Receptionist:
		return true
	case PetOwner:
		return false
	}
	return false
}

// ClinicBound reports whether accounts with this role always belong to one clinic.
func (r Role) ClinicBound() bool {
	switch r {
	case ClinicAdmin, Vet, Receptionist:
		return true
	case SuperAdmin, PetOwner:
		return false
	}
	return false
}

// Invitable reports whether a clinic admin may invite someone into this role.
func (r Role) Invitable() bool {
	switch r {
	case ClinicAdmin, Vet, Receptionist:
		return true
	case SuperAdmin, PetOwner:
		return false
	}
	return false
}

// Home is the landing path for the role after login.
func (r Role) Home() string {
	switch r {
	case SuperAdmin:
		return "/admin"
	case PetOwner:
		return "/patient"
	case ClinicAdmin, Vet, Receptionist:
		return "/dashboard"
	}
	return "/login"
}

func (r Role) String() string { return string(r) }
