package identity

import (
	"context"
	"strings"
)

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID   string
	ClinicID string
	Role     Role
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, &id)
}

// FromContext returns the request identity, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// ClinicScope resolves the clinic a staff request operates on. Clinic-bound staff
// always get their own clinic; a requested id that differs is forbidden. Super
// admins must name the clinic explicitly.
func ClinicScope(id *Identity, requested string) (string, error) {
	if id == nil {
		return "", ErrUnauthenticated
	}
	requested = strings.TrimSpace(requested)
	switch id.Role {
	case SuperAdmin:
		if requested == "" {
			return "", ErrForbidden
		}
		return requested, nil
	case ClinicAdmin, Vet, Receptionist:
		if id.ClinicID == "" {
			return "", ErrForbidden
		}
		if requested != "" && requested != id.ClinicID {
			return "", ErrForbidden
		}
		return id.ClinicID, nil
	case PetOwner:
		return "", ErrForbidden
	}
	return "", ErrForbidden
}
