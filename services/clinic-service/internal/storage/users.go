package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

const userColumns = `id, email, password_hash, name, phone, role, COALESCE(clinic_id, ''), active, created_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.ClinicID, &u.Active, &u.CreatedAt)
	return u, mapErr(err)
}

func insertUser(ctx context.Context, q db.Querier, u *model.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Active = true
	err := q.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, phone, role, clinic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Phone, u.Role, nullable(u.ClinicID)).Scan(&u.CreatedAt)
	return mapErr(err)
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return insertUser(ctx, s.pool, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND active`, id))
}

// GetUserByEmail only finds active accounts, so deactivated users cannot sign in.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND active`, email))
}

// EmailRegistered reports whether any account, active or not, holds email.
func (s *Store) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

type UserFilter struct {
	ClinicID        string
	Roles           []identity.Role
	IncludeInactive bool
	Limit           int
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]model.User, error) {
	roles := make([]string, 0, len(f.Roles))
	for _, r := range f.Roles {
		roles = append(roles, string(r))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 = '' OR clinic_id = $1)
			AND (cardinality($2::text[]) = 0 OR role = ANY($2))
			AND (active OR $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, f.ClinicID, roles, f.IncludeInactive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListStaff returns the active non-owner accounts of a clinic.
func (s *Store) ListStaff(ctx context.Context, clinicID string) ([]model.User, error) {
	return s.ListUsers(ctx, UserFilter{ClinicID: clinicID, Roles: []identity.Role{identity.ClinicAdmin, identity.Vet, identity.Receptionist}})
}

func (s *Store) ListVets(ctx context.Context, clinicID string) ([]model.User, error) {
	return s.ListUsers(ctx, UserFilter{ClinicID: clinicID, Roles: []identity.Role{identity.Vet}})
}

// GetVet finds an active VET of the clinic.
func (s *Store) GetVet(ctx context.Context, clinicID, vetID string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND clinic_id = $2 AND role = 'VET' AND active
	`, vetID, clinicID))
}

// GetOwner finds an active PET_OWNER by id or, when id is empty, by email.
func (s *Store) GetOwner(ctx context.Context, id, email string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ((CAST($1 AS text) <> '' AND id = $1) OR (CAST($1 AS text) = '' AND email = $2))
			AND role = 'PET_OWNER' AND active
	`, id, email))
}

// UpdateStaffRole changes the role of a staff member inside one clinic.
func (s *Store) UpdateStaffRole(ctx context.Context, clinicID, userID string, role identity.Role) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET role = $3
		WHERE id = $1 AND clinic_id = $2 AND role IN ('CLINIC_ADMIN', 'VET', 'RECEPTIONIST') AND active
		RETURNING `+userColumns,
		userID, clinicID, role))
}

// DeactivateStaff soft-deletes a staff member and revokes their refresh tokens.
func (s *Store) DeactivateStaff(ctx context.Context, clinicID, userID string) error {
	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET active = false
			WHERE id = $1 AND clinic_id = $2 AND role IN ('CLINIC_ADMIN', 'VET', 'RECEPTIONIST') AND active
		`, userID, clinicID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return revokeUserTokens(ctx, tx, userID)
	}))
}

// SetUserActive is the platform console toggle and therefore sees inactive rows.
func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) (model.User, error) {
	var u model.User
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET active = $2 WHERE id = $1
			RETURNING `+userColumns, userID, active))
		if err != nil || active {
			return err
		}
		return revokeUserTokens(ctx, tx, userID)
	})
	return u, mapErr(err)
}

// BindOwnerClinic ties a pet owner without a clinic to one.
func (s *Store) BindOwnerClinic(ctx context.Context, userID, clinicID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET clinic_id = $2
		WHERE id = $1 AND role = 'PET_OWNER' AND clinic_id IS NULL AND active
	`, userID, clinicID)
	return err
}

type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, newID(), userID, tokenHash, expiresAt)
	return mapErr(err)
}

// RotateRefreshToken revokes the presented token and stores its replacement.
// It returns the owning user, who must still be active.
func (s *Store) RotateRefreshToken(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (model.User, error) {
	var u model.User
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var userID string
		err := tx.QueryRow(ctx, `
			UPDATE refresh_tokens SET revoked_at = now()
			WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
			RETURNING user_id
		`, oldHash).Scan(&userID)
		if err != nil {
			return mapErr(err)
		}
		u, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND active`, userID))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
			VALUES ($1, $2, $3, $4)
		`, newID(), userID, newHash, expiresAt)
		return err
	})
	return u, mapErr(err)
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash)
	return err
}

func revokeUserTokens(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	return err
}
