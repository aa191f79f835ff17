package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/outbox"
)

const invitationColumns = `id, clinic_id, email, role, token, status, expires_at, invited_by_id, created_at`

func scanInvitation(row rowScanner) (model.Invitation, error) {
	var inv model.Invitation
	err := row.Scan(&inv.ID, &inv.ClinicID, &inv.Email, &inv.Role, &inv.Token, &inv.Status, &inv.ExpiresAt, &inv.InvitedByID, &inv.CreatedAt)
	return inv, mapErr(err)
}

// ErrInvitationUnusable is returned when accepting an invitation that is no longer PENDING.
var ErrInvitationUnusable error = conflictError{"invitation is no longer valid"}

// ErrInvitationExpired is returned when the invitation deadline has passed; the
// row is marked EXPIRED as a side effect.
var ErrInvitationExpired = errors.New("invitation has expired")

func (s *Store) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	inv.ID = newID()
	inv.Status = model.InvitationPending
	return mapErr(s.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO invitations (id, clinic_id, email, role, token, status, expires_at, invited_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at
		`, inv.ID, inv.ClinicID, inv.Email, inv.Role, inv.Token, inv.Status, inv.ExpiresAt, inv.InvitedByID).Scan(&inv.CreatedAt)
		if err != nil {
			return mapErr(err)
		}
		evt, err := outbox.NewEvent("invitation", inv.ID, inv.ClinicID, outbox.InvitationCreated, map[string]any{
			"invitation_id": inv.ID,
			"clinic_id":     inv.ClinicID,
			"email":         inv.Email,
			"role":          inv.Role,
			"expires_at":    inv.ExpiresAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, evt)
	}))
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (model.Invitation, error) {
	return scanInvitation(s.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token))
}

func (s *Store) ListInvitations(ctx context.Context, clinicID string) ([]model.Invitation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE clinic_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RevokeInvitation expires a pending invitation of the clinic.
func (s *Store) RevokeInvitation(ctx context.Context, clinicID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations SET status = 'EXPIRED'
		WHERE id = $1 AND clinic_id = $2 AND status = 'PENDING'
	`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AcceptInvitation creates the invited account and consumes the invitation in
// one transaction. u carries the credentials; role and clinic come from the invitation.
func (s *Store) AcceptInvitation(ctx context.Context, token string, u *model.User, now time.Time) (model.Invitation, error) {
	var inv model.Invitation
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx, `
			SELECT `+invitationColumns+` FROM invitations WHERE token = $1 FOR UPDATE
		`, token))
		if err != nil {
			return err
		}
		if inv.Status != model.InvitationPending {
			return ErrInvitationUnusable
		}
		if inv.Lapsed(now) {
			return ErrInvitationExpired
		}
		u.Email = inv.Email
		u.Role = inv.Role
		u.ClinicID = inv.ClinicID
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE invitations SET status = 'ACCEPTED' WHERE id = $1`, inv.ID); err != nil {
			return err
		}
		inv.Status = model.InvitationAccepted
		evt, err := outbox.NewEvent("invitation", inv.ID, inv.ClinicID, outbox.InvitationAccepted, map[string]any{
			"invitation_id": inv.ID,
			"clinic_id":     inv.ClinicID,
			"user_id":       u.ID,
			"role":          inv.Role,
		})
		if err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, evt)
	})
	if errors.Is(err, ErrInvitationExpired) {
		if _, xerr := s.pool.Exec(ctx, `UPDATE invitations SET status = 'EXPIRED' WHERE id = $1 AND status = 'PENDING'`, inv.ID); xerr != nil {
			return inv, xerr
		}
		inv.Status = model.InvitationExpired
	}
	return inv, mapErr(err)
}

// ExpireLapsedInvitations marks every pending invitation past its deadline as EXPIRED.
func (s *Store) ExpireLapsedInvitations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
