package storage

import (
	"context"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

const petColumns = `id, name, species, breed, gender, date_of_birth, owner_id, clinic_id, active, created_at`

func scanPet(row rowScanner) (model.Pet, error) {
	var p model.Pet
	err := row.Scan(&p.ID, &p.Name, &p.Species, &p.Breed, &p.Gender, &p.DateOfBirth, &p.OwnerID, &p.ClinicID, &p.Active, &p.CreatedAt)
	return p, mapErr(err)
}

// PetScope restricts pet lookups: staff pass ClinicID, owners pass OwnerID.
// Empty fields do not constrain.
type PetScope struct {
	ClinicID string
	OwnerID  string
}

func (s *Store) CreatePet(ctx context.Context, p *model.Pet) error {
	p.ID = newID()
	p.Active = true
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pets (id, name, species, breed, gender, date_of_birth, owner_id, clinic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, p.ID, p.Name, p.Species, p.Breed, p.Gender, p.DateOfBirth, p.OwnerID, p.ClinicID).Scan(&p.CreatedAt)
	return mapErr(err)
}

func (s *Store) GetPet(ctx context.Context, id string, scope PetScope) (model.Pet, error) {
	return scanPet(s.pool.QueryRow(ctx, `
		SELECT `+petColumns+`
		FROM pets
		WHERE id = $1 AND ($2 = '' OR clinic_id = $2) AND ($3 = '' OR owner_id = $3) AND active
	`, id, scope.ClinicID, scope.OwnerID))
}

func (s *Store) ListPets(ctx context.Context, scope PetScope) ([]model.Pet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+petColumns+`
		FROM pets
		WHERE ($1 = '' OR clinic_id = $1) AND ($2 = '' OR owner_id = $2) AND active
		ORDER BY name ASC
		LIMIT 500
	`, scope.ClinicID, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePet(ctx context.Context, p model.Pet, scope PetScope) (model.Pet, error) {
	return scanPet(s.pool.QueryRow(ctx, `
		UPDATE pets
		SET name = $4, species = $5, breed = $6, gender = $7, date_of_birth = $8
		WHERE id = $1 AND ($2 = '' OR clinic_id = $2) AND ($3 = '' OR owner_id = $3) AND active
		RETURNING `+petColumns,
		p.ID, scope.ClinicID, scope.OwnerID, p.Name, p.Species, p.Breed, p.Gender, p.DateOfBirth))
}

func (s *Store) DeactivatePet(ctx context.Context, id string, scope PetScope) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pets SET active = false
		WHERE id = $1 AND ($2 = '' OR clinic_id = $2) AND ($3 = '' OR owner_id = $3) AND active
	`, id, scope.ClinicID, scope.OwnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
