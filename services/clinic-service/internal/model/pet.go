package model

import (
	"strings"
	"time"
)

type Species string

const (
	SpeciesDog     Species = "DOG"
	SpeciesCat     Species = "CAT"
	SpeciesBird    Species = "BIRD"
	SpeciesRabbit  Species = "RABBIT"
	SpeciesReptile Species = "REPTILE"
	SpeciesOther   Species = "OTHER"
)

func ParseSpecies(s string) (Species, error) {
	switch sp := Species(strings.ToUpper(strings.TrimSpace(s))); sp {
	case SpeciesDog, SpeciesCat, SpeciesBird, SpeciesRabbit, SpeciesReptile, SpeciesOther:
		return sp, nil
	}
	return "", Invalid("species", "must be one of DOG, CAT, BIRD, RABBIT, REPTILE, OTHER")
}

type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderUnknown Gender = "UNKNOWN"
)

func ParseGender(s string) (Gender, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return GenderUnknown, nil
	}
	switch g := Gender(strings.ToUpper(s)); g {
	case GenderMale, GenderFemale, GenderUnknown:
		return g, nil
	}
	return "", Invalid("gender", "must be MALE, FEMALE or UNKNOWN")
}

type Pet struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Species     Species    `json:"species"`
	Breed       string     `json:"breed"`
	Gender      Gender     `json:"gender"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	OwnerID     string     `json:"owner_id"`
	ClinicID    string     `json:"clinic_id"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PetInput is the editable part of a pet shared by create and update forms.
type PetInput struct {
	Name        string
	Species     string
	Breed       string
	Gender      string
	DateOfBirth string
}

// Apply validates in and writes it onto p.
func (in PetInput) Apply(p *Pet, now time.Time) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Invalid("name", "is required")
	}
	if len(name) > 80 {
		return Invalid("name", "must be at most 80 characters")
	}
	species, err := ParseSpecies(in.Species)
	if err != nil {
		return err
	}
	gender, err := ParseGender(in.Gender)
	if err != nil {
		return err
	}
	var dob *time.Time
	if raw := strings.TrimSpace(in.DateOfBirth); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return Invalid("date_of_birth", "must be YYYY-MM-DD")
		}
		if d.After(now) {
			return Invalid("date_of_birth", "cannot be in the future")
		}
		dob = &d
	}
	p.Name = name
	p.Species = species
	p.Breed = strings.TrimSpace(in.Breed)
	p.Gender = gender
	p.DateOfBirth = dob
	return nil
}
