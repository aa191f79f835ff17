package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
)

type seedFile struct {
	SuperAdmins []seedAccount `yaml:"super_admins"`
	Clinics     []seedClinic  `yaml:"clinics"`
}

type seedAccount struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Phone    string `yaml:"phone"`
}

type seedStaff struct {
	seedAccount `yaml:",inline"`
	Role        string `yaml:"role"`
}

type seedOwner struct {
	seedAccount `yaml:",inline"`
	Pets        []seedPet `yaml:"pets"`
}

type seedPet struct {
	Name        string `yaml:"name"`
	Species     string `yaml:"species"`
	Breed       string `yaml:"breed"`
	Gender      string `yaml:"gender"`
	DateOfBirth string `yaml:"date_of_birth"`
}

type seedService struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceCents      int64  `yaml:"price_cents"`
	Currency        string `yaml:"currency"`
	Color           string `yaml:"color"`
}

type seedClinic struct {
	Name          string                    `yaml:"name"`
	Slug          string                    `yaml:"slug"`
	Address       string                    `yaml:"address"`
	Phone         string                    `yaml:"phone"`
	Email         string                    `yaml:"email"`
	Timezone      string                    `yaml:"timezone"`
	Plan          string                    `yaml:"plan"`
	BusinessHours map[string]model.DayHours `yaml:"business_hours"`
	Admin         seedAccount               `yaml:"admin"`
	Staff         []seedStaff               `yaml:"staff"`
	Services      []seedService             `yaml:"services"`
	Owners        []seedOwner               `yaml:"owners"`
}

// parseSeed decodes a seed document, rejecting unknown keys.
func parseSeed(r io.Reader) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, errors.New("seed file is empty")
		}
		return f, err
	}
	seen := map[string]bool{}
	for _, c := range f.Clinics {
		if _, err := c.model(); err != nil {
			return f, fmt.Errorf("clinic %q: %w", c.Name, err)
		}
		if seen[c.slug()] {
			return f, fmt.Errorf("clinic slug %q listed twice", c.slug())
		}
		seen[c.slug()] = true
	}
	return f, nil
}

func (c seedClinic) slug() string {
	if s := strings.TrimSpace(c.Slug); s != "" {
		return s
	}
	return model.Slugify(c.Name)
}

func (c seedClinic) model() (model.Clinic, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return model.Clinic{}, model.Invalid("name", "is required")
	}
	slug := c.slug()
	if err := model.ValidateSlug(slug); err != nil {
		return model.Clinic{}, err
	}
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if err := model.ValidateTimezone(tz); err != nil {
		return model.Clinic{}, err
	}
	plan := model.PlanFree
	if strings.TrimSpace(c.Plan) != "" {
		p, err := model.ParsePlan(c.Plan)
		if err != nil {
			return model.Clinic{}, err
		}
		plan = p
	}
	hours := model.DefaultBusinessHours()
	if len(c.BusinessHours) > 0 {
		hours = model.BusinessHours(c.BusinessHours)
		if err := hours.Validate(); err != nil {
			return model.Clinic{}, err
		}
	}
	return model.Clinic{
		Name:          name,
		Slug:          slug,
		Address:       strings.TrimSpace(c.Address),
		Phone:         strings.TrimSpace(c.Phone),
		Email:         strings.TrimSpace(c.Email),
		Timezone:      tz,
		BusinessHours: hours,
		Plan:          plan,
	}, nil
}
