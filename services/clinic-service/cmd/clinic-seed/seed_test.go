package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

func TestParseExampleSeed(t *testing.T) {
	f, err := os.Open("seed.example.yaml")
	require.NoError(t, err)
	defer f.Close()

	seed, err := parseSeed(f)
	require.NoError(t, err)
	require.Len(t, seed.SuperAdmins, 1)
	require.Len(t, seed.Clinics, 1)

	c := seed.Clinics[0]
	require.Equal(t, "VET", c.Staff[0].Role)
	require.Equal(t, "dr.silva@happypaws.lk", c.Staff[0].Email)
	require.Len(t, c.Owners[0].Pets, 1)

	clinic, err := c.model()
	require.NoError(t, err)
	require.Equal(t, model.PlanStarter, clinic.Plan)
	require.Equal(t, "Asia/Colombo", clinic.Timezone)
	require.True(t, clinic.BusinessHours["sunday"].Closed)
	require.Equal(t, "08:30", clinic.BusinessHours["monday"].Open)
}

func TestParseSeedRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"unknown key":    "clinics:\n  - name: A Clinic\n    colour: red\n",
		"bad timezone":   "clinics:\n  - name: A Clinic\n    timezone: Mars/Olympus\n",
		"bad plan":       "clinics:\n  - name: A Clinic\n    plan: GOLD\n",
		"bad hours":      "clinics:\n  - name: A Clinic\n    business_hours:\n      monday: {open: \"17:00\", close: \"09:00\"}\n",
		"duplicate slug": "clinics:\n  - name: A Clinic\n  - name: a clinic\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseSeed(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

type fakeSeedStore struct {
	users    []model.User
	clinics  map[string]model.Clinic
	services []model.Service
	pets     []model.Pet
}

func (s *fakeSeedStore) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return storage.ErrEmailTaken
		}
	}
	u.ID = "user-" + u.Email
	s.users = append(s.users, *u)
	return nil
}

func (s *fakeSeedStore) CreateClinicWithAdmin(ctx context.Context, c *model.Clinic, admin *model.User) error {
	if _, ok := s.clinics[c.Slug]; ok {
		return storage.ErrSlugTaken
	}
	c.ID = "clinic-" + c.Slug
	admin.ClinicID = c.ID
	s.clinics[c.Slug] = *c
	return s.CreateUser(ctx, admin)
}

func (s *fakeSeedStore) CreateService(_ context.Context, svc *model.Service) error {
	s.services = append(s.services, *svc)
	return nil
}

func (s *fakeSeedStore) CreatePet(_ context.Context, p *model.Pet) error {
	s.pets = append(s.pets, *p)
	return nil
}

func TestSeederIsRerunnable(t *testing.T) {
	f, err := os.Open("seed.example.yaml")
	require.NoError(t, err)
	defer f.Close()
	seed, err := parseSeed(f)
	require.NoError(t, err)

	store := &fakeSeedStore{clinics: map[string]model.Clinic{}}
	s := &seeder{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cost:   bcrypt.MinCost,
		now:    func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	require.NoError(t, s.run(context.Background(), seed))

	require.Len(t, store.clinics, 1)
	require.Len(t, store.users, 5)
	require.Len(t, store.services, 2)
	require.Len(t, store.pets, 1)

	roles := map[identity.Role]int{}
	for _, u := range store.users {
		roles[u.Role]++
		if u.Role.ClinicBound() || u.Role == identity.PetOwner {
			require.Equal(t, "clinic-happy-paws", u.ClinicID, u.Email)
		}
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("change-me-please")))
	}
	require.Equal(t, map[identity.Role]int{
		identity.SuperAdmin:   1,
		identity.ClinicAdmin:  1,
		identity.Vet:          1,
		identity.Receptionist: 1,
		identity.PetOwner:     1,
	}, roles)
	require.Equal(t, "+94771234567", store.users[4].Phone)
	require.Equal(t, "clinic-happy-paws", store.pets[0].ClinicID)

	require.NoError(t, s.run(context.Background(), seed))
	require.Len(t, store.users, 5)
	require.Len(t, store.services, 2)
}
