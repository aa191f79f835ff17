// Command clinic-seed loads demo clinics, staff, services, owners and pets
// from a YAML file. Clinics whose slug already exists are skipped, so the
// command can be re-run against the same database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vetcare/vetcare/libs/config"
	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/libs/runtime"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/migrations"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	path := flag.String("file", "seed.yaml", "seed file")
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	logger := runtime.NewLogger("clinic-seed")
	ctx, stop := runtime.SignalContext()
	defer stop()

	f, err := os.Open(*path)
	if err != nil {
		logger.Error("open seed file", "path", *path, "err", err)
		os.Exit(1)
	}
	seed, err := parseSeed(f)
	_ = f.Close()
	if err != nil {
		logger.Error("invalid seed file", "path", *path, "err", err)
		os.Exit(1)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	if *migrate {
		if err := db.Migrate(logger, dbURL, migrations.FS, migrations.Dir); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	s := &seeder{store: storage.New(pool), logger: logger, cost: bcrypt.DefaultCost, now: time.Now}
	if err := s.run(ctx, seed); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

// seedStore is the part of the storage layer the seeder writes through.
type seedStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	CreateClinicWithAdmin(ctx context.Context, c *model.Clinic, admin *model.User) error
	CreateService(ctx context.Context, svc *model.Service) error
	CreatePet(ctx context.Context, p *model.Pet) error
}

type seeder struct {
	store  seedStore
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

func (s *seeder) run(ctx context.Context, seed seedFile) error {
	for _, a := range seed.SuperAdmins {
		u, err := s.account(a, identity.SuperAdmin, "")
		if err != nil {
			return err
		}
		if err := s.store.CreateUser(ctx, &u); err != nil {
			if storage.IsConflict(err) {
				s.logger.Info("super admin exists; skipping", "email", u.Email)
				continue
			}
			return fmt.Errorf("super admin %s: %w", u.Email, err)
		}
		s.logger.Info("super admin created", "user_id", u.ID)
	}
	for _, c := range seed.Clinics {
		if err := s.clinic(ctx, c); err != nil {
			return fmt.Errorf("clinic %s: %w", c.Slug, err)
		}
	}
	return nil
}

func (s *seeder) clinic(ctx context.Context, sc seedClinic) error {
	clinic, err := sc.model()
	if err != nil {
		return err
	}
	admin, err := s.account(sc.Admin, identity.ClinicAdmin, "")
	if err != nil {
		return err
	}
	if err := s.store.CreateClinicWithAdmin(ctx, &clinic, &admin); err != nil {
		if storage.IsConflict(err) {
			s.logger.Info("clinic exists; skipping", "slug", clinic.Slug)
			return nil
		}
		return err
	}
	s.logger.Info("clinic created", "clinic_id", clinic.ID, "slug", clinic.Slug)

	for _, st := range sc.Staff {
		role, err := identity.ParseRole(st.Role)
		if err != nil || !role.Invitable() {
			return fmt.Errorf("staff %s: role %q is not a clinic role", st.Email, st.Role)
		}
		u, err := s.account(st.seedAccount, role, clinic.ID)
		if err != nil {
			return err
		}
		if err := s.store.CreateUser(ctx, &u); err != nil {
			return fmt.Errorf("staff %s: %w", u.Email, err)
		}
	}
	for _, ss := range sc.Services {
		svc := model.Service{ClinicID: clinic.ID}
		in := model.ServiceInput{
			Name:            ss.Name,
			DurationMinutes: ss.DurationMinutes,
			PriceCents:      ss.PriceCents,
			Currency:        ss.Currency,
			Color:           ss.Color,
		}
		if err := in.Apply(&svc); err != nil {
			return fmt.Errorf("service %q: %w", ss.Name, err)
		}
		if err := s.store.CreateService(ctx, &svc); err != nil {
			return fmt.Errorf("service %q: %w", ss.Name, err)
		}
	}
	for _, so := range sc.Owners {
		owner, err := s.account(so.seedAccount, identity.PetOwner, clinic.ID)
		if err != nil {
			return err
		}
		if err := s.store.CreateUser(ctx, &owner); err != nil {
			return fmt.Errorf("owner %s: %w", owner.Email, err)
		}
		for _, sp := range so.Pets {
			pet := model.Pet{OwnerID: owner.ID, ClinicID: clinic.ID}
			in := model.PetInput{
				Name:        sp.Name,
				Species:     sp.Species,
				Breed:       sp.Breed,
				Gender:      sp.Gender,
				DateOfBirth: sp.DateOfBirth,
			}
			if err := in.Apply(&pet, s.now()); err != nil {
				return fmt.Errorf("pet %q: %w", sp.Name, err)
			}
			if err := s.store.CreatePet(ctx, &pet); err != nil {
				return fmt.Errorf("pet %q: %w", sp.Name, err)
			}
		}
	}
	return nil
}

func (s *seeder) account(a seedAccount, role identity.Role, clinicID string) (model.User, error) {
	email, err := model.NormalizeEmail(a.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := model.ValidatePassword(a.Password); err != nil {
		return model.User{}, fmt.Errorf("%s: %w", email, err)
	}
	phone, err := model.NormalizePhone(a.Phone)
	if err != nil {
		return model.User{}, fmt.Errorf("%s: %w", email, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.cost)
	if err != nil {
		return model.User{}, err
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = email
	}
	return model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		Role:         role,
		ClinicID:     clinicID,
	}, nil
}
