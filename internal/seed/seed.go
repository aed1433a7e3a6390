// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures a seed run.
type Options struct {
	NumUsers    int
	NumListings int
	NumLoans    int
	ShouldClean bool
	// FastHashing hashes passwords with bcrypt.MinCost.
	FastHashing bool
	// RandSeed makes generated data reproducible; zero picks one from the clock.
	RandSeed int64
}

// Report counts what a run created.
type Report struct {
	Genres   int
	Users    int
	Listings int
	Loans    int
	Returned int
}

// Seeder writes fixtures and generated data through the regular services so
// counters, availability and loan dates stay consistent.
type Seeder struct {
	db       *gorm.DB
	store    repository.Store
	admin    *service.AdminService
	listings *service.ListingService
	factory  *Factory
	opts     Options
}

// NewSeeder builds a Seeder. metrics receives the overall listing and loan
// increments; pass service.NopMetrics{} to skip them.
func NewSeeder(db *gorm.DB, metrics service.MetricsSink, opts Options) *Seeder {
	store := repository.NewStore(db)
	hasher := service.BcryptHasher{}
	if opts.FastHashing {
		hasher.Cost = bcrypt.MinCost
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:       db,
		store:    store,
		admin:    service.NewAdminService(store, nil),
		listings: service.NewListingService(store, metrics),
		factory:  NewFactory(store, hasher, gofakeit.New(seed)),
		opts:     opts,
	}
}

// Run loads fx and then generates the configured number of members, listings
// and loans. Existing genres and fixture users are left untouched.
func (s *Seeder) Run(ctx context.Context, fx *Fixtures) (*Report, error) {
	slog.Info("seeding database",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("listings", s.opts.NumListings),
		slog.Int("loans", s.opts.NumLoans))

	if s.opts.ShouldClean {
		if err := ClearData(s.db); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	report := &Report{}
	genres, created, err := s.ensureGenres(ctx, fx.Genres)
	if err != nil {
		return nil, err
	}
	report.Genres = created

	users, created, err := s.ensureUsers(ctx, fx.Users)
	if err != nil {
		return nil, err
	}
	report.Users = created

	members, err := s.factory.CreateUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	report.Users += len(members)
	users = append(users, members...)

	listings, err := s.createListings(ctx, users, genres)
	if err != nil {
		return nil, err
	}
	report.Listings = len(listings)

	if err := s.createLoans(ctx, users, listings, report); err != nil {
		return nil, err
	}

	slog.Info("seeding complete",
		slog.Int("genres", report.Genres),
		slog.Int("users", report.Users),
		slog.Int("listings", report.Listings),
		slog.Int("loans", report.Loans),
		slog.Int("returned", report.Returned))
	return report, nil
}

func (s *Seeder) ensureGenres(ctx context.Context, fixtures []GenreFixture) ([]models.Genre, int, error) {
	out := make([]models.Genre, 0, len(fixtures))
	created := 0
	for _, g := range fixtures {
		existing, err := s.store.Genres().FindByName(ctx, g.Name)
		if err != nil {
			return nil, 0, fmt.Errorf("seed genre %s: %w", g.Name, err)
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}
		genre, err := s.admin.CreateGenre(ctx, g.Name, g.Image)
		if err != nil {
			return nil, 0, fmt.Errorf("seed genre %s: %w", g.Name, err)
		}
		out = append(out, *genre)
		created++
	}
	return out, created, nil
}

func (s *Seeder) ensureUsers(ctx context.Context, fixtures []UserFixture) ([]models.User, int, error) {
	out := make([]models.User, 0, len(fixtures))
	created := 0
	for _, u := range fixtures {
		existing, err := s.store.Users().GetByUsername(ctx, u.Username)
		if err != nil {
			return nil, 0, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}
		user, err := s.factory.CreateUser(ctx, u.Username, u.Password, models.Role(u.Role))
		if err != nil {
			return nil, 0, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		out = append(out, *user)
		created++
	}
	return out, created, nil
}

func (s *Seeder) createListings(ctx context.Context, owners []models.User, genres []models.Genre) ([]models.Listing, error) {
	if len(owners) == 0 || s.opts.NumListings <= 0 {
		return nil, nil
	}
	out := make([]models.Listing, 0, s.opts.NumListings)
	for i := 0; i < s.opts.NumListings; i++ {
		owner := owners[s.factory.Intn(len(owners))]
		listing, err := s.listings.CreateListing(ctx, s.factory.BuildListing(owner.ID, genres))
		if err != nil {
			return nil, fmt.Errorf("create listing: %w", err)
		}
		out = append(out, *listing)
	}
	return out, nil
}

// createLoans reserves random listings for random borrowers. Picks that break
// a lending rule are skipped; the attempt budget keeps small pools finite.
func (s *Seeder) createLoans(ctx context.Context, borrowers []models.User, listings []models.Listing, report *Report) error {
	if len(borrowers) < 2 || len(listings) == 0 {
		return nil
	}
	for attempts := 0; report.Loans < s.opts.NumLoans && attempts < s.opts.NumLoans*10; attempts++ {
		listing := listings[s.factory.Intn(len(listings))]
		borrower := borrowers[s.factory.Intn(len(borrowers))]

		loan, err := s.listings.Reserve(ctx, borrower.ID, listing.ID)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeBusinessRule {
				continue
			}
			return fmt.Errorf("reserve listing %d: %w", listing.ID, err)
		}
		report.Loans++

		if s.factory.Intn(3) == 0 {
			if _, err := s.listings.ReturnLoan(ctx, loan.ID, loan.StartDate); err != nil {
				return fmt.Errorf("return loan %d: %w", loan.ID, err)
			}
			report.Returned++
		}
	}
	return nil
}

// ClearData removes every loan, listing, user and genre.
func ClearData(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Loan{}, &models.Listing{}, &models.User{}, &models.Genre{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
