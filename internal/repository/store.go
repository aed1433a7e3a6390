package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories and opens transactions spanning them.
type Store interface {
	Users() UserRepository
	Genres() GenreRepository
	Listings() ListingRepository
	Loans() LoanRepository
	// Transaction runs fn against repositories bound to a single database
	// transaction. Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db       *gorm.DB
	users    UserRepository
	genres   GenreRepository
	listings ListingRepository
	loans    LoanRepository
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:       db,
		users:    NewUserRepository(db),
		genres:   NewGenreRepository(db),
		listings: NewListingRepository(db),
		loans:    NewLoanRepository(db),
	}
}

func (s *gormStore) Users() UserRepository       { return s.users }
func (s *gormStore) Genres() GenreRepository     { return s.genres }
func (s *gormStore) Listings() ListingRepository { return s.listings }
func (s *gormStore) Loans() LoanRepository       { return s.loans }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
