package repository

import (
	"context"
	"testing"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var testDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func setupStore(t *testing.T) (Store, *gorm.DB) {
	db := testutil.NewDB(t)
	return NewStore(db), db
}

func seedUser(t *testing.T, s Store, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "hash", Role: role, JoinDate: testDay}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedGenre(t *testing.T, s Store, name string) *models.Genre {
	t.Helper()
	g := &models.Genre{Name: name, Image: name + ".png"}
	require.NoError(t, s.Genres().Create(context.Background(), g))
	return g
}

func seedListing(t *testing.T, s Store, owner *models.User, title string, genre *models.Genre) *models.Listing {
	t.Helper()
	l := &models.Listing{Title: title, Author: "Author of " + title, UserID: owner.ID, IsAvailable: true, DateListed: testDay}
	if genre != nil {
		l.GenreID = &genre.ID
	}
	require.NoError(t, s.Listings().Create(context.Background(), l))
	return l
}

func seedLoan(t *testing.T, s Store, listing *models.Listing, borrower *models.User, start time.Time) *models.Loan {
	t.Helper()
	loan := &models.Loan{
		ListingID:  listing.ID,
		UserID:     borrower.ID,
		StartDate:  start,
		ReturnDate: start.AddDate(0, 0, models.LoanPeriodDays),
	}
	require.NoError(t, s.Loans().Create(context.Background(), loan))
	return loan
}

func boolPtr(b bool) *bool { return &b }
func uintPtr(u uint) *uint { return &u }
