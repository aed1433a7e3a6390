package repository

import (
	"context"
	"regexp"
	"testing"

	"bookshare/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID_Mock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedError error
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "role"}).AddRow(1, "clive", "admin")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, "clive", user.Username)
				assert.True(t, user.IsAdmin())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateUsername(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	seedUser(t, s, "sally", models.RoleRegular)
	err := s.Users().Create(ctx, &models.User{Username: "sally", Password: "x", Role: models.RoleRegular, JoinDate: testDay})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_GetByUsername_LowerCases(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	seedUser(t, s, "sally", models.RoleRegular)

	u, err := s.Users().GetByUsername(ctx, "SALLY")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "sally", u.Username)

	u, err = s.Users().GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_IncrementCounter(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "sally", models.RoleRegular)

	require.NoError(t, s.Users().IncrementCounter(ctx, u.ID, CounterTotalLoans))
	require.NoError(t, s.Users().IncrementCounter(ctx, u.ID, CounterTotalLoans))
	require.NoError(t, s.Users().IncrementCounter(ctx, u.ID, CounterTotalListings))

	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalLoans)
	assert.Equal(t, 1, got.TotalListings)

	assert.Error(t, s.Users().IncrementCounter(ctx, u.ID, "password"))
	assert.ErrorIs(t, s.Users().IncrementCounter(ctx, 999, CounterTotalLoans), ErrNotFound)
}

func TestUserRepository_ListFilters(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	seedUser(t, s, "clive", models.RoleAdmin)
	sally := seedUser(t, s, "sally", models.RoleRegular)
	seedUser(t, s, "sam", models.RoleRegular)
	require.NoError(t, s.Users().UpdateFields(ctx, sally.ID, map[string]interface{}{"marked_for_deletion": true}))

	all, err := s.Users().List(ctx, UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byText, err := s.Users().List(ctx, UserFilter{Search: "SA"})
	require.NoError(t, err)
	assert.Len(t, byText, 2)

	admins, err := s.Users().List(ctx, UserFilter{Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "clive", admins[0].Username)

	marked, err := s.Users().List(ctx, UserFilter{MarkedForDeletion: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, marked, 1)
	assert.Equal(t, sally.ID, marked[0].ID)

	n, err := s.Users().CountByRole(ctx, models.RoleRegular)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner", models.RoleRegular)
	borrower := seedUser(t, s, "borrower", models.RoleRegular)

	ownBook := seedListing(t, s, owner, "Owned", nil)
	borrowedBook := seedListing(t, s, borrower, "Borrowed", nil)
	seedLoan(t, s, ownBook, borrower, testDay)
	require.NoError(t, s.Listings().UpdateFields(ctx, ownBook.ID, map[string]interface{}{"is_available": false}))
	seedLoan(t, s, borrowedBook, owner, testDay)

	require.NoError(t, s.Users().Delete(ctx, borrower.ID))

	var loans, listings int64
	require.NoError(t, db.Model(&models.Loan{}).Count(&loans).Error)
	require.NoError(t, db.Model(&models.Listing{}).Count(&listings).Error)
	assert.Zero(t, loans)
	assert.Equal(t, int64(1), listings)

	got, err := s.Listings().GetByID(ctx, ownBook.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable, "listing lent to the deleted user is available again")

	assert.ErrorIs(t, s.Users().Delete(ctx, borrower.ID), ErrNotFound)
}
