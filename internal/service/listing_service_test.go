package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newListingService(t *testing.T) (*ListingService, repository.Store, *recordingMetrics) {
	t.Helper()
	store := newTestStore(t)
	metrics := &recordingMetrics{}
	svc := NewListingService(store, metrics)
	svc.now = fixedClock()
	return svc, store, metrics
}

func TestListingService_LendingScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, metrics := newListingService(t)

	alice := seedUser(t, store, "alice", models.RoleRegular)
	bob := seedUser(t, store, "bob", models.RoleRegular)

	dune, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: alice.ID, Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	assert.True(t, dune.IsAvailable)
	assertSameDay(t, testToday, dune.DateListed)

	loan, err := svc.Reserve(ctx, bob.ID, dune.ID)
	require.NoError(t, err)
	assertSameDay(t, testToday.AddDate(0, 0, 1), loan.StartDate)
	assertSameDay(t, testToday.AddDate(0, 0, 22), loan.ReturnDate)
	assert.False(t, loan.IsReturned)

	reloaded, err := svc.GetListing(ctx, dune.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsAvailable)
	assert.True(t, reloaded.OnLoan())

	_, err = svc.Reserve(ctx, bob.ID, dune.ID)
	appErr := assertAppError(t, err, models.CodeBusinessRule)
	assert.Contains(t, appErr.Message, "not available")

	returned, err := svc.ReturnLoan(ctx, loan.ID, testToday.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.True(t, returned.IsReturned)
	require.NotNil(t, returned.ActualReturnDate)
	assertSameDay(t, testToday.AddDate(0, 0, 5), *returned.ActualReturnDate)

	reloaded, err = svc.GetListing(ctx, dune.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsAvailable)

	owner, err := store.Users().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, owner.TotalListings)
	borrower, err := store.Users().GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, borrower.TotalLoans)

	assert.Equal(t, 1, metrics.listings)
	assert.Equal(t, 1, metrics.loans)
}

func TestListingService_CreateListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)

		tests := []struct {
			name  string
			input CreateListingInput
			msg   string
		}{
			{"empty title", CreateListingInput{OwnerID: owner.ID, Title: "   "}, "Title cannot be empty."},
			{"long title", CreateListingInput{OwnerID: owner.ID, Title: strings.Repeat("t", 151)}, "Title cannot exceed 150 characters."},
			{"long author", CreateListingInput{OwnerID: owner.ID, Title: "ok", Author: strings.Repeat("a", 51)}, "Author cannot exceed 50 characters."},
			{"long description", CreateListingInput{OwnerID: owner.ID, Title: "ok", Description: strings.Repeat("d", 401)}, "Description cannot exceed 400 characters."},
		}
		for _, tt := range tests {
			_, err := svc.CreateListing(ctx, tt.input)
			appErr := assertAppError(t, err, models.CodeValidation)
			assert.Equal(t, tt.msg, appErr.Message, tt.name)
		}
	})

	t.Run("unknown genre", func(t *testing.T) {
		t.Parallel()
		svc, store, metrics := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)

		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Lost", GenreID: uintPtr(99)})
		assertAppError(t, err, models.CodeNotFound)

		reloaded, err := store.Users().GetByID(ctx, owner.ID)
		require.NoError(t, err)
		assert.Zero(t, reloaded.TotalListings, "counter must roll back with the listing")
		assert.Zero(t, metrics.listings)
	})

	t.Run("inactive genre", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		genre := seedGenre(t, store, "Retired")
		require.NoError(t, store.Genres().UpdateFields(ctx, genre.ID, map[string]interface{}{"inactive": true}))

		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Old", GenreID: &genre.ID})
		assertAppError(t, err, models.CodeValidation)
	})

	t.Run("unknown owner", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newListingService(t)
		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: 42, Title: "Ghost"})
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("metrics failure does not fail creation", func(t *testing.T) {
		t.Parallel()
		svc, store, metrics := newListingService(t)
		metrics.err = errors.New("disk full")
		owner := seedUser(t, store, "owner", models.RoleRegular)

		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "  Trimmed  "})
		require.NoError(t, err)
		assert.Equal(t, "Trimmed", listing.Title)
	})

	t.Run("counter failure rolls back the listing", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t)
		metrics := &recordingMetrics{}
		svc := NewListingService(counterFailingStore{store}, metrics)
		svc.now = fixedClock()
		owner := seedUser(t, store, "owner", models.RoleRegular)

		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Half written"})
		assertAppError(t, err, models.CodeInternal)
		assert.ErrorIs(t, err, errCounterWrite)

		listings, err := store.Listings().Search(ctx, repository.ListingFilter{})
		require.NoError(t, err)
		assert.Empty(t, listings)
		reloaded, err := store.Users().GetByID(ctx, owner.ID)
		require.NoError(t, err)
		assert.Zero(t, reloaded.TotalListings)
		assert.Zero(t, metrics.listings)
	})

	t.Run("infrastructure failure is hidden", func(t *testing.T) {
		t.Parallel()
		svc := NewListingService(brokenStore{}, nil)
		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: 1, Title: "Any"})
		appErr := assertAppError(t, err, models.CodeInternal)
		assert.Equal(t, "Internal server error", appErr.Message)
		assert.ErrorIs(t, err, errDatabaseDown)
	})
}

func TestListingService_EditListing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*ListingService, repository.Store, *models.User, *models.Listing, *models.Genre) {
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		genre := seedGenre(t, store, "Fantasy")
		listing, err := svc.CreateListing(ctx, CreateListingInput{
			OwnerID: owner.ID, Title: "The Hobbit", Author: "Tolkien", Description: "There and back", GenreID: &genre.ID,
		})
		require.NoError(t, err)
		return svc, store, owner, listing, genre
	}

	t.Run("non-owner is forbidden whatever the fields", func(t *testing.T) {
		t.Parallel()
		svc, store, _, listing, _ := setup(t)
		stranger := seedUser(t, store, "stranger", models.RoleRegular)

		inputs := []EditListingInput{
			{},
			{Title: strPtr("Mine now")},
			{IsAvailable: boolPtr(false)},
			{MarkedForDeletion: boolPtr(true)},
			{Title: strPtr(strings.Repeat("x", 500))},
		}
		for _, in := range inputs {
			in.ListingID = listing.ID
			in.ActingUserID = stranger.ID
			_, err := svc.EditListing(ctx, in)
			assertAppError(t, err, models.CodeForbidden)
		}

		_, err := svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: 999, Title: strPtr("x")})
		assertAppError(t, err, models.CodeForbidden)
	})

	t.Run("admin may edit", func(t *testing.T) {
		t.Parallel()
		svc, store, _, listing, _ := setup(t)
		admin := seedUser(t, store, "root", models.RoleAdmin)

		updated, err := svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: admin.ID, Title: strPtr("Moderated")})
		require.NoError(t, err)
		assert.Equal(t, "Moderated", updated.Title)
	})

	t.Run("description only leaves the rest", func(t *testing.T) {
		t.Parallel()
		svc, _, owner, listing, genre := setup(t)

		updated, err := svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, Description: strPtr("Revised")})
		require.NoError(t, err)
		assert.Equal(t, "Revised", updated.Description)
		assert.Equal(t, "The Hobbit", updated.Title)
		assert.Equal(t, "Tolkien", updated.Author)
		require.NotNil(t, updated.GenreID)
		assert.Equal(t, genre.ID, *updated.GenreID)
	})

	t.Run("genre can be cleared", func(t *testing.T) {
		t.Parallel()
		svc, _, owner, listing, _ := setup(t)

		updated, err := svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, SetGenre: true})
		require.NoError(t, err)
		assert.Nil(t, updated.GenreID)
	})

	t.Run("unknown listing", func(t *testing.T) {
		t.Parallel()
		svc, _, owner, _, _ := setup(t)
		_, err := svc.EditListing(ctx, EditListingInput{ListingID: 404, ActingUserID: owner.ID})
		assertAppError(t, err, models.CodeNotFound)
	})

	t.Run("availability locked while on loan", func(t *testing.T) {
		t.Parallel()
		svc, store, owner, listing, _ := setup(t)
		borrower := seedUser(t, store, "borrower", models.RoleRegular)
		_, err := svc.Reserve(ctx, borrower.ID, listing.ID)
		require.NoError(t, err)

		_, err = svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, IsAvailable: boolPtr(true)})
		appErr := assertAppError(t, err, models.CodeBusinessRule)
		assert.Equal(t, MsgAvailabilityOnLoan, appErr.Message)

		// Same value is not a change.
		_, err = svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, IsAvailable: boolPtr(false)})
		require.NoError(t, err)
	})

	t.Run("availability locked while marked", func(t *testing.T) {
		t.Parallel()
		svc, _, owner, listing, _ := setup(t)

		marked, err := svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, MarkedForDeletion: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, marked.MarkedForDeletion)
		assert.False(t, marked.IsAvailable)

		_, err = svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, IsAvailable: boolPtr(true)})
		appErr := assertAppError(t, err, models.CodeBusinessRule)
		assert.Equal(t, MsgAvailabilityMarked, appErr.Message)
	})
}

func TestListingService_ToggleMarkedForDeletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _ := newListingService(t)
	owner := seedUser(t, store, "owner", models.RoleRegular)
	listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Emma"})
	require.NoError(t, err)

	msg, err := svc.ToggleMarkedForDeletion(ctx, listing.ID, true)
	require.NoError(t, err)
	assert.Equal(t, MsgMarkedForDeletion, msg)

	reloaded, err := svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.MarkedForDeletion)
	assert.False(t, reloaded.IsAvailable)

	msg, err = svc.ToggleMarkedForDeletion(ctx, listing.ID, false)
	require.NoError(t, err)
	assert.Equal(t, MsgUnmarkedForDeletion, msg)

	_, err = svc.ToggleMarkedForDeletion(ctx, 404, true)
	assertAppError(t, err, models.CodeNotFound)
}

func TestListingService_Reserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("own listing", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Mine"})
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, owner.ID, listing.ID)
		appErr := assertAppError(t, err, models.CodeBusinessRule)
		assert.Equal(t, MsgOwnReservation, appErr.Message)
	})

	t.Run("unavailable listing leaves no loan", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		reader := seedUser(t, store, "reader", models.RoleRegular)
		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Shelved"})
		require.NoError(t, err)
		_, err = svc.EditListing(ctx, EditListingInput{ListingID: listing.ID, ActingUserID: owner.ID, IsAvailable: boolPtr(false)})
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, reader.ID, listing.ID)
		assertAppError(t, err, models.CodeBusinessRule)

		loans, err := svc.SearchLoans(ctx, repository.LoanFilter{})
		require.NoError(t, err)
		assert.Empty(t, loans)
		u, err := store.Users().GetByID(ctx, reader.ID)
		require.NoError(t, err)
		assert.Zero(t, u.TotalLoans)
	})

	t.Run("unknown listing and unknown user", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Lonely"})
		require.NoError(t, err)

		_, err = svc.Reserve(ctx, owner.ID, 404)
		assertAppError(t, err, models.CodeNotFound)

		_, err = svc.Reserve(ctx, 404, listing.ID)
		assertAppError(t, err, models.CodeNotFound)

		reloaded, err := svc.GetListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsAvailable)
	})

	t.Run("counter failure releases the claim", func(t *testing.T) {
		t.Parallel()
		svc, store, metrics := newListingService(t)
		owner := seedUser(t, store, "owner", models.RoleRegular)
		reader := seedUser(t, store, "reader", models.RoleRegular)
		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Contested"})
		require.NoError(t, err)

		failing := NewListingService(counterFailingStore{store}, metrics)
		failing.now = fixedClock()
		_, err = failing.Reserve(ctx, reader.ID, listing.ID)
		assertAppError(t, err, models.CodeInternal)
		assert.ErrorIs(t, err, errCounterWrite)

		reloaded, err := svc.GetListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsAvailable, "claim must roll back with the loan")
		loans, err := svc.SearchLoans(ctx, repository.LoanFilter{})
		require.NoError(t, err)
		assert.Empty(t, loans)
		u, err := store.Users().GetByID(ctx, reader.ID)
		require.NoError(t, err)
		assert.Zero(t, u.TotalLoans)
		assert.Zero(t, metrics.loans)
	})
}

func TestListingService_ReturnLoan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _ := newListingService(t)
	owner := seedUser(t, store, "owner", models.RoleRegular)
	reader := seedUser(t, store, "reader", models.RoleRegular)
	listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: "Persuasion"})
	require.NoError(t, err)
	loan, err := svc.Reserve(ctx, reader.ID, listing.ID)
	require.NoError(t, err)

	returned, err := svc.ReturnLoan(ctx, loan.ID, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, returned.ActualReturnDate)
	assertSameDay(t, testToday, *returned.ActualReturnDate)

	_, err = svc.ReturnLoan(ctx, loan.ID, testToday)
	appErr := assertAppError(t, err, models.CodeBusinessRule)
	assert.Equal(t, MsgLoanAlreadyReturned, appErr.Message)

	_, err = svc.ReturnLoan(ctx, 404, testToday)
	assertAppError(t, err, models.CodeNotFound)

	record, err := svc.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusPast, record.Status)
}

func TestListingService_SearchLoans(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _ := newListingService(t)
	owner := seedUser(t, store, "owner", models.RoleRegular)
	reader := seedUser(t, store, "reader", models.RoleRegular)

	reserve := func(title string) *models.Loan {
		listing, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: title})
		require.NoError(t, err)
		loan, err := svc.Reserve(ctx, reader.ID, listing.ID)
		require.NoError(t, err)
		return loan
	}

	current := reserve("Current")
	late := reserve("Late")
	done := reserve("Done")

	require.NoError(t, store.Loans().UpdateFields(ctx, late.ID, map[string]interface{}{"return_date": testToday.AddDate(0, 0, -1)}))
	_, err := svc.ReturnLoan(ctx, done.ID, testToday)
	require.NoError(t, err)

	tests := []struct {
		status models.LoanStatus
		want   uint
	}{
		{models.LoanStatusActive, current.ID},
		{models.LoanStatusOverdue, late.ID},
		{models.LoanStatusPast, done.ID},
	}
	for _, tt := range tests {
		records, err := svc.SearchLoans(ctx, repository.LoanFilter{BorrowerID: &reader.ID, Status: tt.status})
		require.NoError(t, err)
		require.Len(t, records, 1, string(tt.status))
		assert.Equal(t, tt.want, records[0].ID)
		assert.Equal(t, tt.status, records[0].Status)
	}

	byText, err := svc.SearchLoans(ctx, repository.LoanFilter{Text: "READER"})
	require.NoError(t, err)
	assert.Len(t, byText, 3)
}

func TestListingService_SearchListingsNoConstraint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _ := newListingService(t)
	owner := seedUser(t, store, "owner", models.RoleRegular)
	genre := seedGenre(t, store, "Poetry")
	for _, title := range []string{"Odes", "Sonnets", "Haiku"} {
		_, err := svc.CreateListing(ctx, CreateListingInput{OwnerID: owner.ID, Title: title, GenreID: &genre.ID})
		require.NoError(t, err)
	}

	bare, err := svc.SearchListings(ctx, repository.ListingFilter{})
	require.NoError(t, err)
	explicit, err := svc.SearchListings(ctx, repository.ListingFilter{Text: "  ", GenreName: "", Sort: repository.SortDesc})
	require.NoError(t, err)

	require.Len(t, bare, 3)
	ids := func(ls []models.Listing) []uint {
		out := make([]uint, 0, len(ls))
		for _, l := range ls {
			out = append(out, l.ID)
		}
		return out
	}
	assert.Equal(t, ids(bare), ids(explicit))
}
