package service

import (
	"context"
	"errors"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/observability"
	"bookshare/internal/repository"
	"bookshare/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Messages returned to callers by the listing lifecycle.
const (
	MsgListingNotFound     = "Listing not found"
	MsgLoanNotFound        = "Loan not found"
	MsgOwnerNotFound       = "User not found"
	MsgGenreNotFound       = "Genre not found."
	MsgGenreInactive       = "This genre is not accepting new listings."
	MsgEditForbidden       = "You can't edit someone else's listing"
	MsgAvailabilityOnLoan  = "Cannot change availability while listing is on loan"
	MsgAvailabilityMarked  = "Cannot change availability while listing is marked for deletion"
	MsgNotAvailable        = "This book is not available for reservation"
	MsgOwnReservation      = "You cannot reserve your own book."
	MsgLoanAlreadyReturned = "Loan has already been returned"
	MsgMarkedForDeletion   = "Listing successfully marked for deletion."
	MsgUnmarkedForDeletion = "Listing successfully unmarked for deletion."
	MsgListingCreated      = "Listing created successfully"
	MsgListingUpdated      = "Listing updated successfully"
	MsgReserved            = "Book reserved successfully"
	MsgLoanReturned        = "Loan marked as returned"
)

// ListingService runs the listing and loan lifecycle.
type ListingService struct {
	store   repository.Store
	metrics MetricsSink
	now     clock
}

// NewListingService wires the service; a nil sink discards counter updates.
func NewListingService(store repository.Store, metrics MetricsSink) *ListingService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ListingService{store: store, metrics: metrics}
}

type CreateListingInput struct {
	OwnerID     uint
	Title       string
	Author      string
	Description string
	GenreID     *uint
}

// EditListingInput carries a partial update. Nil pointers leave the field
// untouched. The genre reference changes only when SetGenre is true, in which
// case a nil GenreID clears it.
type EditListingInput struct {
	ListingID         uint
	ActingUserID      uint
	Title             *string
	Author            *string
	Description       *string
	SetGenre          bool
	GenreID           *uint
	IsAvailable       *bool
	MarkedForDeletion *bool
}

// LoanRecord is a loan with its status derived at read time.
type LoanRecord struct {
	models.Loan
	Status models.LoanStatus `json:"status"`
}

type listingFields struct {
	title, author, description string
}

func validateListingText(title, author, description *string) (listingFields, error) {
	var out listingFields
	var err error
	if title != nil {
		if out.title, err = validation.RequiredText(*title, "Title", models.TitleMaxLength); err != nil {
			return out, validationFailure(err)
		}
	}
	if author != nil {
		if out.author, err = validation.OptionalText(*author, "Author", models.AuthorMaxLength); err != nil {
			return out, validationFailure(err)
		}
	}
	if description != nil {
		if out.description, err = validation.OptionalText(*description, "Description", models.DescriptionMaxLength); err != nil {
			return out, validationFailure(err)
		}
	}
	return out, nil
}

// checkGenre returns nil when id is nil or names an existing genre.
func checkGenre(ctx context.Context, tx repository.Store, id *uint, requireActive bool) error {
	if id == nil {
		return nil
	}
	genre, err := tx.Genres().GetByID(ctx, *id)
	if err != nil {
		return notFoundAs(ctx, "genre.get", err, MsgGenreNotFound)
	}
	if requireActive && genre.Inactive {
		return models.NewValidationError(MsgGenreInactive)
	}
	return nil
}

// CreateListing publishes a new available listing for the owner and bumps the
// owner's listing counter in the same transaction.
func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput) (listing *models.Listing, err error) {
	ctx, span := observability.StartSpan(ctx, "listing", "create", attribute.Int64("owner.id", int64(in.OwnerID)))
	defer func() { span.End(err) }()

	fields, err := validateListingText(&in.Title, &in.Author, &in.Description)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, in.OwnerID); err != nil {
			return notFoundAs(ctx, "user.get", err, MsgOwnerNotFound)
		}
		if err := checkGenre(ctx, tx, in.GenreID, true); err != nil {
			return err
		}

		created := &models.Listing{
			Title:       fields.title,
			Author:      fields.author,
			Description: fields.description,
			GenreID:     in.GenreID,
			UserID:      in.OwnerID,
			IsAvailable: true,
			DateListed:  s.now.today(),
		}
		if err := tx.Listings().Create(ctx, created); err != nil {
			return unexpected(ctx, "listing.create", err)
		}
		if err := tx.Users().IncrementCounter(ctx, in.OwnerID, repository.CounterTotalListings); err != nil {
			return unexpected(ctx, "user.increment_listings", err)
		}

		listing, err = tx.Listings().GetByID(ctx, created.ID)
		if err != nil {
			return unexpected(ctx, "listing.reload", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}

	observability.ListingsCreated.Inc()
	notify(ctx, "listings", s.metrics.IncrementListings)
	return listing, nil
}

// GetListing loads one listing with its genre, owner and loans.
func (s *ListingService) GetListing(ctx context.Context, id uint) (*models.Listing, error) {
	listing, err := s.store.Listings().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(ctx, "listing.get", err, MsgListingNotFound)
	}
	return listing, nil
}

// SearchListings applies every supplied filter conjunctively, newest first by default.
func (s *ListingService) SearchListings(ctx context.Context, filter repository.ListingFilter) ([]models.Listing, error) {
	if filter.Sort == "" {
		filter.Sort = repository.SortDesc
	}
	listings, err := s.store.Listings().Search(ctx, filter)
	if err != nil {
		return nil, unexpected(ctx, "listing.search", err)
	}
	return listings, nil
}

// EditListing applies a partial update on behalf of the owner or an admin.
func (s *ListingService) EditListing(ctx context.Context, in EditListingInput) (*models.Listing, error) {
	var updated *models.Listing
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		listing, err := tx.Listings().GetByID(ctx, in.ListingID)
		if err != nil {
			return notFoundAs(ctx, "listing.get", err, MsgListingNotFound)
		}

		actor, err := tx.Users().GetByID(ctx, in.ActingUserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return models.NewForbiddenError(MsgEditForbidden)
			}
			return unexpected(ctx, "user.get", err)
		}
		if !actor.IsAdmin() && listing.UserID != actor.ID {
			return models.NewForbiddenError(MsgEditForbidden)
		}

		text, err := validateListingText(in.Title, in.Author, in.Description)
		if err != nil {
			return err
		}

		changes := map[string]interface{}{}
		if in.Title != nil {
			changes["title"] = text.title
		}
		if in.Author != nil {
			changes["author"] = text.author
		}
		if in.Description != nil {
			changes["description"] = text.description
		}

		if in.SetGenre {
			if err := checkGenre(ctx, tx, in.GenreID, false); err != nil {
				return err
			}
			if in.GenreID == nil {
				changes["genre_id"] = nil
			} else {
				changes["genre_id"] = *in.GenreID
			}
		}

		if in.IsAvailable != nil && *in.IsAvailable != listing.IsAvailable {
			if listing.OnLoan() {
				return models.NewBusinessRuleError(MsgAvailabilityOnLoan)
			}
			if listing.MarkedForDeletion {
				return models.NewBusinessRuleError(MsgAvailabilityMarked)
			}
			changes["is_available"] = *in.IsAvailable
		}

		if in.MarkedForDeletion != nil && *in.MarkedForDeletion != listing.MarkedForDeletion {
			changes["marked_for_deletion"] = *in.MarkedForDeletion
			if *in.MarkedForDeletion {
				changes["is_available"] = false
			}
		}

		if len(changes) > 0 {
			if err := tx.Listings().UpdateFields(ctx, listing.ID, changes); err != nil {
				return unexpected(ctx, "listing.update", err)
			}
		}

		updated, err = tx.Listings().GetByID(ctx, listing.ID)
		if err != nil {
			return unexpected(ctx, "listing.reload", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}
	return updated, nil
}

// ToggleMarkedForDeletion sets the owner's deletion flag. Marking withdraws the
// listing from circulation. Ownership is checked by the caller.
func (s *ListingService) ToggleMarkedForDeletion(ctx context.Context, listingID uint, marked bool) (string, error) {
	changes := map[string]interface{}{"marked_for_deletion": marked}
	msg := MsgUnmarkedForDeletion
	if marked {
		changes["is_available"] = false
		msg = MsgMarkedForDeletion
	}
	if err := s.store.Listings().UpdateFields(ctx, listingID, changes); err != nil {
		return "", notFoundAs(ctx, "listing.mark", err, MsgListingNotFound)
	}
	return msg, nil
}

// Reserve lends the listing to the user: the loan starts tomorrow and is due
// LoanPeriodDays later. The availability flip is conditional, so of two
// concurrent reservations only one succeeds.
func (s *ListingService) Reserve(ctx context.Context, userID, listingID uint) (loan *models.Loan, err error) {
	ctx, span := observability.StartSpan(ctx, "listing", "reserve",
		attribute.Int64("listing.id", int64(listingID)),
		attribute.Int64("user.id", int64(userID)),
	)
	defer func() { span.End(err) }()

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		listing, err := tx.Listings().GetByID(ctx, listingID)
		if err != nil {
			return notFoundAs(ctx, "listing.get", err, MsgListingNotFound)
		}
		if listing.UserID == userID {
			return models.NewBusinessRuleError(MsgOwnReservation)
		}
		if !listing.IsAvailable {
			return models.NewBusinessRuleError(MsgNotAvailable)
		}
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return notFoundAs(ctx, "user.get", err, MsgOwnerNotFound)
		}

		won, err := tx.Listings().ClaimAvailable(ctx, listingID)
		if err != nil {
			return unexpected(ctx, "listing.claim", err)
		}
		if !won {
			observability.ReservationConflicts.Inc()
			return models.NewBusinessRuleError(MsgNotAvailable)
		}

		start := s.now.today().AddDate(0, 0, 1)
		created := &models.Loan{
			ListingID:  listingID,
			UserID:     userID,
			StartDate:  start,
			ReturnDate: start.AddDate(0, 0, models.LoanPeriodDays),
		}
		if err := tx.Loans().Create(ctx, created); err != nil {
			return unexpected(ctx, "loan.create", err)
		}
		if err := tx.Users().IncrementCounter(ctx, userID, repository.CounterTotalLoans); err != nil {
			return unexpected(ctx, "user.increment_loans", err)
		}

		loan, err = tx.Loans().GetByID(ctx, created.ID)
		if err != nil {
			return unexpected(ctx, "loan.reload", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}

	observability.LoansCreated.Inc()
	notify(ctx, "loans", s.metrics.IncrementLoans)
	return loan, nil
}

// GetLoan loads one loan with its listing and borrower.
func (s *ListingService) GetLoan(ctx context.Context, id uint) (*LoanRecord, error) {
	loan, err := s.store.Loans().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(ctx, "loan.get", err, MsgLoanNotFound)
	}
	return &LoanRecord{Loan: *loan, Status: loan.Status(s.now.today())}, nil
}

// ReturnLoan closes the loan on the given date and puts the listing back on
// the shelf. A zero date means today. Returning twice is rejected.
func (s *ListingService) ReturnLoan(ctx context.Context, loanID uint, actualReturnDate time.Time) (loan *models.Loan, err error) {
	ctx, span := observability.StartSpan(ctx, "listing", "return", attribute.Int64("loan.id", int64(loanID)))
	defer func() { span.End(err) }()

	returned := s.now.today()
	if !actualReturnDate.IsZero() {
		returned = models.Day(actualReturnDate)
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Loans().GetByID(ctx, loanID)
		if err != nil {
			return notFoundAs(ctx, "loan.get", err, MsgLoanNotFound)
		}
		if current.IsReturned {
			return models.NewBusinessRuleError(MsgLoanAlreadyReturned)
		}

		if err := tx.Loans().UpdateFields(ctx, loanID, map[string]interface{}{
			"is_returned":        true,
			"actual_return_date": returned,
		}); err != nil {
			return unexpected(ctx, "loan.update", err)
		}
		if err := tx.Listings().UpdateFields(ctx, current.ListingID, map[string]interface{}{
			"is_available": true,
		}); err != nil {
			return unexpected(ctx, "listing.release", err)
		}

		loan, err = tx.Loans().GetByID(ctx, loanID)
		if err != nil {
			return unexpected(ctx, "loan.reload", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}

	observability.LoansReturned.Inc()
	return loan, nil
}

// SearchLoans filters loans; status is evaluated against today. The default
// order is by return date, latest first.
func (s *ListingService) SearchLoans(ctx context.Context, filter repository.LoanFilter) ([]LoanRecord, error) {
	today := s.now.today()
	filter.Today = today
	if filter.Sort == "" {
		filter.Sort = repository.SortDesc
	}

	loans, err := s.store.Loans().Search(ctx, filter)
	if err != nil {
		return nil, unexpected(ctx, "loan.search", err)
	}

	records := make([]LoanRecord, 0, len(loans))
	for _, l := range loans {
		records = append(records, LoanRecord{Loan: l, Status: l.Status(today)})
	}
	return records, nil
}
