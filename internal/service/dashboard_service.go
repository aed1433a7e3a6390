package service

import (
	"context"
	"time"

	"bookshare/internal/cache"
	"bookshare/internal/models"
	"bookshare/internal/repository"
)

// TotalsReader exposes the advisory site-wide counters.
type TotalsReader interface {
	Totals(ctx context.Context) (cache.Totals, error)
}

// UserStats are the figures shown to a signed-in member.
type UserStats struct {
	TotalListings   int   `json:"total_listings"`
	TotalLoans      int   `json:"total_loans"`
	CurrentListings int64 `json:"current_listings"`
	ActiveLoans     int64 `json:"active_loans"`
}

// DashboardStats combines the advisory counters with live counts.
type DashboardStats struct {
	cache.Totals
	ListedBooks       int64 `json:"listed_books"`
	AvailableListings int64 `json:"available_listings"`
	ActiveLoans       int64 `json:"active_loans"`
	OverdueLoans      int64 `json:"overdue_loans"`
	Admins            int64 `json:"admins"`
	RegularUsers      int64 `json:"regular_users"`

	User *UserStats `json:"user,omitempty"`
}

// DashboardService reads the figures shown on the landing page.
type DashboardService struct {
	store  repository.Store
	totals TotalsReader
	now    clock
}

func NewDashboardService(store repository.Store, totals TotalsReader) *DashboardService {
	return &DashboardService{store: store, totals: totals}
}

// ReadMetrics returns the dashboard figures, with the member's own figures
// when userID is set. An unreadable counter store yields zero totals rather
// than an error.
func (s *DashboardService) ReadMetrics(ctx context.Context, userID *uint) (*DashboardStats, error) {
	stats := &DashboardStats{}
	if s.totals != nil {
		totals, err := s.totals.Totals(ctx)
		if err != nil {
			notify(ctx, "totals", func(context.Context) error { return err })
		} else {
			stats.Totals = totals
		}
	}

	var err error
	if stats.ListedBooks, err = s.store.Listings().Count(ctx, repository.ListingFilter{}); err != nil {
		return nil, unexpected(ctx, "listing.count", err)
	}
	available := true
	if stats.AvailableListings, err = s.store.Listings().Count(ctx, repository.ListingFilter{Available: &available}); err != nil {
		return nil, unexpected(ctx, "listing.count", err)
	}

	today := s.now.today()
	if stats.ActiveLoans, err = s.store.Loans().Count(ctx, repository.LoanFilter{Status: models.LoanStatusActive, Today: today}); err != nil {
		return nil, unexpected(ctx, "loan.count", err)
	}
	if stats.OverdueLoans, err = s.store.Loans().Count(ctx, repository.LoanFilter{Status: models.LoanStatusOverdue, Today: today}); err != nil {
		return nil, unexpected(ctx, "loan.count", err)
	}

	if stats.Admins, err = s.store.Users().CountByRole(ctx, models.RoleAdmin); err != nil {
		return nil, unexpected(ctx, "user.count", err)
	}
	if stats.RegularUsers, err = s.store.Users().CountByRole(ctx, models.RoleRegular); err != nil {
		return nil, unexpected(ctx, "user.count", err)
	}

	if userID != nil {
		if stats.User, err = s.userStats(ctx, *userID, today); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *DashboardService) userStats(ctx context.Context, userID uint, today time.Time) (*UserStats, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(ctx, "user.get", err, MsgOwnerNotFound)
	}
	out := &UserStats{TotalListings: user.TotalListings, TotalLoans: user.TotalLoans}

	notMarked := false
	if out.CurrentListings, err = s.store.Listings().Count(ctx, repository.ListingFilter{OwnerID: &userID, MarkedForDeletion: &notMarked}); err != nil {
		return nil, unexpected(ctx, "listing.count", err)
	}
	if out.ActiveLoans, err = s.store.Loans().Count(ctx, repository.LoanFilter{BorrowerID: &userID, Status: models.LoanStatusActive, Today: today}); err != nil {
		return nil, unexpected(ctx, "loan.count", err)
	}
	return out, nil
}
