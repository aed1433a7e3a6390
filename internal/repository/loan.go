package repository

import (
	"context"
	"strings"
	"time"

	"bookshare/internal/models"

	"gorm.io/gorm"
)

// LoanFilter narrows loan searches. Zero values mean "any".
type LoanFilter struct {
	BorrowerID     *uint
	ListingOwnerID *uint
	ListingID      *uint
	Status         models.LoanStatus
	// Today anchors the overdue/active split; required when Status is set.
	Today time.Time
	// Text matches the listing title, listing author or borrower username,
	// case-insensitively.
	Text string
	// Sort orders by return date; the default is newest due date first.
	Sort SortOrder
	Page
}

// LoanRepository defines persistence operations for loans.
type LoanRepository interface {
	Create(ctx context.Context, loan *models.Loan) error
	// GetByID loads the loan with its listing and borrower.
	GetByID(ctx context.Context, id uint) (*models.Loan, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Search(ctx context.Context, filter LoanFilter) ([]models.Loan, error)
	Count(ctx context.Context, filter LoanFilter) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository returns a new LoanRepository implementation.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return translateError(r.db.WithContext(ctx).Omit("Listing", "User").Create(loan).Error)
}

func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("User").
		First(&loan, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &loan, nil
}

func (r *loanRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return updateColumns(ctx, r.db, &models.Loan{}, id, fields)
}

func (r *loanRepository) filtered(ctx context.Context, filter LoanFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Loan{})
	if filter.BorrowerID != nil {
		q = q.Where("loans.user_id = ?", *filter.BorrowerID)
	}
	if filter.ListingID != nil {
		q = q.Where("loans.listing_id = ?", *filter.ListingID)
	}
	if filter.ListingOwnerID != nil {
		q = q.Where("loans.listing_id IN (SELECT id FROM listings WHERE user_id = ?)", *filter.ListingOwnerID)
	}

	today := models.Day(filter.Today)
	switch filter.Status {
	case models.LoanStatusPast:
		q = q.Where("loans.actual_return_date IS NOT NULL")
	case models.LoanStatusOverdue:
		q = q.Where("loans.actual_return_date IS NULL AND loans.is_returned = ? AND loans.return_date < ?", false, today)
	case models.LoanStatusActive:
		q = q.Where("loans.actual_return_date IS NULL AND (loans.is_returned = ? OR loans.return_date >= ?)", true, today)
	}

	if text := strings.TrimSpace(filter.Text); text != "" {
		p := containsPattern(text)
		q = q.Where(`(loans.listing_id IN (SELECT id FROM listings WHERE LOWER(title) LIKE ? ESCAPE '\' OR LOWER(author) LIKE ? ESCAPE '\')`+
			` OR loans.user_id IN (SELECT id FROM users WHERE LOWER(username) LIKE ? ESCAPE '\'))`, p, p, p)
	}
	return q
}

func (r *loanRepository) Search(ctx context.Context, filter LoanFilter) ([]models.Loan, error) {
	q := r.filtered(ctx, filter).
		Preload("Listing").
		Preload("Listing.Genre").
		Preload("User").
		Order("loans.return_date " + filter.Sort.sql()).
		Order("loans.id " + filter.Sort.sql())

	var loans []models.Loan
	if err := filter.Page.apply(q).Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *loanRepository) Count(ctx context.Context, filter LoanFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, filter).Count(&n).Error
	return n, err
}

func (r *loanRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Loan{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
