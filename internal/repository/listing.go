package repository

import (
	"context"
	"strings"

	"bookshare/internal/models"

	"gorm.io/gorm"
)

// ListingFilter narrows listing searches. Zero values mean "any".
type ListingFilter struct {
	OwnerID           *uint
	ExcludeOwnerID    *uint
	GenreID           *uint
	GenreName         string
	Available         *bool
	MarkedForDeletion *bool
	// Text matches title or author, case-insensitively.
	Text string
	Sort SortOrder
	Page
}

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	// GetByID loads the listing with its genre, owner and loans.
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	// ClaimAvailable flips is_available from true to false and reports
	// whether this call won the flip.
	ClaimAvailable(ctx context.Context, id uint) (bool, error)
	Search(ctx context.Context, filter ListingFilter) ([]models.Listing, error)
	Count(ctx context.Context, filter ListingFilter) (int64, error)
	// Delete removes the listing and its loans.
	Delete(ctx context.Context, id uint) error
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository returns a new ListingRepository implementation.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return translateError(r.db.WithContext(ctx).Omit("Genre", "User", "Loans").Create(listing).Error)
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Genre").
		Preload("User").
		Preload("Loans", func(db *gorm.DB) *gorm.DB {
			return db.Order("return_date DESC")
		}).
		First(&listing, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &listing, nil
}

func (r *listingRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return updateColumns(ctx, r.db, &models.Listing{}, id, fields)
}

func (r *listingRepository) ClaimAvailable(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND is_available = ?", id, true).
		Updates(map[string]interface{}{"is_available": false})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *listingRepository) filtered(ctx context.Context, filter ListingFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Listing{})
	if filter.OwnerID != nil {
		q = q.Where("listings.user_id = ?", *filter.OwnerID)
	}
	if filter.ExcludeOwnerID != nil {
		q = q.Where("listings.user_id <> ?", *filter.ExcludeOwnerID)
	}
	if filter.GenreID != nil {
		q = q.Where("listings.genre_id = ?", *filter.GenreID)
	}
	if name := strings.TrimSpace(filter.GenreName); name != "" {
		q = q.Where("listings.genre_id IN (SELECT id FROM genres WHERE LOWER(name) = ?)", strings.ToLower(name))
	}
	if filter.Available != nil {
		q = q.Where("listings.is_available = ?", *filter.Available)
	}
	if filter.MarkedForDeletion != nil {
		q = q.Where("listings.marked_for_deletion = ?", *filter.MarkedForDeletion)
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		p := containsPattern(text)
		q = q.Where(`(LOWER(listings.title) LIKE ? ESCAPE '\' OR LOWER(listings.author) LIKE ? ESCAPE '\')`, p, p)
	}
	return q
}

func (r *listingRepository) Search(ctx context.Context, filter ListingFilter) ([]models.Listing, error) {
	q := r.filtered(ctx, filter).
		Preload("Genre").
		Preload("User").
		Order("listings.date_listed " + filter.Sort.sql()).
		Order("listings.id " + filter.Sort.sql())

	var listings []models.Listing
	if err := filter.Page.apply(q).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) Count(ctx context.Context, filter ListingFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, filter).Count(&n).Error
	return n, err
}

func (r *listingRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&models.Loan{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Listing{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
