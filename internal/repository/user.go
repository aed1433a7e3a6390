package repository

import (
	"context"
	"strings"

	"bookshare/internal/models"

	"gorm.io/gorm"
)

// Counter columns on users that track lifetime activity.
const (
	CounterTotalListings = "total_listings"
	CounterTotalLoans    = "total_loans"
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search            string
	Role              models.Role
	MarkedForDeletion *bool
	Sort              SortOrder
	Page
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetByUsername returns nil, nil when no user has that (lower-cased) name.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	IncrementCounter(ctx context.Context, id uint, column string) error
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	// Delete removes the user together with their listings and every loan
	// that references them or their listings.
	Delete(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&user).Error
	if err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return updateColumns(ctx, r.db, &models.User{}, id, fields)
}

func (r *userRepository) IncrementCounter(ctx context.Context, id uint, column string) error {
	switch column {
	case CounterTotalListings, CounterTotalLoans:
	default:
		return gorm.ErrInvalidField
	}
	return updateColumns(ctx, r.db, &models.User{}, id, map[string]interface{}{
		column: gorm.Expr(column+" + ?", 1),
	})
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where(`LOWER(username) LIKE ? ESCAPE '\'`, containsPattern(s))
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.MarkedForDeletion != nil {
		q = q.Where("marked_for_deletion = ?", *filter.MarkedForDeletion)
	}
	q = q.Order("join_date " + filter.Sort.sql()).Order("id " + filter.Sort.sql())

	var users []models.User
	if err := filter.Page.apply(q).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Books this user was borrowing go back on the shelf.
		if err := tx.Model(&models.Listing{}).
			Where("id IN (SELECT listing_id FROM loans WHERE user_id = ? AND is_returned = ?)", id, false).
			Where("user_id <> ? AND marked_for_deletion = ?", id, false).
			Update("is_available", true).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? OR listing_id IN (SELECT id FROM listings WHERE user_id = ?)", id, id).
			Delete(&models.Loan{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Listing{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
