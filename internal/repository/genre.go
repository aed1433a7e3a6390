package repository

import (
	"context"

	"bookshare/internal/models"

	"gorm.io/gorm"
)

// GenreRepository defines persistence operations for genres.
type GenreRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Genre, error)
	// FindByName matches case-insensitively and returns nil, nil on no match.
	FindByName(ctx context.Context, name string) (*models.Genre, error)
	List(ctx context.Context, includeInactive bool) ([]models.Genre, error)
	Create(ctx context.Context, genre *models.Genre) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	// Delete detaches the genre from its listings before removing it.
	Delete(ctx context.Context, id uint) error
}

type genreRepository struct {
	db *gorm.DB
}

// NewGenreRepository returns a new GenreRepository implementation.
func NewGenreRepository(db *gorm.DB) GenreRepository {
	return &genreRepository{db: db}
}

func (r *genreRepository) GetByID(ctx context.Context, id uint) (*models.Genre, error) {
	var genre models.Genre
	if err := r.db.WithContext(ctx).First(&genre, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &genre, nil
}

func (r *genreRepository) FindByName(ctx context.Context, name string) (*models.Genre, error) {
	var genre models.Genre
	err := r.db.WithContext(ctx).
		Where("name_key = ?", models.GenreNameKey(name)).
		First(&genre).Error
	if err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &genre, nil
}

func (r *genreRepository) List(ctx context.Context, includeInactive bool) ([]models.Genre, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("inactive = ?", false)
	}
	var genres []models.Genre
	if err := q.Find(&genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

func (r *genreRepository) Create(ctx context.Context, genre *models.Genre) error {
	genre.NameKey = models.GenreNameKey(genre.Name)
	return translateError(r.db.WithContext(ctx).Create(genre).Error)
}

func (r *genreRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if name, ok := fields["name"].(string); ok {
		withKey := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			withKey[k] = v
		}
		withKey["name_key"] = models.GenreNameKey(name)
		fields = withKey
	}
	return updateColumns(ctx, r.db, &models.Genre{}, id, fields)
}

func (r *genreRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Listing{}).Where("genre_id = ?", id).
			Update("genre_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Genre{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
