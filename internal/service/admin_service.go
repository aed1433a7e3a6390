package service

import (
	"context"
	"errors"
	"strings"

	"bookshare/internal/cache"
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/validation"

	"github.com/redis/go-redis/v9"
)

// Messages returned by admin operations.
const (
	MsgUsersRetrieved     = "Users retrieved successfully"
	MsgGenresReturned     = "Genres returned successfully"
	MsgInvalidRole        = "Invalid role type."
	MsgUserNotFound       = "User not found."
	MsgLastAdminDemote    = "Failed to update user role. You cannot remove admin rights from the last remaining admin. Please promote another user to admin first."
	MsgRoleUpdated        = "User role updated successfully."
	MsgInvalidRecordType  = "Invalid record type."
	MsgRecordNotFound     = "Record not found."
	MsgLastAdminDelete    = "Cannot delete the last remaining admin. Please appoint another admin first."
	MsgRecordDeleted      = "Record deleted successfully"
	MsgGenreExists        = "This genre already exists"
	MsgGenreCreated       = "Genre created successfully"
	MsgGenreUpdated       = "Genre updated successfully"
	MsgGenreImageRequired = "Please select an image for the genre."
	MsgInvalidGenreID     = "Invalid genre ID."
)

const genreImageMaxLength = 255

// EntityKind names a record type that admins can delete.
type EntityKind string

const (
	EntityUser    EntityKind = "user"
	EntityListing EntityKind = "listing"
	EntityGenre   EntityKind = "genre"
	EntityLoan    EntityKind = "loan"
)

type deleteHandler func(ctx context.Context, tx repository.Store, id uint) error

var deleteHandlers = map[EntityKind]deleteHandler{
	EntityUser:    deleteUser,
	EntityListing: deleteListing,
	EntityGenre:   deleteGenre,
	EntityLoan:    deleteLoan,
}

// ParseEntityKind accepts singular or plural, any case.
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	_, ok := deleteHandlers[k]
	return k, ok
}

// AdminService implements user moderation and genre curation.
type AdminService struct {
	store repository.Store
	rdb   *redis.Client
}

// NewAdminService wires the service; rdb may be nil to disable the genre cache.
func NewAdminService(store repository.Store, rdb *redis.Client) *AdminService {
	return &AdminService{store: store, rdb: rdb}
}

// ListUsers returns users matching the filter, newest joiners first by default.
func (s *AdminService) ListUsers(ctx context.Context, filter repository.UserFilter) ([]models.User, error) {
	if filter.Sort == "" {
		filter.Sort = repository.SortDesc
	}
	users, err := s.store.Users().List(ctx, filter)
	if err != nil {
		return nil, unexpected(ctx, "user.list", err)
	}
	return users, nil
}

// IsAdmin reports whether the user exists and holds the admin role.
func (s *AdminService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// ChangeRole sets the user's role, refusing to demote the last admin.
func (s *AdminService) ChangeRole(ctx context.Context, userID uint, role string) (*models.User, error) {
	newRole, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if !ok {
		return nil, models.NewValidationError(MsgInvalidRole)
	}

	var updated *models.User
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return notFoundAs(ctx, "user.get", err, MsgUserNotFound)
		}

		if user.IsAdmin() && newRole != models.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, tx, MsgLastAdminDemote); err != nil {
				return err
			}
		}

		if user.Role != newRole {
			if err := tx.Users().UpdateFields(ctx, userID, map[string]interface{}{"role": newRole}); err != nil {
				return unexpected(ctx, "user.update_role", err)
			}
			user.Role = newRole
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}
	return updated, nil
}

func ensureAnotherAdmin(ctx context.Context, tx repository.Store, msg string) error {
	admins, err := tx.Users().CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return unexpected(ctx, "user.count_admins", err)
	}
	if admins <= 1 {
		return models.NewBusinessRuleError(msg)
	}
	return nil
}

// DeleteRecord permanently removes one record of the given kind, cascading
// to the rows it owns.
func (s *AdminService) DeleteRecord(ctx context.Context, kind EntityKind, id uint) error {
	handler, ok := deleteHandlers[kind]
	if !ok {
		return models.NewValidationError(MsgInvalidRecordType)
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		return handler(ctx, tx, id)
	})
	if err != nil {
		return notFoundAs(ctx, "delete."+string(kind), err, MsgRecordNotFound)
	}

	if kind == EntityGenre {
		cache.InvalidateGenres(ctx, s.rdb)
	}
	return nil
}

func deleteUser(ctx context.Context, tx repository.Store, id uint) error {
	user, err := tx.Users().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		if err := ensureAnotherAdmin(ctx, tx, MsgLastAdminDelete); err != nil {
			return err
		}
	}
	return tx.Users().Delete(ctx, id)
}

func deleteListing(ctx context.Context, tx repository.Store, id uint) error {
	return tx.Listings().Delete(ctx, id)
}

func deleteGenre(ctx context.Context, tx repository.Store, id uint) error {
	return tx.Genres().Delete(ctx, id)
}

// deleteLoan puts the book back on the shelf when the loan was still open,
// unless its owner has withdrawn it.
func deleteLoan(ctx context.Context, tx repository.Store, id uint) error {
	loan, err := tx.Loans().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !loan.IsReturned && loan.Listing != nil && !loan.Listing.MarkedForDeletion {
		if err := tx.Listings().UpdateFields(ctx, loan.ListingID, map[string]interface{}{"is_available": true}); err != nil {
			return err
		}
	}
	return tx.Loans().Delete(ctx, id)
}

// ListGenres returns genres ordered by name; inactive ones only when asked.
func (s *AdminService) ListGenres(ctx context.Context, includeInactive bool) ([]models.Genre, error) {
	var genres []models.Genre
	err := cache.Aside(ctx, s.rdb, cache.GenresFamily, cache.GenresKey(includeInactive), &genres, cache.GenresTTL, func() error {
		var err error
		genres, err = s.store.Genres().List(ctx, includeInactive)
		return err
	})
	if err != nil {
		return nil, unexpected(ctx, "genre.list", err)
	}
	return genres, nil
}

func validateGenreName(name string) (string, error) {
	clean, err := validation.RequiredText(name, "Genre name", models.GenreNameMaxLength)
	if err != nil {
		return "", validationFailure(err)
	}
	return clean, nil
}

func validateGenreImage(image string) (string, error) {
	clean, err := validation.OptionalText(image, "Image", genreImageMaxLength)
	if err != nil {
		return "", validationFailure(err)
	}
	return clean, nil
}

// ensureGenreNameFree rejects names already used by a genre other than selfID.
func ensureGenreNameFree(ctx context.Context, tx repository.Store, name string, selfID uint) error {
	existing, err := tx.Genres().FindByName(ctx, name)
	if err != nil {
		return unexpected(ctx, "genre.find", err)
	}
	if existing != nil && existing.ID != selfID {
		return models.NewBusinessRuleError(MsgGenreExists)
	}
	return nil
}

// CreateGenre adds a genre whose name is unique ignoring case. The image is optional.
func (s *AdminService) CreateGenre(ctx context.Context, name, image string) (*models.Genre, error) {
	cleanName, err := validateGenreName(name)
	if err != nil {
		return nil, err
	}
	cleanImage, err := validateGenreImage(image)
	if err != nil {
		return nil, err
	}

	genre := &models.Genre{Name: cleanName, Image: cleanImage}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := ensureGenreNameFree(ctx, tx, cleanName, 0); err != nil {
			return err
		}
		if err := tx.Genres().Create(ctx, genre); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return models.NewBusinessRuleError(MsgGenreExists)
			}
			return unexpected(ctx, "genre.create", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}

	cache.InvalidateGenres(ctx, s.rdb)
	return genre, nil
}

// EditGenreInput replaces a genre's name and image. Inactive is optional.
type EditGenreInput struct {
	ID       uint
	Name     string
	Image    *string
	Inactive *bool
}

// EditGenre renames a genre and replaces its image; an image is required here.
func (s *AdminService) EditGenre(ctx context.Context, in EditGenreInput) (*models.Genre, error) {
	if in.ID == 0 {
		return nil, models.NewValidationError(MsgInvalidGenreID)
	}
	cleanName, err := validateGenreName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.Image == nil || strings.TrimSpace(*in.Image) == "" {
		return nil, models.NewValidationError(MsgGenreImageRequired)
	}
	cleanImage, err := validateGenreImage(*in.Image)
	if err != nil {
		return nil, err
	}

	var updated *models.Genre
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		genre, err := tx.Genres().GetByID(ctx, in.ID)
		if err != nil {
			return notFoundAs(ctx, "genre.get", err, MsgGenreNotFound)
		}
		if err := ensureGenreNameFree(ctx, tx, cleanName, genre.ID); err != nil {
			return err
		}

		changes := map[string]interface{}{"name": cleanName, "image": cleanImage}
		if in.Inactive != nil {
			changes["inactive"] = *in.Inactive
		}
		if err := tx.Genres().UpdateFields(ctx, genre.ID, changes); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return models.NewBusinessRuleError(MsgGenreExists)
			}
			return unexpected(ctx, "genre.update", err)
		}

		updated, err = tx.Genres().GetByID(ctx, genre.ID)
		if err != nil {
			return unexpected(ctx, "genre.reload", err)
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}

	cache.InvalidateGenres(ctx, s.rdb)
	return updated, nil
}
