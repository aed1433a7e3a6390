package server

import (
	"context"

	"bookshare/internal/middleware"
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createListingRequest struct {
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Description string     `json:"description"`
	GenreID     optionalID `json:"genre_id"`
}

// CreateListing handles POST /api/listings
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	listing, err := s.listings.CreateListing(c.UserContext(), service.CreateListingInput{
		OwnerID:     currentUserID(c),
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		GenreID:     req.GenreID.Value,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, service.MsgListingCreated, listing)
}

// SearchListings handles GET /api/listings
// Query: owner_id, mine, others, genre, available, marked_for_deletion, q, sort, limit, offset.
func (s *Server) SearchListings(c *fiber.Ctx) error {
	filter := repository.ListingFilter{
		GenreName: c.Query("genre"),
		Text:      c.Query("q"),
		Sort:      querySort(c),
		Page:      parsePagination(c),
	}

	var err error
	if filter.OwnerID, err = queryUint(c, "owner_id"); err != nil {
		return nil
	}
	if filter.Available, err = queryBool(c, "available"); err != nil {
		return nil
	}
	if filter.MarkedForDeletion, err = queryBool(c, "marked_for_deletion"); err != nil {
		return nil
	}
	mine, err := queryBool(c, "mine")
	if err != nil {
		return nil
	}
	others, err := queryBool(c, "others")
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	if mine != nil && *mine {
		filter.OwnerID = &me
	}
	if others != nil && *others {
		filter.ExcludeOwnerID = &me
	}

	listings, err := s.listings.SearchListings(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", listings)
}

// GetListing handles GET /api/listings/:id
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	listing, err := s.listings.GetListing(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", listing)
}

type editListingRequest struct {
	Title             *string    `json:"title"`
	Author            *string    `json:"author"`
	Description       *string    `json:"description"`
	GenreID           optionalID `json:"genre_id"`
	IsAvailable       *formBool  `json:"is_available"`
	MarkedForDeletion *formBool  `json:"marked_for_deletion"`
}

// EditListing handles PATCH /api/listings/:id. Omitted fields stay as they
// are; "genre_id": null clears the genre.
func (s *Server) EditListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req editListingRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	listing, err := s.listings.EditListing(c.UserContext(), service.EditListingInput{
		ListingID:         id,
		ActingUserID:      currentUserID(c),
		Title:             req.Title,
		Author:            req.Author,
		Description:       req.Description,
		SetGenre:          req.GenreID.Set,
		GenreID:           req.GenreID.Value,
		IsAvailable:       req.IsAvailable.ptr(),
		MarkedForDeletion: req.MarkedForDeletion.ptr(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgListingUpdated, listing)
}

type toggleDeletionRequest struct {
	MarkedForDeletion formBool `json:"marked_for_deletion" form:"marked_for_deletion"`
}

// ToggleListingDeletion handles POST /api/listings/:id/deletion
func (s *Server) ToggleListingDeletion(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req toggleDeletionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ctx := c.UserContext()
	listing, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.requireOwnerOrAdmin(ctx, currentUserID(c), listing.UserID); err != nil {
		return respondError(c, err)
	}

	msg, err := s.listings.ToggleMarkedForDeletion(ctx, id, bool(req.MarkedForDeletion))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, msg, nil)
}

// ReserveListing handles POST /api/listings/:id/reserve
func (s *Server) ReserveListing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	loan, err := s.listings.Reserve(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, service.MsgReserved, loan)
}

// requireOwnerOrAdmin lets the record owner or any admin through.
func (s *Server) requireOwnerOrAdmin(ctx context.Context, userID, ownerID uint) error {
	if userID == ownerID {
		return nil
	}
	admin, err := s.admin.IsAdmin(ctx, userID)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "admin check failed", "error", err)
		return models.NewInternalError(err)
	}
	if !admin {
		return models.NewForbiddenError(service.MsgEditForbidden)
	}
	return nil
}
