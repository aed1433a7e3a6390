package server

import (
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/admin/users
// Query: q, role, marked_for_deletion, sort (by join date), limit, offset.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		Search: c.Query("q"),
		Sort:   querySort(c),
		Page:   parsePagination(c),
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(service.MsgInvalidRole))
		}
		filter.Role = role
	}
	var err error
	if filter.MarkedForDeletion, err = queryBool(c, "marked_for_deletion"); err != nil {
		return nil
	}

	users, err := s.admin.ListUsers(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgUsersRetrieved, users)
}

type changeRoleRequest struct {
	Role string `json:"role" form:"role"`
}

// ChangeRole handles PUT /api/admin/users/:id/role
func (s *Server) ChangeRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.admin.ChangeRole(c.UserContext(), id, req.Role)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgRoleUpdated, user)
}

// DeleteRecord handles DELETE /api/admin/records/:kind/:id
func (s *Server) DeleteRecord(c *fiber.Ctx) error {
	kind, ok := service.ParseEntityKind(c.Params("kind"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(service.MsgInvalidRecordType))
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.admin.DeleteRecord(c.UserContext(), kind, id); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgRecordDeleted, nil)
}

// ListGenres handles GET /api/genres: the genres open for new listings.
func (s *Server) ListGenres(c *fiber.Ctx) error {
	genres, err := s.admin.ListGenres(c.UserContext(), false)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgGenresReturned, genres)
}

// ListAllGenres handles GET /api/admin/genres, inactive genres included.
func (s *Server) ListAllGenres(c *fiber.Ctx) error {
	genres, err := s.admin.ListGenres(c.UserContext(), true)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgGenresReturned, genres)
}

type genreRequest struct {
	Name     string    `json:"name" form:"name"`
	Image    *string   `json:"image" form:"image"`
	Inactive *formBool `json:"inactive"`
}

// CreateGenre handles POST /api/admin/genres
func (s *Server) CreateGenre(c *fiber.Ctx) error {
	var req genreRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	image := ""
	if req.Image != nil {
		image = *req.Image
	}

	genre, err := s.admin.CreateGenre(c.UserContext(), req.Name, image)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, service.MsgGenreCreated, genre)
}

// EditGenre handles PUT /api/admin/genres/:id
func (s *Server) EditGenre(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(service.MsgInvalidGenreID))
	}
	var req genreRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	genre, err := s.admin.EditGenre(c.UserContext(), service.EditGenreInput{
		ID:       uint(id),
		Name:     req.Name,
		Image:    req.Image,
		Inactive: req.Inactive.ptr(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgGenreUpdated, genre)
}
