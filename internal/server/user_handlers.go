package server

import (
	"bookshare/internal/models"
	"bookshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.users.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", user)
}

type updateProfileRequest struct {
	Username          *string  `json:"username"`
	OldPassword       string   `json:"old_password"`
	NewPassword       string   `json:"new_password"`
	ConfirmPassword   string   `json:"confirm_password"`
	MarkedForDeletion formBool `json:"marked_for_deletion"`
}

// UpdateMyProfile handles PUT /api/me. A truthy marked_for_deletion flips the
// stored deletion request.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.users.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:          currentUserID(c),
		Username:        req.Username,
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		ToggleDeletion:  bool(req.MarkedForDeletion),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, res.Message, res.User)
}

// GetDashboard handles GET /api/dashboard
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	userID := currentUserID(c)
	stats, err := s.dashboard.ReadMetrics(c.UserContext(), &userID)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", stats)
}
