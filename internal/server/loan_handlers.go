package server

import (
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/gofiber/fiber/v2"
)

// loanFilterFromQuery reads status, q, sort and pagination.
func loanFilterFromQuery(c *fiber.Ctx) (repository.LoanFilter, error) {
	filter := repository.LoanFilter{
		Text: c.Query("q"),
		Sort: querySort(c),
		Page: parsePagination(c),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseLoanStatus(raw)
		if !ok {
			return filter, badRequest(c, "Invalid loan status")
		}
		filter.Status = status
	}
	return filter, nil
}

func (s *Server) searchLoans(c *fiber.Ctx, filter repository.LoanFilter) error {
	loans, err := s.listings.SearchLoans(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", loans)
}

// GetMyLoans handles GET /api/me/loans: books the caller borrowed.
func (s *Server) GetMyLoans(c *fiber.Ctx) error {
	filter, err := loanFilterFromQuery(c)
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	filter.BorrowerID = &me
	return s.searchLoans(c, filter)
}

// GetLoansOnMyListings handles GET /api/me/lent: loans of the caller's books.
func (s *Server) GetLoansOnMyListings(c *fiber.Ctx) error {
	filter, err := loanFilterFromQuery(c)
	if err != nil {
		return nil
	}
	me := currentUserID(c)
	filter.ListingOwnerID = &me
	return s.searchLoans(c, filter)
}

// SearchAllLoans handles GET /api/admin/loans
func (s *Server) SearchAllLoans(c *fiber.Ctx) error {
	filter, err := loanFilterFromQuery(c)
	if err != nil {
		return nil
	}
	if filter.BorrowerID, err = queryUint(c, "user_id"); err != nil {
		return nil
	}
	return s.searchLoans(c, filter)
}

// loanParticipantCheck allows the borrower, the listing owner or an admin.
func (s *Server) loanParticipantCheck(c *fiber.Ctx, loan *service.LoanRecord) error {
	me := currentUserID(c)
	if loan.UserID == me {
		return nil
	}
	var ownerID uint
	if loan.Listing != nil {
		ownerID = loan.Listing.UserID
	}
	if err := s.requireOwnerOrAdmin(c.UserContext(), me, ownerID); err != nil {
		if models.ErrorCode(err) == models.CodeForbidden {
			return models.NewForbiddenError("You are not part of this loan")
		}
		return err
	}
	return nil
}

// GetLoan handles GET /api/loans/:id
func (s *Server) GetLoan(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	loan, err := s.listings.GetLoan(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.loanParticipantCheck(c, loan); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "", loan)
}

type returnLoanRequest struct {
	ActualReturnDate string `json:"actual_return_date" form:"actual_return_date"`
}

// ReturnLoan handles POST /api/loans/:id/return. actual_return_date is
// YYYY-MM-DD and defaults to today.
func (s *Server) ReturnLoan(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req returnLoanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}
	returnedOn, err := parseDate(req.ActualReturnDate)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid return date, expected YYYY-MM-DD"))
	}

	ctx := c.UserContext()
	current, err := s.listings.GetLoan(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.loanParticipantCheck(c, current); err != nil {
		return respondError(c, err)
	}

	loan, err := s.listings.ReturnLoan(ctx, id, returnedOn)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, service.MsgLoanReturned, loan)
}
