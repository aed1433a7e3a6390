package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageLimit   = 50
	maxPaginationLimit = 100
)

// envelope is the success body: a human-readable message plus the payload.
type envelope struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(envelope{Message: message, Data: data})
}

// respondError writes a service error with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForCode(models.ErrorCode(err)), err)
}

func badRequest(c *fiber.Ctx, msg string) error {
	_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
	return errResponseWritten
}

// parsePagination extracts limit and offset query parameters.
func parsePagination(c *fiber.Ctx) repository.Page {
	limit := c.QueryInt("limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return repository.Page{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, badRequest(c, "Invalid "+humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "genreId" -> "genre ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// currentUserID returns the authenticated user set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// queryBool parses an optional boolean query parameter with the form rules.
func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	v, err := validation.ParseOptionalFormBool(raw, raw != "")
	if err != nil {
		return nil, badRequest(c, err.Error())
	}
	return v, nil
}

// queryUint parses an optional positive integer query parameter.
func queryUint(c *fiber.Ctx, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return nil, badRequest(c, "Invalid "+humanizeParam(name))
	}
	id := uint(n)
	return &id, nil
}

// querySort reads "sort" (asc|desc), defaulting to newest first.
func querySort(c *fiber.Ctx) repository.SortOrder {
	return repository.ParseSortOrder(c.Query("sort"), repository.SortDesc)
}

// parseDate accepts YYYY-MM-DD; empty means the zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}
