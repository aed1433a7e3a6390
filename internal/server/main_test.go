package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookshare/internal/config"
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/testutil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

const testAdminCode = "open-sesame"

type harness struct {
	t     *testing.T
	app   *fiber.App
	store repository.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{JWTSecret: "test-secret", AdminCode: testAdminCode, Env: "test", Port: "0"}
	srv := NewServerWithDeps(cfg, db, nil)
	return &harness{t: t, app: srv.App(), store: repository.NewStore(db)}
}

type apiResponse struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Data    jsoniter.RawMessage `json:"data"`
}

func (h *harness) do(method, path, token string, body interface{}) apiResponse {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer func() { _ = resp.Body.Close() }()

	out := apiResponse{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

// decode unmarshals the data payload; an omitted payload leaves dest as is.
func (r apiResponse) decode(t *testing.T, dest interface{}) {
	t.Helper()
	if len(r.Data) == 0 {
		return
	}
	require.NoError(t, json.Unmarshal(r.Data, dest))
}

// signup registers and logs in, returning the bearer token and the user.
func (h *harness) signup(username string, admin bool) (string, models.User) {
	h.t.Helper()
	body := fiber.Map{"username": username, "password": "secret", "confirm_password": "secret"}
	if admin {
		body["role"] = "admin"
		body["admin_code"] = testAdminCode
	}
	res := h.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(h.t, http.StatusCreated, res.Status, res.Error)

	res = h.do(http.MethodPost, "/api/auth/login", "", fiber.Map{"username": username, "password": "secret"})
	require.Equal(h.t, http.StatusOK, res.Status, res.Error)
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	res.decode(h.t, &login)
	return login.Token, login.User
}

func (h *harness) createListing(token, title string) models.Listing {
	h.t.Helper()
	res := h.do(http.MethodPost, "/api/listings", token, fiber.Map{"title": title, "author": "Someone"})
	require.Equal(h.t, http.StatusCreated, res.Status, res.Error)
	var listing models.Listing
	res.decode(h.t, &listing)
	return listing
}

func (h *harness) getListing(id uint) *models.Listing {
	h.t.Helper()
	listing, err := h.store.Listings().GetByID(context.Background(), id)
	require.NoError(h.t, err)
	return listing
}

func urlf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
