package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() clock {
	return func() time.Time { return testToday.Add(15 * time.Hour) }
}

func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	return repository.NewStore(testutil.NewDB(t))
}

// plainHasher keeps tests fast; bcrypt is covered in passwords_test.go.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "plain:" + plain, nil }
func (plainHasher) Compare(hash, plain string) bool   { return hash == "plain:"+plain }

type recordingMetrics struct {
	mu       sync.Mutex
	listings int
	loans    int
	err      error
}

func (m *recordingMetrics) IncrementListings(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings++
	return m.err
}

func (m *recordingMetrics) IncrementLoans(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans++
	return m.err
}

// brokenStore fails every transaction, standing in for a lost database.
type brokenStore struct {
	repository.Store
}

var errDatabaseDown = errors.New("database down")

func (brokenStore) Transaction(context.Context, func(tx repository.Store) error) error {
	return errDatabaseDown
}

var errCounterWrite = errors.New("counter write failed")

// counterFailingStore hands out transactional stores whose counter updates
// fail after the earlier writes in the same transaction have succeeded.
type counterFailingStore struct {
	repository.Store
}

func (s counterFailingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(counterFailingTx{tx})
	})
}

type counterFailingTx struct {
	repository.Store
}

func (tx counterFailingTx) Users() repository.UserRepository {
	return counterFailingUsers{tx.Store.Users()}
}

type counterFailingUsers struct {
	repository.UserRepository
}

func (counterFailingUsers) IncrementCounter(context.Context, uint, string) error {
	return errCounterWrite
}

func seedUser(t *testing.T, s repository.Store, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "plain:secret", Role: role, JoinDate: testToday}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedGenre(t *testing.T, s repository.Store, name string) *models.Genre {
	t.Helper()
	g := &models.Genre{Name: name, Image: strings.ToLower(name) + ".png"}
	require.NoError(t, s.Genres().Create(context.Background(), g))
	return g
}

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func assertSameDay(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, models.Day(got).Equal(want), "want %s, got %s", want.Format(time.DateOnly), got.Format(time.DateOnly))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool     { return &b }
func uintPtr(u uint) *uint     { return &u }
