// Package service holds the listing and loan lifecycle rules, admin
// moderation, account management and the dashboard read model.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bookshare/internal/models"
	"bookshare/internal/repository"
)

// MetricsSink receives the site-wide counters shown on the dashboard.
// Failures are logged and never fail the operation that produced them.
type MetricsSink interface {
	IncrementListings(ctx context.Context) error
	IncrementLoans(ctx context.Context) error
}

// NopMetrics discards every increment.
type NopMetrics struct{}

func (NopMetrics) IncrementListings(context.Context) error { return nil }
func (NopMetrics) IncrementLoans(context.Context) error    { return nil }

// clock lets tests pin "today".
type clock func() time.Time

func (c clock) today() time.Time {
	if c == nil {
		return models.Day(time.Now())
	}
	return models.Day(c())
}

// unexpected logs an infrastructure failure and hides it behind a generic error.
// AppErrors pass through untouched.
func unexpected(ctx context.Context, op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	slog.ErrorContext(ctx, "unexpected persistence failure", slog.String("op", op), slog.String("error", err.Error()))
	return models.NewInternalError(err)
}

// notFoundAs maps repository.ErrNotFound to a NotFound AppError with message;
// any other error goes through unexpected.
func notFoundAs(ctx context.Context, op string, err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return models.NewNotFoundError(message)
	}
	return unexpected(ctx, op, err)
}

func validationFailure(err error) error {
	return models.NewValidationError(err.Error())
}

func notify(ctx context.Context, what string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		slog.WarnContext(ctx, "metrics sink update failed", slog.String("counter", what), slog.String("error", err.Error()))
	}
}
