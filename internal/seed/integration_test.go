//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"bookshare/internal/config"
	"bookshare/internal/database"
	"bookshare/internal/service"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return &config.Config{
		DBDriver:   config.DriverPostgres,
		DBHost:     u.Hostname(),
		DBPort:     port,
		DBUser:     u.User.Username(),
		DBPassword: password,
		DBName:     strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:  "disable",
		Env:        "test",
	}, nil
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	if err != nil {
		t.Fatalf("failed parse dsn: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}

	fx, err := DefaultFixtures()
	if err != nil {
		t.Fatalf("fixtures: %v", err)
	}
	opts := Options{NumUsers: 10, NumListings: 30, NumLoans: 10, ShouldClean: true, FastHashing: true}
	report, err := NewSeeder(db, service.NopMetrics{}, opts).Run(context.Background(), fx)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if report.Listings != opts.NumListings {
		t.Fatalf("expected %d listings, got %d", opts.NumListings, report.Listings)
	}
}
