// Package bootstrap wires the process-wide dependencies shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookshare/internal/cache"
	"bookshare/internal/config"
	"bookshare/internal/database"
	"bookshare/internal/middleware"
	"bookshare/internal/models"
	"bookshare/internal/observability"
	"bookshare/internal/repository"
	"bookshare/internal/seed"
	"bookshare/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultRootUsername = "root"

// Options control runtime initialization behavior.
type Options struct {
	SeedGenres bool
	Tracing    bool
}

// Runtime holds the connections a process needs.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis, starts tracing when asked
// to, and optionally seeds the built-in genres.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{shutdownTracing: func(context.Context) error { return nil }}

	if opts.Tracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			Environment:  cfg.Env,
			Enabled:      cfg.TracingEnabled,
			Exporter:     cfg.TracingExporter,
			OTLPEndpoint: cfg.OTLPEndpoint,
			SamplerRatio: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.DB = db

	// Init Redis (nil client if unset or unreachable)
	if cfg.RedisURL != "" {
		rt.Redis = cache.NewClient(cfg.RedisURL)
	}

	store := repository.NewStore(db)
	if err := ensureDevRootAdmin(ctx, cfg, store, service.BcryptHasher{}); err != nil {
		return nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedGenres {
		fx, err := seed.DefaultFixtures()
		if err != nil {
			return nil, err
		}
		seeder := seed.NewSeeder(db, cache.NewCounters(rt.Redis), seed.Options{})
		if _, err := seeder.Run(ctx, &seed.Fixtures{Genres: fx.Genres}); err != nil {
			return nil, fmt.Errorf("failed to seed built-in genres: %w", err)
		}
	}

	return rt, nil
}

// ShutdownTracing flushes pending spans.
func (rt *Runtime) ShutdownTracing(ctx context.Context) {
	if err := rt.shutdownTracing(ctx); err != nil {
		middleware.Logger.Error("tracing shutdown failed", slog.String("error", err.Error()))
	}
}

// Close releases everything opened by InitRuntime.
func (rt *Runtime) Close(ctx context.Context) {
	rt.ShutdownTracing(ctx)
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// ensureDevRootAdmin makes sure a known admin account exists in development,
// so a fresh database is never without an admin.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, store repository.Store, hasher service.PasswordHasher) error {
	if cfg == nil || store == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.ToLower(strings.TrimSpace(cfg.DevRootUsername))
	if username == "" {
		username = defaultRootUsername
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	err := store.Transaction(ctx, func(tx repository.Store) error {
		root, err := tx.Users().GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if root != nil {
			if root.IsAdmin() {
				return nil
			}
			return tx.Users().UpdateFields(ctx, root.ID, map[string]interface{}{"role": models.RoleAdmin})
		}

		hash, err := hasher.Hash(cfg.DevRootPassword)
		if err != nil {
			return fmt.Errorf("hash root password: %w", err)
		}
		return tx.Users().Create(ctx, &models.User{
			Username: username,
			Password: hash,
			Role:     models.RoleAdmin,
			JoinDate: models.Day(time.Now()),
		})
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("development root admin ensured", slog.String("username", username))
	return nil
}
