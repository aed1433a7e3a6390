// Command main provides account and catalogue maintenance for operators.
package main

import (
	"context"
	"fmt"
	"os"

	"bookshare/internal/bootstrap"
	"bookshare/internal/config"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/spf13/cobra"
)

// app is filled in by the root command before any subcommand runs.
type app struct {
	cfg   *config.Config
	rt    *bootstrap.Runtime
	admin *service.AdminService
	users *service.UserService
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintain users, genres and records of the book sharing service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.rt != nil {
				a.rt.Close(cmd.Context())
			}
		},
	}
	root.AddCommand(
		a.usersCmd(),
		a.roleCmd(),
		a.createAdminCmd(),
		a.deleteCmd(),
		a.genresCmd(),
		a.migrateCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) connect(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	store := repository.NewStore(rt.DB)
	a.cfg = cfg
	a.rt = rt
	a.admin = service.NewAdminService(store, rt.Redis)
	a.users = service.NewUserService(store, service.BcryptHasher{}, cfg.AdminCode)
	return nil
}
