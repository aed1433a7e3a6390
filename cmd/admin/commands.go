package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"bookshare/internal/database"
	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) usersCmd() *cobra.Command {
	var role, search string
	var marked bool
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repository.UserFilter{Search: search, Role: models.Role(role)}
			if cmd.Flags().Changed("marked") {
				filter.MarkedForDeletion = &marked
			}
			users, err := a.admin.ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tLISTINGS\tLOANS\tJOINED\tDELETION")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%t\n",
					u.ID, u.Username, u.Role, u.TotalListings, u.TotalLoans,
					u.JoinDate.Format("2006-01-02"), u.MarkedForDeletion)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only users with this role (admin or regular)")
	cmd.Flags().StringVar(&search, "search", "", "username substring")
	cmd.Flags().BoolVar(&marked, "marked", false, "filter on the deletion request flag")
	return cmd
}

func (a *app) roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <user-id> <admin|regular>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := a.admin.ChangeRole(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (ID: %d) is now %s\n", user.Username, user.ID, user.Role)
			return nil
		},
	}
}

func (a *app) createAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin <username>",
		Short: "Register an account and promote it to admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			user, err := a.users.Register(ctx, service.RegisterInput{
				Username:        args[0],
				Password:        password,
				ConfirmPassword: confirm,
			})
			if err != nil {
				return err
			}
			if _, err := a.admin.ChangeRole(ctx, user.ID, string(models.RoleAdmin)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (ID: %d)\n", user.Username, user.ID)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user|listing|genre|loan> <id>",
		Short: "Delete a record with its dependent rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := service.ParseEntityKind(args[0])
			if !ok {
				return fmt.Errorf("%s", service.MsgInvalidRecordType)
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := a.admin.DeleteRecord(cmd.Context(), kind, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", kind, id)
			return nil
		},
	}
}

func (a *app) genresCmd() *cobra.Command {
	var all bool
	list := &cobra.Command{
		Use:   "genres",
		Short: "List genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			genres, err := a.admin.ListGenres(cmd.Context(), all)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tIMAGE\tINACTIVE")
			for _, g := range genres {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", g.ID, g.Name, g.Image, g.Inactive)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include inactive genres")

	var image string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a genre",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			genre, err := a.admin.CreateGenre(cmd.Context(), args[0], image)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created genre %s (ID: %d)\n", genre.Name, genre.ID)
			return nil
		},
	}
	add.Flags().StringVar(&image, "image", "", "image path shown with the genre")
	list.AddCommand(add)
	return list
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.Migrate(a.rt.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

// readPassword reads a password without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
