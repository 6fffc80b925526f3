// Package user implements account management commands.
package user

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/security"
)

// Command creates the user command with account management subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(createCommand(settings), setRoleCommand(settings))
	return cmd
}

func createCommand(settings *conf.Settings) *cobra.Command {
	var email, password, name string
	var curator bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(settings, email, password, name, curator)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address for the new account")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new account")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&curator, "curator", false, "Grant the curator role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func setRoleCommand(settings *conf.Settings) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change an account's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetRole(settings, email, role)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account")
	cmd.Flags().StringVar(&role, "role", "", "New role: user or curator")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runCreate(settings *conf.Settings, email, password, name string, curator bool) error {
	ds, err := openStore(settings)
	if err != nil {
		return err
	}
	defer ds.Close()

	hash, err := security.HashPassword(password, settings.Security.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := datastore.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         datastore.RoleUser,
	}
	if curator {
		user.Role = datastore.RoleCurator
	}
	if err := ds.CreateUser(&user); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	fmt.Printf("Created account #%d (%s, role %s)\n", user.ID, user.Email, user.Role)
	return nil
}

func runSetRole(settings *conf.Settings, email, role string) error {
	if role != datastore.RoleUser && role != datastore.RoleCurator {
		return fmt.Errorf("unknown role %q", role)
	}

	ds, err := openStore(settings)
	if err != nil {
		return err
	}
	defer ds.Close()

	user, err := ds.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("no account with email %s", email)
	}

	user.Role = role
	if err := ds.UpdateUser(&user); err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	fmt.Printf("Account %s is now role %s\n", user.Email, user.Role)
	return nil
}

func openStore(settings *conf.Settings) (datastore.Interface, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}
	return ds, nil
}
