package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sign-in accounts",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserSetPasswordCmd())

	return cmd
}

// userOptions holds the account flags of the user subcommands.
type userOptions struct {
	Email         string
	Name          string
	Role          string
	Password      string
	PasswordStdin bool
}

func newUserCreateCmd() *cobra.Command {
	var (
		db   DatabaseConfig
		opts userOptions
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Long: `Create a user that can sign in with email and password.
The password is stored as a bcrypt hash.

Example:
  echo "$ADMIN_PASSWORD" | recircuit user create --email admin@example.com --name Admin --role admin --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDatabaseEnvVars(cmd, &db)

			password, err := readPassword(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}

			s, err := openDatabase(cmd.Context(), db)
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := createUser(cmd.Context(), s, opts, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	addDatabaseFlags(cmd, &db)
	cmd.Flags().StringVar(&opts.Email, "email", "", "Email address used to sign in (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.Role, "role", store.RoleUser, "Role: user or admin")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Password. Prefer --password-stdin, flags end up in shell history.")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserSetPasswordCmd() *cobra.Command {
	var (
		db   DatabaseConfig
		opts userOptions
	)

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace the password of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDatabaseEnvVars(cmd, &db)

			password, err := readPassword(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}

			s, err := openDatabase(cmd.Context(), db)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := setUserPassword(cmd.Context(), s, opts.Email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", strings.ToLower(strings.TrimSpace(opts.Email)))
			return nil
		},
	}

	addDatabaseFlags(cmd, &db)
	cmd.Flags().StringVar(&opts.Email, "email", "", "Email address of the user (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "New password. Prefer --password-stdin.")
	cmd.Flags().BoolVar(&opts.PasswordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// readPassword returns the password from the flag or the first line of in.
func readPassword(in io.Reader, opts userOptions) (string, error) {
	if opts.PasswordStdin && opts.Password != "" {
		return "", fmt.Errorf("--password and --password-stdin are mutually exclusive")
	}
	if !opts.PasswordStdin {
		if opts.Password == "" {
			return "", fmt.Errorf("a password is required (--password or --password-stdin)")
		}
		return opts.Password, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password on stdin")
	}
	return password, nil
}

// createUser validates the account and stores it with a hashed password.
func createUser(ctx context.Context, s *store.Store, opts userOptions, password string) (*store.User, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", opts.Email)
	}
	if !store.ValidRole(opts.Role) {
		return nil, fmt.Errorf("invalid role %q, must be one of: user, admin", opts.Role)
	}

	if _, err := s.UserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user %s already exists", strings.ToLower(email))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.CreateUser(ctx, store.User{
		Email:        email,
		Name:         strings.TrimSpace(opts.Name),
		Role:         opts.Role,
		PasswordHash: hash,
	})
}

func setUserPassword(ctx context.Context, s *store.Store, email, password string) error {
	user, err := s.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("user %s not found", strings.ToLower(strings.TrimSpace(email)))
	}
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.SetPassword(ctx, user.ID, hash)
}
