package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/spkrepo/pkg/auth"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

func newUserCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(
		newUserCreateCommand(opts),
		newUserGrantCommand(opts),
		newUserAPIKeyCommand(opts),
		newUserPasswdCommand(opts),
	)
	return cmd
}

// passwordFlags reads a password from --password or, with --password-stdin,
// from the first line of stdin
type passwordFlags struct {
	password string
	stdin    bool
}

func (p *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.password, "password", "", "Password (visible in the process list, prefer --password-stdin)")
	cmd.Flags().BoolVar(&p.stdin, "password-stdin", false, "Read the password from stdin")
}

func (p *passwordFlags) hash(cmd *cobra.Command) (string, error) {
	password := p.password
	if p.stdin {
		var err error
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return "", err
		}
	}
	if password == "" {
		return "", fmt.Errorf("--password or --password-stdin is required")
	}
	return auth.HashPassword(password)
}

func newUserCreateCommand(opts *options) *cobra.Command {
	var (
		username string
		email    string
		roles    []string
		inactive bool
		pw       passwordFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := pw.hash(cmd)
			if err != nil {
				return err
			}

			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			u := storage.NewUser{
				Username:     username,
				Email:        email,
				PasswordHash: hash,
				Active:       !inactive,
			}
			if u.Active {
				now := time.Now().UTC()
				u.ConfirmedAt = &now
			}

			var id int64
			err = store.Session().WithTx(cmd.Context(), func(tx *storage.Session) error {
				id, err = tx.CreateUser(cmd.Context(), u)
				if err != nil {
					return err
				}
				for _, role := range roles {
					if err := tx.GrantRole(cmd.Context(), id, role); err != nil {
						return fmt.Errorf("role %s: %w", role, err)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", username, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant (repeatable)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the user deactivated")
	pw.register(cmd)
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newUserGrantCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "grant USERNAME ROLE",
		Short: "Grant a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			sess := store.Session()
			user, err := sess.FindUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			if err := sess.GrantRole(cmd.Context(), user.ID, args[1]); err != nil {
				return fmt.Errorf("role %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s to %s\n", args[1], user.Username)
			return nil
		},
	}
}

func newUserAPIKeyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apikey USERNAME",
		Short: "Generate a new API key for a user and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			sess := store.Session()
			user, err := sess.FindUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}

			svc := auth.NewService(auth.ServiceConfig{}, nil, commandLogger(cmd))
			key, err := svc.GenerateAPIKey(cmd.Context(), sess, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newUserPasswdCommand(opts *options) *cobra.Command {
	var pw passwordFlags

	cmd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Set a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := pw.hash(cmd)
			if err != nil {
				return err
			}

			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			sess := store.Session()
			user, err := sess.FindUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %s: %w", args[0], err)
			}
			if err := sess.SetPassword(cmd.Context(), user.ID, hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", user.Username)
			return nil
		},
	}
	pw.register(cmd)

	return cmd
}
