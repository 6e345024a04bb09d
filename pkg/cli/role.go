package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/spkrepo/pkg/auth"
)

// defaultRoles are the roles the API knows about
var defaultRoles = []struct {
	name        string
	description string
}{
	{auth.RoleAdmin, "Administrator"},
	{auth.RolePackageAdmin, "Package Administrator"},
	{auth.RoleDeveloper, "Developer"},
}

func newRoleCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles",
	}

	var description string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			role, err := store.Session().CreateRole(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created role %s (id %d)\n", role.Name, role.ID)
			return nil
		},
	}
	create.Flags().StringVar(&description, "description", "", "Role description")

	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the built-in roles that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			sess := store.Session()
			existing, err := sess.ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			have := make(map[string]bool, len(existing))
			for _, r := range existing {
				have[r.Name] = true
			}

			for _, r := range defaultRoles {
				if have[r.name] {
					continue
				}
				if _, err := sess.CreateRole(cmd.Context(), r.name, r.description); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created role %s\n", r.name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			roles, err := store.Session().ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, r := range roles {
				fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Name, r.Description)
			}
			return w.Flush()
		},
	})

	return cmd
}
