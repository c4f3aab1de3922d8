package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/kubejit/internal/admin"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

func newAdminCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Housekeeping for administrators",
	}

	var yes bool
	clean := &cobra.Command{
		Use:   "clean-expired",
		Short: "Delete expired requests that were never approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.authenticated(cmd.Context())
			if err != nil {
				return err
			}
			if err := tabs.Require(tabs.Admin, a.Session.Permissions()); err != nil {
				return err
			}
			msg, err := admin.NewActions(a.Client, a.Banners, a.Logger).
				CleanExpired(cmd.Context(), a.Confirm(admin.ConfirmPrompt, yes))
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, msg)
			return nil
		},
	}
	clean.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(clean)
	return cmd
}
