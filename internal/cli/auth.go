package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/health"
	"github.com/p-blackswan/kubejit/internal/table"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the backend's OAuth provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := a.SignIn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Signed in as %s <%s>", user.Name, user.Email)
			if badge := a.Identity().Badge; badge != "" {
				fmt.Fprintf(e.out, " (%s)", badge)
			}
			fmt.Fprintln(e.out)
			return nil
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			a.Session.SignOut(cmd.Context())
			fmt.Fprintln(e.out, "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, role and available tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.authenticated(cmd.Context())
			if err != nil {
				return err
			}
			u := a.Identity()
			layout := tabs.Compose(a.Session.Permissions(), tabs.Request)
			names := make([]string, len(layout.Tabs))
			for i, t := range layout.Tabs {
				names[i] = t.String()
			}

			fmt.Fprintf(e.out, "User:     %s <%s>\n", u.Name, u.Email)
			fmt.Fprintf(e.out, "ID:       %s\n", u.ID)
			fmt.Fprintf(e.out, "Provider: %s\n", a.Session.Provider())
			if u.Badge != "" {
				fmt.Fprintf(e.out, "Role:     %s\n", u.Badge)
			}
			fmt.Fprintf(e.out, "Tabs:     %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

func newStatusCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the backend, the state store and the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			results := a.Health.RunAll(cmd.Context())
			data := make([][]string, len(results))
			for i, r := range results {
				data[i] = []string{r.Name, string(r.Status)}
			}
			if err := table.Render(e.out, format, []string{"CHECK", "STATUS"}, data, results); err != nil {
				return err
			}
			if !health.Ready(results) {
				return fmt.Errorf("%w: not ready", kerrors.ErrUnavailable)
			}
			return nil
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version and the backend build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(e.out, "kubejit %s\n", Version)
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			backend := "unknown"
			if info, err := a.Client.BuildSHA(cmd.Context()); err == nil && info.Sha != "" {
				backend = info.Short()
			}
			fmt.Fprintf(e.out, "backend %s\n", backend)
			return nil
		},
	}
}
