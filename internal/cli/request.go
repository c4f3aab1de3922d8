package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/requestform"
	"github.com/p-blackswan/kubejit/internal/table"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

var timeNow = time.Now

func newRequestCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Compose and submit access requests",
	}
	cmd.AddCommand(newRequestSubmitCmd(e), newRequestOptionsCmd(e))
	return cmd
}

func newRequestOptionsCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the clusters and roles that may be requested",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := e.authenticated(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := a.Client.Options(cmd.Context())
			if err != nil {
				return err
			}
			var data [][]string
			for _, c := range opts.Clusters {
				data = append(data, []string{"cluster", c})
			}
			for _, r := range opts.Roles {
				data = append(data, []string{"role", r.Name})
			}
			for _, t := range a.Session.Permissions().Teams() {
				data = append(data, []string{"team", t.Name})
			}
			return table.Render(e.out, format, []string{"KIND", "NAME"}, data, opts)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

type submitFlags struct {
	users         []string
	namespaces    []string
	justification string
	cluster       string
	role          string
	team          string
	start         string
	end           string
	file          string
	yes           bool
}

func newRequestSubmitCmd(e *env) *cobra.Command {
	var f submitFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an access request",
		Example: `  kubejit request submit --user ada@example.com -n payments --cluster prod \
    --role edit --justification "incident 4411" --end +2h
  kubejit request submit --file bulk.yaml --end "2024-06-01 18:00"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.authenticated(ctx)
			if err != nil {
				return err
			}
			if err := tabs.Require(tabs.Request, a.Session.Permissions()); err != nil {
				return err
			}
			opts, err := a.Client.Options(ctx)
			if err != nil {
				return err
			}

			form := requestform.New(*opts, a.Banners)
			if err := f.apply(form, a.Session.Permissions().Teams()); err != nil {
				return err
			}
			if err := form.Validate(); err != nil {
				return err
			}

			fmt.Fprint(e.out, form.Review())
			confirmed := a.Confirm("Submit this request?", f.yes)
			out, err := form.Submit(ctx, a.Client, a.Session.Identity(), confirmed)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, out.Message)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&f.users, "user", "u", nil, "User email to grant access to (repeatable)")
	cmd.Flags().StringSliceVarP(&f.namespaces, "namespace", "n", nil, "Namespace to request (repeatable)")
	cmd.Flags().StringVarP(&f.justification, "justification", "j", "", "Reason for the request")
	cmd.Flags().StringVar(&f.cluster, "cluster", "", "Target cluster")
	cmd.Flags().StringVar(&f.role, "role", "", "Cluster role to request")
	cmd.Flags().StringVar(&f.team, "team", "", "Approving team, by id or name")
	cmd.Flags().StringVar(&f.start, "start", "now", "Start of the access window")
	cmd.Flags().StringVar(&f.end, "end", "", "End of the access window (e.g. +2h)")
	cmd.Flags().StringVar(&f.file, "file", "", "YAML or JSON file to prefill from")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Submit without asking for confirmation")
	return cmd
}

// apply fills form from the prefill file first, then from flags.
func (f *submitFlags) apply(form *requestform.Form, teams []models.Team) error {
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.file, err)
		}
		b, err := requestform.ParseBulk(data)
		if err != nil {
			return err
		}
		if err := form.Prefill(b); err != nil {
			return err
		}
	}

	for _, u := range f.users {
		if !form.Users.Add(u) {
			return kerrors.FieldErrors{requestform.FieldUsers: form.Users.Error()}
		}
	}
	for _, ns := range f.namespaces {
		if !form.Namespaces.Add(ns) {
			return kerrors.FieldErrors{requestform.FieldNamespaces: form.Namespaces.Error()}
		}
	}
	if f.justification != "" {
		if err := form.SetJustification(f.justification); err != nil {
			return err
		}
	}
	if f.cluster != "" {
		if err := form.SelectCluster(f.cluster); err != nil {
			return err
		}
	}
	if f.role != "" {
		if err := form.SelectRole(f.role); err != nil {
			return err
		}
	}
	if f.team != "" {
		if err := form.SelectApprovingTeam(f.team, teams); err != nil {
			return err
		}
	}

	now := timeNow()
	start, err := requestform.ParseWhen(f.start, now)
	if err != nil {
		return kerrors.FieldErrors{requestform.FieldStartDate: err.Error()}
	}
	form.SetStart(start)
	if f.end != "" {
		end, err := requestform.ParseWhen(f.end, now)
		if err != nil {
			return kerrors.FieldErrors{requestform.FieldEndDate: err.Error()}
		}
		if err := form.SetEnd(end); err != nil {
			return err
		}
	}
	return nil
}
