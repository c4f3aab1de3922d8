package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/kubejit/internal/app"
	"github.com/p-blackswan/kubejit/internal/approval"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

func newApprovalsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approvals",
		Aliases: []string{"approval"},
		Short:   "Review requests waiting for your decision",
	}
	cmd.AddCommand(
		newApprovalsListCmd(e),
		newDecideCmd(e, models.StatusApproved),
		newDecideCmd(e, models.StatusRejected),
	)
	return cmd
}

// workflow authenticates, checks the Approve tab and loads the pending
// list.
func (e *env) workflow(cmd *cobra.Command) (*app.App, *approval.Workflow, error) {
	a, err := e.authenticated(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if err := tabs.Require(tabs.Approve, a.Session.Permissions()); err != nil {
		return nil, nil, err
	}
	w := approval.NewWorkflow(a.Client, *a.Session.Identity(), a.Banners, a.Metrics, a.Logger)
	if err := w.Refresh(cmd.Context()); err != nil {
		return nil, nil, err
	}
	return a, w, nil
}

func newApprovalsListCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending requests",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			_, w, err := e.workflow(cmd)
			if err != nil {
				return err
			}
			return approval.RenderPending(e.out, format, w.Pending(), nil)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func newDecideCmd(e *env, status models.Status) *cobra.Command {
	var yes bool
	verb, short := "approve", "Approve pending requests in one batch"
	if status == models.StatusRejected {
		verb, short = "reject", "Reject pending requests in one batch"
	}
	cmd := &cobra.Command{
		Use:   verb + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, w, err := e.workflow(cmd)
			if err != nil {
				return err
			}
			for _, arg := range args {
				id, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 10, 64)
				if err != nil {
					return fmt.Errorf("%w: bad request id %q", kerrors.ErrInvalidInput, arg)
				}
				if err := w.Toggle(uint(id)); err != nil {
					return err
				}
			}
			prompt, err := w.Review(status)
			if err != nil {
				return err
			}
			msg, err := w.Decide(cmd.Context(), status, a.Confirm(prompt+"?", yes))
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, msg)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
