package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/kubejit/internal/history"
	"github.com/p-blackswan/kubejit/internal/requestform"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

func newHistoryCmd(e *env) *cobra.Command {
	var (
		p      history.Params
		start  string
		end    string
		filter string
		sortBy string
		desc   bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Search past access requests",
		Long: `Search past access requests.

Approvers and requesters only see their own requests; admins and platform
approvers may search for any user and ask for up to 100 rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := e.authenticated(cmd.Context())
			if err != nil {
				return err
			}
			if err := tabs.Require(tabs.History, a.Session.Permissions()); err != nil {
				return err
			}

			now := timeNow()
			if start != "" {
				if p.Start, err = requestform.ParseWhen(start, now); err != nil {
					return err
				}
			}
			if end != "" {
				if p.End, err = requestform.ParseWhen(end, now); err != nil {
					return err
				}
			}

			res, err := history.NewSearch(a.Client, a.Banners, a.Logger).
				Run(cmd.Context(), p, a.Session.Identity(), a.Session.Permissions())
			if err != nil {
				return err
			}
			if sortBy != "" {
				if err := res.Sort(sortBy, desc); err != nil {
					return err
				}
			}
			if filter != "" {
				res = res.Filter(filter)
			}
			if res.Len() == 0 && format == "table" {
				fmt.Fprintln(e.out, "No requests found.")
				return nil
			}
			return res.Render(e.out, format)
		},
	}

	cmd.Flags().StringVar(&p.UserID, "user-id", "", "Search another user's requests by id (admins and platform approvers)")
	cmd.Flags().StringVar(&p.Username, "username", "", "Search another user's requests by name (admins and platform approvers)")
	cmd.Flags().IntVarP(&p.Limit, "limit", "l", 0, "Maximum rows (default 20; capped at 20, or 100 for admins)")
	cmd.Flags().StringVar(&start, "start", "", "Only requests starting after this time")
	cmd.Flags().StringVar(&end, "end", "", "Only requests ending before this time")
	cmd.Flags().StringVar(&filter, "filter", "", "Keep rows containing this text")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort by column (e.g. ID, CREATED, STATUS)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	addFormatFlag(cmd, &format)
	return cmd
}
