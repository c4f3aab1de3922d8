package cli

import (
	"github.com/spf13/cobra"

	"github.com/p-blackswan/kubejit/internal/console"
)

func newConsoleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open the interactive tabbed shell",
		Long: `Open the interactive tabbed shell.

When KUBEJIT_METRICS_ADDR is set the console also serves /metrics,
/healthz and /readyz on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			if addr := a.Config.MetricsAddr; addr != "" {
				srv := console.NewServer(addr, a.Health, a.Metrics, a.Logger)
				if err := srv.Start(); err != nil {
					return err
				}
				defer srv.Shutdown()
			}
			return console.New(a).Run(cmd.Context())
		},
	}
}
