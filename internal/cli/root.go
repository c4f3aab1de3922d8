// Package cli implements the kubejit command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/kubejit/internal/app"
	"github.com/p-blackswan/kubejit/internal/config"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/table"
)

// Version is set at build time.
var Version = "development"

// env is the state shared by one invocation's commands.
type env struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	apiURL    string
	statePath string
	logLevel  string

	app *app.App
}

// open loads configuration and builds the app on first use.
func (e *env) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := config.Load(func(c *config.Config) {
		if e.apiURL != "" {
			c.APIBaseURL = e.apiURL
		}
		if e.statePath != "" {
			c.StatePath = e.statePath
		}
		if e.logLevel != "" {
			c.LogLevel = e.logLevel
		}
	})
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, newLogger(cfg, e.errOut), e.in, e.out)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

// authenticated opens the app and requires a live session.
func (e *env) authenticated(ctx context.Context) (*app.App, error) {
	a, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Authenticate(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
		e.app = nil
	}
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.Development() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger
	return logger
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kubejit",
		Short:         "Request and approve just-in-time Kubernetes access",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(e.in)
	cmd.SetOut(e.out)
	cmd.SetErr(e.errOut)

	cmd.PersistentFlags().StringVar(&e.apiURL, "api-url", "", "Backend base URL (overrides KUBEJIT_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&e.statePath, "state", "", "Local state file (overrides KUBEJIT_STATE_PATH)")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level (overrides KUBEJIT_LOG_LEVEL)")

	cmd.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newStatusCmd(e),
		newVersionCmd(e),
		newRequestCmd(e),
		newApprovalsCmd(e),
		newHistoryCmd(e),
		newAdminCmd(e),
		newConsoleCmd(e),
	)
	return cmd
}

// run executes one invocation and reports its error on errOut.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	e := &env{in: in, out: out, errOut: errOut}
	defer e.close()

	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %s\n", kerrors.UserMessage(err, err.Error()))
	}
	return err
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", table.FormatTable, "Output format (table, compact, csv, json, yaml)")
}

func checkFormat(format string) error {
	if err := table.ValidateFormat(format); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrInvalidInput, err)
	}
	return nil
}
