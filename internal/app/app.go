// Package app wires the client's components together for the CLI and the
// interactive console.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/api"
	"github.com/p-blackswan/kubejit/internal/banner"
	"github.com/p-blackswan/kubejit/internal/config"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/health"
	"github.com/p-blackswan/kubejit/internal/metrics"
	"github.com/p-blackswan/kubejit/internal/oauth"
	"github.com/p-blackswan/kubejit/internal/retry"
	"github.com/p-blackswan/kubejit/internal/session"
	"github.com/p-blackswan/kubejit/internal/store"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

// App holds one process's worth of client state.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Store   *store.Store
	Jar     *api.PersistentJar
	Client  *api.Client
	Session *session.Controller
	Login   *oauth.Flow
	Banners *banner.Board
	Health  *health.Checker

	in  *bufio.Reader
	out io.Writer

	buildMu sync.RWMutex
	build   string
}

// New opens the state store and builds every component. The caller must
// Close the app.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) (*App, error) {
	path, err := cfg.StateFile()
	if err != nil {
		return nil, fmt.Errorf("resolving state path: %w", err)
	}
	st, err := store.New(path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	root := cfg.APIRoot()
	jar, err := api.NewPersistentJar(ctx, st, root, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("restoring cookies: %w", err)
	}

	m := metrics.New()
	retryCfg := retry.DefaultConfig().WithAttempts(cfg.RetryAttempts)
	retryCfg.OnRetry = func(attempt int, err error) {
		logger.Debug().Err(err).Int("attempt", attempt).Msg("retrying backend read")
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Store:   st,
		Jar:     jar,
		Banners: banner.NewBoard(nil),
		in:      bufio.NewReader(in),
		out:     out,
	}

	a.Client = api.NewClient(root, logger,
		api.WithHTTPClient(&http.Client{Jar: jar, Timeout: cfg.HTTPTimeout}),
		api.WithRetry(retryCfg),
		api.WithMetrics(m),
		api.WithUnauthorizedHandler(func(endpoint string) { a.Session.HandleUnauthorized(endpoint) }),
	)
	a.Session = session.NewController(a.Client, st, logger,
		session.WithMetrics(m),
		session.WithCleanup(func(ctx context.Context) {
			if err := jar.Clear(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to clear session cookies")
			}
		}),
	)
	a.Login = oauth.NewFlow(a.Client, st, logger)

	a.Health = health.NewChecker(logger)
	a.Health.Register("backend", health.BackendCheck(func(ctx context.Context) error {
		_, err := a.Client.BuildSHA(ctx)
		return err
	}))
	a.Health.Register("state_store", health.StoreCheck(st))
	a.Health.Register("session", health.SessionCheck(func(ctx context.Context) bool {
		m, err := a.Session.ReadMarkers(ctx)
		return err == nil && m.Live(timeNow())
	}))

	return a, nil
}

// Close releases the state store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Out returns the writer user-facing output goes to.
func (a *App) Out() io.Writer { return a.out }

// Authenticate bootstraps the session if needed and fails unless it ends up
// authenticated.
func (a *App) Authenticate(ctx context.Context) error {
	if a.Session.State() == session.Bootstrapping {
		a.Session.Bootstrap(ctx)
	}
	if a.Session.State() != session.Authenticated {
		return fmt.Errorf("%w: run `kubejit login`", kerrors.ErrUnauthorized)
	}
	return nil
}

// RequireTab authenticates and checks the user may use tab.
func (a *App) RequireTab(ctx context.Context, tab tabs.Tab) error {
	if err := a.Authenticate(ctx); err != nil {
		return err
	}
	return tabs.Require(tab, a.Session.Permissions())
}

// Identity returns the signed-in user. It is only valid after Authenticate.
func (a *App) Identity() *UserView {
	u := a.Session.Identity()
	if u == nil {
		return nil
	}
	return &UserView{UserIdentity: *u, Badge: tabs.Badge(a.Session.Permissions())}
}

// StartBuildFetch loads the backend build sha in the background. Failures
// are ignored.
func (a *App) StartBuildFetch(ctx context.Context) {
	go func() {
		info, err := a.Client.BuildSHA(ctx)
		if err != nil {
			a.Logger.Debug().Err(err).Msg("build sha unavailable")
			return
		}
		a.buildMu.Lock()
		a.build = info.Short()
		a.buildMu.Unlock()
	}()
}

// Build returns the short backend sha, or "" if not (yet) known.
func (a *App) Build() string {
	a.buildMu.RLock()
	defer a.buildMu.RUnlock()
	return a.build
}

// Header renders the shell header for the active tab.
func (a *App) Header(active tabs.Tab) string {
	return tabs.Render(tabs.Header{
		User:   a.Session.Identity(),
		Layout: tabs.Compose(a.Session.Permissions(), active),
		Build:  a.Build(),
	})
}

// Printf writes to the app's output.
func (a *App) Printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// PrintBanners writes every active banner.
func (a *App) PrintBanners() {
	for _, b := range a.Banners.Active() {
		mark := "✓"
		if b.Kind == banner.Error {
			mark = "✗"
		}
		a.Printf("%s %s\n", mark, b.Text)
	}
}

// ReadLine prompts and reads one trimmed line.
func (a *App) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		a.Printf("%s", prompt)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. assumeYes skips the prompt.
func (a *App) Confirm(prompt string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	answer, err := a.ReadLine(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
