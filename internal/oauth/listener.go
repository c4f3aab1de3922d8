package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"
)

// ErrNotLoopback is returned for redirect URIs a local listener cannot serve.
var ErrNotLoopback = errors.New("redirect uri is not a loopback address")

// IsLoopback reports whether redirectURI points at this machine with an
// explicit port.
func IsLoopback(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" || u.Port() == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Listener captures a single OAuth redirect on a loopback address.
type Listener struct {
	app     *fiber.App
	addr    string
	path    string
	ln      net.Listener
	results chan Callback
	logger  zerolog.Logger
}

// NewListener prepares a listener for redirectURI.
func NewListener(redirectURI string, logger zerolog.Logger) (*Listener, error) {
	if !IsLoopback(redirectURI) {
		return nil, fmt.Errorf("%w: %s", ErrNotLoopback, redirectURI)
	}
	u, _ := url.Parse(redirectURI)
	path := u.Path
	if path == "" {
		path = "/"
	}

	l := &Listener{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		addr:    u.Host,
		path:    path,
		results: make(chan Callback, 1),
		logger:  logger.With().Str("component", "oauth_listener").Logger(),
	}
	l.app.Use(recover.New())
	l.app.Get(path, l.handle)
	return l, nil
}

func (l *Listener) handle(c *fiber.Ctx) error {
	cb := Callback{
		Code:  utils.CopyString(c.Query("code")),
		State: utils.CopyString(c.Query("state")),
		Error: utils.CopyString(c.Query("error")),
	}
	if err := cb.Validate(); err != nil {
		l.logger.Warn().Err(err).Msg("rejected callback")
		return c.Status(fiber.StatusBadRequest).SendString("Sign-in failed: " + err.Error())
	}

	select {
	case l.results <- cb:
		l.logger.Debug().Str("state", cb.State).Msg("callback captured")
	default:
	}
	return c.SendString("Signed in to kubejit. You can close this window.")
}

// Start binds the address and serves in the background.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", l.addr, err)
	}
	l.ln = ln
	go func() {
		if err := l.app.Listener(ln); err != nil {
			l.logger.Debug().Err(err).Msg("callback listener stopped")
		}
	}()
	return nil
}

// Addr returns the bound address (useful when the redirect URI uses port 0).
func (l *Listener) Addr() string {
	if l.ln == nil {
		return l.addr
	}
	return l.ln.Addr().String()
}

// Wait blocks until a valid callback arrives or ctx ends.
func (l *Listener) Wait(ctx context.Context) (Callback, error) {
	select {
	case cb := <-l.results:
		return cb, nil
	case <-ctx.Done():
		return Callback{}, ctx.Err()
	}
}

// Close stops the server.
func (l *Listener) Close() error {
	return l.app.Shutdown()
}
