package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/oauth"
	"github.com/p-blackswan/kubejit/internal/session"
)

var timeNow = time.Now

// UserView is an identity plus its role badge.
type UserView struct {
	models.UserIdentity
	Badge string
}

// SignIn runs the whole login: provider config, authorize URL, callback
// capture (loopback listener or pasted URL) and code exchange.
func (a *App) SignIn(ctx context.Context) (*models.UserIdentity, error) {
	cfg, err := a.Login.FetchProviderConfig(ctx)
	if err != nil {
		return nil, err
	}
	authURL, err := oauth.AuthorizeURL(cfg)
	if err != nil {
		return nil, err
	}
	a.Printf("Sign in with %s by opening:\n\n  %s\n\n", cfg.Provider, authURL)

	cb, err := a.awaitCallback(ctx, cfg.RedirectURI)
	if err != nil {
		return nil, err
	}
	provider, resp, err := a.Login.Exchange(ctx, cb)
	if err != nil {
		return nil, err
	}
	if err := a.Session.CompleteLogin(ctx, provider, resp); err != nil {
		return nil, err
	}
	user := a.Session.Identity()
	if user == nil || a.Session.State() != session.Authenticated {
		return nil, fmt.Errorf("%w: sign-in did not produce a session", kerrors.ErrUnauthorized)
	}
	return user, nil
}

func (a *App) awaitCallback(ctx context.Context, redirectURI string) (oauth.Callback, error) {
	if oauth.IsLoopback(redirectURI) {
		l, err := oauth.NewListener(redirectURI, a.Logger)
		if err == nil {
			err = l.Start()
		}
		if err == nil {
			defer l.Close()
			a.Printf("Waiting for the provider to redirect to %s ...\n", redirectURI)
			waitCtx, cancel := context.WithTimeout(ctx, a.Config.CallbackTimeout)
			defer cancel()
			cb, err := l.Wait(waitCtx)
			if errors.Is(err, context.DeadlineExceeded) {
				return oauth.Callback{}, fmt.Errorf("no callback within %s", a.Config.CallbackTimeout)
			}
			return cb, err
		}
		a.Logger.Warn().Err(err).Msg("callback listener unavailable, falling back to paste")
	}

	raw, err := a.ReadLine("Paste the URL you were redirected to: ")
	if err != nil {
		return oauth.Callback{}, fmt.Errorf("reading callback url: %w", err)
	}
	return oauth.ParseCallback(raw)
}
