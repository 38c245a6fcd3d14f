// Package auth turns the cached refresh token, or a fresh interactive
// consent, into an HTTP client that signs Gmail API requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/joshsymonds/starred/internal/credstore"
)

var (
	// ErrConfig marks a missing or malformed client-secret file.
	ErrConfig = errors.New("auth: client secrets unusable")
	// ErrConsent marks an interactive consent that failed, was cancelled or timed out.
	ErrConsent = errors.New("auth: interactive consent failed")
)

// Path records how a Client was obtained.
type Path int

const (
	PathCached Path = iota
	PathInteractive
)

func (p Path) String() string {
	switch p {
	case PathCached:
		return "cached"
	case PathInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Client is an authenticated handle for one run. Only its refresh token is ever persisted.
type Client struct {
	HTTP *http.Client
	Path Path
}

// CredentialStore is the subset of credstore.Store the Authorizer needs.
type CredentialStore interface {
	Load() (credstore.Credential, bool)
	Save(refreshToken string) error
}

// ConsentFlow runs the interactive OAuth2 grant for cfg.
type ConsentFlow interface {
	Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Options configures an Authorizer.
type Options struct {
	SecretsPath    string
	Scopes         []string
	ConsentTimeout time.Duration
}

// Authorizer picks between the cached and interactive paths.
type Authorizer struct {
	Store    CredentialStore
	Flow     ConsentFlow
	Logger   *slog.Logger
	Options  Options
	Endpoint oauth2.Endpoint
}

// NewAuthorizer constructs an Authorizer against Google's OAuth2 endpoint.
func NewAuthorizer(store CredentialStore, flow ConsentFlow, logger *slog.Logger, opts Options) *Authorizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Authorizer{
		Store:    store,
		Flow:     flow,
		Logger:   logger,
		Options:  opts,
		Endpoint: google.Endpoint,
	}
}

// Authorize returns a client from the cached credential when one exists,
// otherwise runs the interactive consent flow.
func (a *Authorizer) Authorize(ctx context.Context) (*Client, error) {
	if cred, ok := a.Store.Load(); ok {
		a.Logger.InfoContext(ctx, "using cached credential")
		return a.fromCredential(ctx, cred), nil
	}
	a.Logger.InfoContext(ctx, "no cached credential; starting consent flow")
	return a.Interactive(ctx)
}

// Interactive always runs the consent flow and caches the resulting refresh token.
func (a *Authorizer) Interactive(ctx context.Context) (*Client, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	flowCtx := ctx
	if a.Options.ConsentTimeout > 0 {
		var cancel context.CancelFunc
		flowCtx, cancel = context.WithTimeout(ctx, a.Options.ConsentTimeout)
		defer cancel()
	}
	tok, err := a.Flow.Authenticate(flowCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsent, err)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: flow returned no token", ErrConsent)
	}

	if tok.RefreshToken != "" {
		if saveErr := a.Store.Save(tok.RefreshToken); saveErr != nil {
			a.Logger.WarnContext(ctx, "credential not cached", "error", saveErr)
		} else {
			a.Logger.InfoContext(ctx, "credential cached")
		}
	} else {
		a.Logger.InfoContext(ctx, "consent returned no refresh token; nothing cached")
	}

	// ctx, not flowCtx: token refreshes must outlive the consent timeout.
	return &Client{HTTP: cfg.Client(ctx, tok), Path: PathInteractive}, nil
}

func (a *Authorizer) fromCredential(ctx context.Context, cred credstore.Credential) *Client {
	cfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     a.Endpoint,
		Scopes:       a.Options.Scopes,
	}
	tok := &oauth2.Token{RefreshToken: cred.RefreshToken}
	return &Client{HTTP: cfg.Client(ctx, tok), Path: PathCached}
}

// oauthConfig needs only client_id and client_secret; the consent flow sets its own redirect.
func (a *Authorizer) oauthConfig() (*oauth2.Config, error) {
	secrets, err := credstore.ReadClientSecrets(a.Options.SecretsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &oauth2.Config{
		ClientID:     secrets.ClientID,
		ClientSecret: secrets.ClientSecret,
		Endpoint:     a.Endpoint,
		Scopes:       a.Options.Scopes,
	}, nil
}
