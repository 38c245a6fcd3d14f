package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/joshsymonds/starred/internal/credstore"
)

const minimalWebSecrets = `{"web":{"client_id":"cid","client_secret":"csecret"}}`

const testSecrets = `{"installed":{"client_id":"cid","client_secret":"csecret","auth_uri":"https://accounts.example.com/auth","token_uri":"https://accounts.example.com/token","redirect_uris":["http://localhost"]}}`

type fakeStore struct {
	cred      credstore.Credential
	present   bool
	saved     []string
	saveErr   error
	loadCalls int
}

func (f *fakeStore) Load() (credstore.Credential, bool) {
	f.loadCalls++
	return f.cred, f.present
}

func (f *fakeStore) Save(refreshToken string) error {
	f.saved = append(f.saved, refreshToken)
	return f.saveErr
}

type spyFlow struct {
	calls   int
	token   *oauth2.Token
	err     error
	gotCfg  *oauth2.Config
	inspect func(ctx context.Context)
}

func (s *spyFlow) Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	s.calls++
	s.gotCfg = cfg
	if s.inspect != nil {
		s.inspect(ctx)
	}
	return s.token, s.err
}

func secretsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	return path
}

func newTestAuthorizer(store CredentialStore, flow ConsentFlow, secretsPath string) *Authorizer {
	return NewAuthorizer(store, flow, slogDiscard(), Options{
		SecretsPath: secretsPath,
		Scopes:      []string{"https://www.googleapis.com/auth/gmail.readonly"},
	})
}

func TestAuthorizeCachedSkipsConsent(t *testing.T) {
	store := &fakeStore{
		present: true,
		cred: credstore.Credential{
			Type:         credstore.TypeAuthorizedUser,
			ClientID:     "cid",
			ClientSecret: "csecret",
			RefreshToken: "rt",
		},
	}
	flow := &spyFlow{}
	a := newTestAuthorizer(store, flow, filepath.Join(t.TempDir(), "missing.json"))

	client, err := a.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if flow.calls != 0 {
		t.Fatalf("consent flow invoked %d times", flow.calls)
	}
	if client.Path != PathCached {
		t.Fatalf("unexpected path %s", client.Path)
	}
	if client.HTTP == nil {
		t.Fatalf("expected http client")
	}
	if len(store.saved) != 0 {
		t.Fatalf("cached path must not save, saved %v", store.saved)
	}
}

func TestAuthorizeInteractiveSavesRefreshToken(t *testing.T) {
	tests := []struct {
		name      string
		secrets   string
		token     *oauth2.Token
		wantSaved []string
	}{
		{
			name:      "with-refresh-token",
			secrets:   testSecrets,
			token:     &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
			wantSaved: []string{"rt"},
		},
		{
			name:    "without-refresh-token",
			secrets: testSecrets,
			token:   &oauth2.Token{AccessToken: "at"},
		},
		{
			name:      "web-secrets-without-redirect-uris",
			secrets:   minimalWebSecrets,
			token:     &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
			wantSaved: []string{"rt"},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			flow := &spyFlow{token: tc.token}
			a := newTestAuthorizer(store, flow, secretsFile(t, tc.secrets))

			client, err := a.Authorize(context.Background())
			if err != nil {
				t.Fatalf("authorize failed: %v", err)
			}
			if flow.calls != 1 {
				t.Fatalf("expected one consent call, got %d", flow.calls)
			}
			if client.Path != PathInteractive {
				t.Fatalf("unexpected path %s", client.Path)
			}
			if len(store.saved) != len(tc.wantSaved) {
				t.Fatalf("saved %v want %v", store.saved, tc.wantSaved)
			}
			for i := range tc.wantSaved {
				if store.saved[i] != tc.wantSaved[i] {
					t.Fatalf("saved %v want %v", store.saved, tc.wantSaved)
				}
			}
			if flow.gotCfg.ClientID != "cid" || flow.gotCfg.ClientSecret != "csecret" {
				t.Fatalf("flow got client %q/%q", flow.gotCfg.ClientID, flow.gotCfg.ClientSecret)
			}
			if flow.gotCfg.Endpoint.TokenURL != a.Endpoint.TokenURL {
				t.Fatalf("flow got token url %q", flow.gotCfg.Endpoint.TokenURL)
			}
			if len(flow.gotCfg.Scopes) != 1 {
				t.Fatalf("flow got scopes %v", flow.gotCfg.Scopes)
			}
		})
	}
}

func TestAuthorizeSaveFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	flow := &spyFlow{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}}
	a := newTestAuthorizer(store, flow, secretsFile(t, testSecrets))

	client, err := a.Authorize(context.Background())
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if client == nil || client.Path != PathInteractive {
		t.Fatalf("unexpected client %+v", client)
	}
}

func TestAuthorizeConsentFailure(t *testing.T) {
	store := &fakeStore{}
	flow := &spyFlow{err: errors.New("user cancelled")}
	a := newTestAuthorizer(store, flow, secretsFile(t, testSecrets))

	_, err := a.Authorize(context.Background())
	if !errors.Is(err, ErrConsent) {
		t.Fatalf("expected ErrConsent, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be saved, got %v", store.saved)
	}
}

func TestAuthorizeConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		secrets *string
	}{
		{name: "missing"},
		{name: "malformed", secrets: ptr("{")},
		{name: "unknown-shape", secrets: ptr(`{"other":{}}`)},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "credentials.json")
			if tc.secrets != nil {
				path = secretsFile(t, *tc.secrets)
			}
			flow := &spyFlow{token: &oauth2.Token{RefreshToken: "rt"}}
			a := newTestAuthorizer(&fakeStore{}, flow, path)

			_, err := a.Authorize(context.Background())
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if flow.calls != 0 {
				t.Fatalf("consent flow must not run on config error")
			}
		})
	}
}

func TestInteractiveAppliesConsentTimeout(t *testing.T) {
	var deadlineSet bool
	flow := &spyFlow{
		token: &oauth2.Token{AccessToken: "at"},
		inspect: func(ctx context.Context) {
			_, deadlineSet = ctx.Deadline()
		},
	}
	a := newTestAuthorizer(&fakeStore{}, flow, secretsFile(t, testSecrets))
	a.Options.ConsentTimeout = time.Minute

	if _, err := a.Interactive(context.Background()); err != nil {
		t.Fatalf("interactive failed: %v", err)
	}
	if !deadlineSet {
		t.Fatalf("expected consent context to carry a deadline")
	}
}

func TestPathString(t *testing.T) {
	if PathCached.String() != "cached" || PathInteractive.String() != "interactive" {
		t.Fatalf("unexpected path names %s %s", PathCached, PathInteractive)
	}
}

func ptr(s string) *string { return &s }

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
