package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultLoopbackAddr = "127.0.0.1:0"
	callbackPath        = "/"
	shutdownGrace       = 2 * time.Second
)

const donePage = `<!doctype html><html><body><p>Authorization complete. You can close this window.</p></body></html>`

// LoopbackFlow runs the installed-app consent flow: it prints the consent URL
// and receives the authorization code on a short-lived loopback listener.
type LoopbackFlow struct {
	Addr   string
	Out    io.Writer
	Logger *slog.Logger
	// OnURL replaces printing the consent URL to Out.
	OnURL func(authURL string)
}

type callbackResult struct {
	code string
	err  error
}

var errStateMismatch = errors.New("state mismatch in consent callback")

// Authenticate implements ConsentFlow.
func (f *LoopbackFlow) Authenticate(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	addr := f.Addr
	if addr == "" {
		addr = defaultLoopbackAddr
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for consent callback: %w", err)
	}

	conf := *cfg
	conf.RedirectURL = "http://" + ln.Addr().String() + callbackPath

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := conf.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			f.logger().Warn("consent listener stopped", "error", serveErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	f.logger().InfoContext(ctx, "waiting for consent", "redirect", conf.RedirectURL)
	if f.OnURL != nil {
		f.OnURL(authURL)
	} else {
		out := f.Out
		if out == nil {
			out = os.Stderr
		}
		fmt.Fprintf(out, "Open the following link in your browser to authorize access:\n%s\n", authURL)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for consent callback: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func (f *LoopbackFlow) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.Logger
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: errStateMismatch})
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			deliver(callbackResult{err: fmt.Errorf("consent denied: %s", e)})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: errors.New("consent callback carried no code")})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, donePage)
		deliver(callbackResult{code: code})
	})
	return mux
}
