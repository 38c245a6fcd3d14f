// internal/runtime/auth.go
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gc "github.com/joshsymonds/starred/internal/gmail"
)

// ScopeReadonly is the only scope the starred-subjects run requests.
const ScopeReadonly = gmail.GmailReadonlyScope

// NewGmailClient wraps an already-authenticated HTTP client in the narrow Gmail interface.
func NewGmailClient(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (gc.Client, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := gmail.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
