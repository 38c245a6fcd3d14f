package starred

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshsymonds/starred/internal/gmail"
	"github.com/joshsymonds/starred/internal/rate"
)

// DefaultCap bounds how many starred messages one run reads.
const DefaultCap = 5

// Fetcher lists starred message IDs. It never pages past the first response.
type Fetcher struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Logger  *slog.Logger
	Timeout time.Duration
}

// ListStarred returns at most limit starred IDs in provider order.
func (f *Fetcher) ListStarred(ctx context.Context, limit int) ([]gmail.MessageID, error) {
	if limit <= 0 {
		limit = DefaultCap
	}
	if err := wait(ctx, f.Limiter, "rate limit list"); err != nil {
		return nil, err
	}
	callCtx, cancel := withTimeout(ctx, f.Timeout)
	defer cancel()

	page, err := f.Client.List(callCtx, gmail.ListOptions{
		LabelIDs:   []gmail.LabelID{gmail.LabelStarred},
		MaxResults: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list starred: %w", err)
	}
	ids := page.IDs
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if f.Logger != nil && (page.NextPageToken != "" || len(page.IDs) > limit) {
		f.Logger.InfoContext(ctx, "more starred messages than cap; reading first page only", "cap", limit)
	}
	return ids, nil
}

func wait(ctx context.Context, limiter rate.Limiter, operation string) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
