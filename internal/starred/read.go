package starred

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/starred/internal/gmail"
	"github.com/joshsymonds/starred/internal/rate"
)

// Reader resolves message IDs to their headers.
type Reader struct {
	Client  gmail.Client
	Limiter rate.Limiter
	Timeout time.Duration
}

// Get fetches one message.
func (r *Reader) Get(ctx context.Context, id gmail.MessageID) (gmail.Message, error) {
	if err := wait(ctx, r.Limiter, "rate limit get"); err != nil {
		return gmail.Message{}, err
	}
	callCtx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	msg, err := r.Client.Get(callCtx, id)
	if err != nil {
		return gmail.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// ReadAll fetches every id with at most concurrency requests in flight.
// The result slice follows the order of ids; the first failure cancels the rest.
func (r *Reader) ReadAll(ctx context.Context, ids []gmail.MessageID, concurrency int) ([]gmail.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	msgs := make([]gmail.Message, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			msg, err := r.Get(gctx, id)
			if err != nil {
				return err
			}
			msgs[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msgs, nil
}
