// Package starred lists starred Gmail messages and extracts their subjects.
package starred

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joshsymonds/starred/internal/auth"
	"github.com/joshsymonds/starred/internal/gmail"
	"github.com/joshsymonds/starred/internal/rate"
)

// Authorizer yields authenticated clients; Interactive forces a new consent.
type Authorizer interface {
	Authorize(ctx context.Context) (*auth.Client, error)
	Interactive(ctx context.Context) (*auth.Client, error)
}

// ClientFactory builds a Gmail client on top of an authenticated handle.
type ClientFactory func(ctx context.Context, ac *auth.Client) (gmail.Client, error)

// Options controls a run.
type Options struct {
	Cap         int
	Concurrency int
	Timeout     time.Duration
}

// Result is one starred message in listing order.
type Result struct {
	ID         gmail.MessageID `json:"id"`
	Subject    string          `json:"subject"`
	HasSubject bool            `json:"has_subject"`
}

// Service composes authorization, listing and reading into one pass.
type Service struct {
	Auth      Authorizer
	NewClient ClientFactory
	Limiter   rate.Limiter
	Logger    *slog.Logger
	Clock     func() time.Time
	Options   Options
}

// NewService constructs a Service with sane defaults.
func NewService(
	authz Authorizer,
	factory ClientFactory,
	limiter rate.Limiter,
	logger *slog.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Auth:      authz,
		NewClient: factory,
		Limiter:   limiter,
		Logger:    logger,
		Clock:     time.Now,
		Options:   opts,
	}
}

// session tracks the live client and whether the one re-authorization was spent.
type session struct {
	ac       *auth.Client
	client   gmail.Client
	reauthed bool
}

// Run authorizes, lists starred IDs and reads each subject. Nothing is
// retried except a single interactive re-authorization when a cached
// credential is rejected.
func (s *Service) Run(ctx context.Context) ([]Result, error) {
	limit := s.Options.Cap
	if limit <= 0 {
		limit = DefaultCap
	}
	concurrency := s.Options.Concurrency
	if concurrency > limit {
		concurrency = limit
	}

	ac, err := s.Auth.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	sess := &session{ac: ac}
	if err := s.connect(ctx, sess); err != nil {
		return nil, err
	}

	var ids []gmail.MessageID
	err = s.withReauth(ctx, sess, func(c gmail.Client) error {
		f := &Fetcher{Client: c, Limiter: s.Limiter, Logger: s.Logger, Timeout: s.Options.Timeout}
		var listErr error
		ids, listErr = f.ListStarred(ctx, limit)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "listed starred messages", "count", len(ids))

	var msgs []gmail.Message
	err = s.withReauth(ctx, sess, func(c gmail.Client) error {
		r := &Reader{Client: c, Limiter: s.Limiter, Timeout: s.Options.Timeout}
		var readErr error
		msgs, readErr = r.ReadAll(ctx, ids, concurrency)
		return readErr
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(msgs))
	for _, m := range msgs {
		subject, ok := gmail.SubjectOf(m)
		if !ok {
			s.Logger.DebugContext(ctx, "message has no subject", "id", m.ID)
		}
		results = append(results, Result{ID: m.ID, Subject: subject, HasSubject: ok})
	}
	return results, nil
}

func (s *Service) connect(ctx context.Context, sess *session) error {
	client, err := s.NewClient(ctx, sess.ac)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}
	sess.client = client
	return nil
}

func (s *Service) withReauth(ctx context.Context, sess *session, op func(gmail.Client) error) error {
	err := op(sess.client)
	if err == nil || !errors.Is(err, gmail.ErrUnauthorized) {
		return err
	}
	if sess.reauthed || sess.ac.Path != auth.PathCached {
		return err
	}
	s.Logger.WarnContext(ctx, "cached credential rejected; re-authorizing", "error", err)
	ac, authErr := s.Auth.Interactive(ctx)
	if authErr != nil {
		return fmt.Errorf("re-authorize after %w: %w", err, authErr)
	}
	sess.ac = ac
	sess.reauthed = true
	if connErr := s.connect(ctx, sess); connErr != nil {
		return connErr
	}
	return op(sess.client)
}
