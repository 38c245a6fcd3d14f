// internal/runtime/googleapi.go adapts *gmail.Service to our small interface
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	gc "github.com/joshsymonds/starred/internal/gmail"
)

const user = "me"

// metadataHeaders limits the get call to the headers we read.
var metadataHeaders = []string{"Subject", "From", "Date"}

type googleClient struct{ svc *gmail.Service }

func NewGoogleAPIClient(svc *gmail.Service) *googleClient { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, opts gc.ListOptions) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List(user)
	if len(opts.LabelIDs) > 0 {
		call = call.LabelIds(toStrings(opts.LabelIDs)...)
	}
	if opts.MaxResults > 0 {
		call = call.MaxResults(int64(opts.MaxResults))
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, classify(err)
	}
	ids := make([]gc.MessageID, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, gc.MessageID(m.Id))
	}
	return gc.ListPage{IDs: ids, NextPageToken: res.NextPageToken}, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	msg, err := g.svc.Users.Messages.Get(user, string(id)).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return gc.Message{}, classify(err)
	}
	out := gc.Message{ID: gc.MessageID(msg.Id), Snippet: msg.Snippet}
	if msg.Payload != nil {
		out.Headers = make([]gc.Header, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, gc.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out, nil
}

// classify tags err with gc.ErrUnauthorized or gc.ErrRemote, keeping the original in the chain.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized ||
			(apiErr.Code == http.StatusForbidden && !quotaExceeded(apiErr)) {
			return fmt.Errorf("%w: %w", gc.ErrUnauthorized, err)
		}
		return fmt.Errorf("%w: %w", gc.ErrRemote, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", gc.ErrUnauthorized, err)
	}
	return fmt.Errorf("%w: %w", gc.ErrRemote, err)
}

// Gmail reports quota exhaustion as 403 too; those are not credential problems.
func quotaExceeded(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

func toStrings(labels []gc.LabelID) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}

var _ gc.Client = (*googleClient)(nil)
