package gmail

import (
	"context"
	"errors"
)

// Client is the narrow Gmail surface required to read starred subjects.
type Client interface {
	List(ctx context.Context, opts ListOptions) (ListPage, error)
	Get(ctx context.Context, id MessageID) (Message, error)
}

var (
	// ErrUnauthorized marks a credential the API refused (expired, revoked, wrong scope).
	ErrUnauthorized = errors.New("gmail: credential rejected")
	// ErrRemote marks any other failure reported by the list or get endpoints.
	ErrRemote = errors.New("gmail: remote call failed")
)
