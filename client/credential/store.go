// Package credential holds the access/refresh token pair between requests and
// across process restarts.
package credential

import (
	"context"
	"errors"
)

var ErrEmptyAccess = errors.New("credential: access token is empty")

// Pair is the credential pair issued by the API. Both values are opaque.
type Pair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Store is the single source of truth for the current Pair.
//
// Get returns nil, nil when no access token is stored. Set and Clear persist
// before returning so that a later Get, including one from a new process,
// observes the write.
type Store interface {
	Get(ctx context.Context) (*Pair, error)
	Set(ctx context.Context, p Pair) error
	Clear(ctx context.Context) error
}

func validate(p Pair) error {
	if p.Access == "" {
		return ErrEmptyAccess
	}
	return nil
}
