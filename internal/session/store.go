// Package session holds authenticated identities between requests.
//
// A session is an entry in a Store keyed by a random id. The client only ever
// sees a signed token naming that id. Role and the other identity fields are
// copied at login and never change for the lifetime of the entry.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCorruptSession  = errors.New("corrupt session entry")
)

// Store persists identities by session id.
type Store interface {
	Save(ctx context.Context, id string, identity *model.Identity, ttl time.Duration) error
	Load(ctx context.Context, id string) (*model.Identity, error)
	Delete(ctx context.Context, id string) error
}
