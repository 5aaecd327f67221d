package session

import (
	"context"

	domsession "github.com/kailas-cloud/refine/internal/domain/session"
)

// Repository defines the storage contract for search sessions.
type Repository interface {
	Create(ctx context.Context, sess domsession.Session) error
	Get(ctx context.Context, id string) (domsession.Session, error)
	Save(ctx context.Context, sess domsession.Session) error
	Delete(ctx context.Context, id string) error
}
