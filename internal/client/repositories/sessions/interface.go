package sessions

import (
	"context"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
)

// Repository stores sealed sessions.
type Repository interface {
	// Put inserts or replaces the session for its identity and audience.
	Put(ctx context.Context, s *models.StoredSession) error

	// Get returns common.ErrNotFound when no session is stored.
	Get(ctx context.Context, identity, audience string) (*models.StoredSession, error)

	Delete(ctx context.Context, identity, audience string) error

	// List returns all stored sessions ordered by identity and audience.
	List(ctx context.Context) ([]*models.StoredSession, error)
}
