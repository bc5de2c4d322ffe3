package ports

import (
	"context"

	"github.com/aretw0/cadence/pkg/domain"
)

// CheckpointStore persists session checkpoints (program name plus variable
// snapshot), enabling "Stop & Resume" across processes.
type CheckpointStore interface {
	// Save persists the checkpoint under cp.SessionID, replacing any previous one.
	Save(ctx context.Context, cp *domain.Checkpoint) error

	// Load retrieves the checkpoint for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error)

	// Delete removes the checkpoint for a given session ID. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of every stored session.
	List(ctx context.Context) ([]string, error)
}
