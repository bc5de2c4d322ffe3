package ports

import (
	"context"

	"github.com/aretw0/cadence/pkg/domain"
)

// EventDispatcher delivers fired events to the host (audio, animation,
// camera). The runtime only emits payloads; what they mean is up to the host.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event domain.EventPayload) error
}
