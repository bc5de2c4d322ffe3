package runner

import (
	"context"
	"errors"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
)

// StepResponse is what request/response hosts (HTTP, MCP) return after each call.
type StepResponse struct {
	SessionID string          `json:"session_id"`
	Snapshot  domain.Snapshot `json:"snapshot"`
	Terminal  bool            `json:"terminal"`
}

func respond(sess *cadence.Session, snap domain.Snapshot) *StepResponse {
	return &StepResponse{
		SessionID: sess.ID(),
		Snapshot:  snap,
		Terminal:  snap.State.Terminal(),
	}
}

// StepAndDispatch pushes progress and delivers the fired events to d (which
// may be nil). The response is returned even when the step fails so that
// the client can see the session state.
func StepAndDispatch(ctx context.Context, sess *cadence.Session, progress int, d ports.EventDispatcher) (*StepResponse, error) {
	snap, err := sess.Step(progress)
	return respond(sess, snap), errors.Join(err, deliver(ctx, d, snap.PendingEvents))
}

// ChooseAndStep submits a choice and immediately steps into the chosen
// branch, so the client receives the line it just entered.
func ChooseAndStep(ctx context.Context, sess *cadence.Session, index int, d ports.EventDispatcher) (*StepResponse, error) {
	if err := sess.SubmitChoice(index); err != nil {
		return respond(sess, sess.View()), err
	}
	return StepAndDispatch(ctx, sess, 0, d)
}

// ResetAndReport skips the current line. The flushed events are delivered
// and reported as the snapshot's pending events.
func ResetAndReport(ctx context.Context, sess *cadence.Session, d ports.EventDispatcher) (*StepResponse, error) {
	events, err := sess.ResetLine()
	snap := sess.View()
	snap.PendingEvents = events
	return respond(sess, snap), errors.Join(err, deliver(ctx, d, events))
}

func deliver(ctx context.Context, d ports.EventDispatcher, events []domain.EventPayload) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, ev := range events {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
