package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/cadence/pkg/domain"
)

// Message is one JSON line written by JSONHandler.
type Message struct {
	Type     string               `json:"type"`
	Snapshot *domain.Snapshot     `json:"snapshot,omitempty"`
	Event    *domain.EventPayload `json:"event,omitempty"`
	Options  []string             `json:"options,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Message types.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageChoice   = "choice"
	MessageSystem   = "system"
)

// JSONHandler implements IOHandler over JSON Lines for programmatic hosts.
// Choices are read as a bare index (`1`), a quoted index (`"1"`) or an
// object (`{"choice": 1}`); indices are zero-based.
type JSONHandler struct {
	Writer io.Writer

	mu    sync.Mutex
	enc   *json.Encoder
	input *linePump
	last  *domain.Snapshot
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer: w,
		enc:    json.NewEncoder(w),
		input:  newLinePump(r),
	}
}

func (h *JSONHandler) emit(msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(msg)
}

// Present writes a snapshot line whenever something visible changed.
func (h *JSONHandler) Present(_ context.Context, snap domain.Snapshot) error {
	if h.last != nil && sameView(*h.last, snap) {
		return nil
	}
	h.last = &snap
	return h.emit(Message{Type: MessageSnapshot, Snapshot: &snap})
}

func sameView(a, b domain.Snapshot) bool {
	return a.State == b.State &&
		a.LineID == b.LineID &&
		a.Progress == b.Progress &&
		a.LineComplete == b.LineComplete &&
		len(b.PendingEvents) == 0 &&
		len(b.Diagnostics) == 0
}

func (h *JSONHandler) Choose(ctx context.Context, options []string) (int, error) {
	if err := h.emit(Message{Type: MessageChoice, Options: options}); err != nil {
		return 0, err
	}
	line, err := h.input.Next(ctx)
	if err != nil {
		return 0, err
	}
	clean, err := CleanInput(line)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return ParseChoice(clean)
}

func (h *JSONHandler) Notify(_ context.Context, ev domain.EventPayload) error {
	return h.emit(Message{Type: MessageEvent, Event: &ev})
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.emit(Message{Type: MessageSystem, Message: msg})
}
