package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
)

// StreamMessage is one server-sent event of a session stream.
type StreamMessage struct {
	Type  string               `json:"type"`
	Event *domain.EventPayload `json:"event,omitempty"`
	Diff  *domain.VariableDiff `json:"diff,omitempty"`
}

// StreamManager fans session updates out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // session ID -> channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for one session. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of subscribers of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends msg to every subscriber of the session. Slow subscribers
// drop messages instead of blocking the session.
func (sm *StreamManager) Broadcast(sessionID string, msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		sm.logger.Error("failed to encode stream message", "err", err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- string(data):
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// broadcaster publishes dispatched events on the session stream before
// handing them to the host dispatcher.
type broadcaster struct {
	streams   *StreamManager
	sessionID string
	next      ports.EventDispatcher
}

func (b broadcaster) Dispatch(ctx context.Context, ev domain.EventPayload) error {
	b.streams.Broadcast(b.sessionID, StreamMessage{Type: "event", Event: &ev})
	if b.next == nil {
		return nil
	}
	return b.next.Dispatch(ctx, ev)
}

// subscribeEvents handles GET /events. With a session_id it streams that
// session's events and variable diffs, otherwise program reloads.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	sessionID := r.URL.Query().Get("session_id")

	var (
		source <-chan string
		cancel = func() {}
	)
	if sessionID == "" {
		events, err := s.sessions.Engine().Watch(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("watch failed: %w", err))
			return
		}
		source = events
	} else {
		source, cancel = s.streams.Subscribe(sessionID)
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client connected", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-source:
			if !ok {
				return
			}
			if sessionID == "" {
				fmt.Fprintf(w, "event: reload\ndata: %s\n\n", msg)
			} else {
				fmt.Fprintf(w, "data: %s\n\n", msg)
			}
			flusher.Flush()
		}
	}
}
