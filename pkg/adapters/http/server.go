package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
	"github.com/aretw0/cadence/pkg/runner"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a session manager over HTTP.
type Server struct {
	sessions   *session.Manager
	dispatcher ports.EventDispatcher
	streams    *StreamManager
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	apiVersion string
}

// Option configures the Server.
type Option func(*Server)

// WithDispatcher forwards fired events to d in addition to SSE subscribers.
func WithDispatcher(d ports.EventDispatcher) Option {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. Requests to documented paths are
// validated against the embedded OpenAPI document before reaching a handler.
func NewHandler(mgr *session.Manager, opts ...Option) (http.Handler, error) {
	s := &Server{
		sessions: mgr,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)

	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	s.apiVersion = doc.Info.Version
	validate, err := validator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer, enableCORS, validate)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(RawSpec())
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/programs", s.listPrograms)
	r.Get("/events", s.subscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/step", s.stepSession)
			r.Post("/choice", s.submitChoice)
			r.Post("/reset", s.resetLine)
			r.Get("/variables", s.getVariables)
			r.Put("/variables", s.putVariables)
		})
	})
	return r, nil
}

// Streams returns the SSE fan-out, for hosts that publish their own messages.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "cadence-http",
		"version":     strings.TrimSpace(cadence.Version),
		"api_version": s.apiVersion,
	})
}

func (s *Server) listPrograms(w http.ResponseWriter, _ *http.Request) {
	names, err := s.sessions.Engine().Programs()
	if err != nil {
		s.fail(w, "list programs", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.fail(w, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

type createRequest struct {
	Program   string                  `json:"program"`
	SessionID string                  `json:"session_id,omitempty"`
	Variables domain.VariableSnapshot `json:"variables,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var opts []cadence.SessionOption
	if body.SessionID != "" {
		opts = append(opts, cadence.WithSessionID(body.SessionID))
	}
	if body.Variables != nil {
		opts = append(opts, cadence.WithInitialVariables(body.Variables))
	}

	sess, err := s.sessions.Create(r.Context(), body.Program, opts...)
	if err != nil {
		s.fail(w, "create session", err)
		return
	}
	resp, err := s.view(r.Context(), sess.ID())
	if err != nil {
		s.fail(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	resp, err := s.view(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stepSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Progress int `json:"progress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.mutate(w, r, "step", func(ctx context.Context, sess *cadence.Session, d ports.EventDispatcher) (*runner.StepResponse, error) {
		return runner.StepAndDispatch(ctx, sess, body.Progress, d)
	})
}

func (s *Server) submitChoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.mutate(w, r, "choice", func(ctx context.Context, sess *cadence.Session, d ports.EventDispatcher) (*runner.StepResponse, error) {
		return runner.ChooseAndStep(ctx, sess, body.Index, d)
	})
}

func (s *Server) resetLine(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "reset", func(ctx context.Context, sess *cadence.Session, d ports.EventDispatcher) (*runner.StepResponse, error) {
		return runner.ResetAndReport(ctx, sess, d)
	})
}

func (s *Server) getVariables(w http.ResponseWriter, r *http.Request) {
	var vars domain.VariableSnapshot
	err := s.sessions.Do(r.Context(), chi.URLParam(r, "id"), func(sess *cadence.Session) error {
		vars = sess.SaveVariables()
		return nil
	})
	if err != nil {
		s.fail(w, "get variables", err)
		return
	}
	writeJSON(w, http.StatusOK, vars)
}

func (s *Server) putVariables(w http.ResponseWriter, r *http.Request) {
	var snap domain.VariableSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid variables: %w", err))
		return
	}

	id := chi.URLParam(r, "id")
	err := s.sessions.Do(r.Context(), id, func(sess *cadence.Session) error {
		before := sess.SaveVariables()
		if err := sess.LoadVariables(snap); err != nil {
			return err
		}
		s.publishDiff(id, before, sess.SaveVariables())
		return nil
	})
	if err != nil {
		s.fail(w, "put variables", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mutation func(ctx context.Context, sess *cadence.Session, d ports.EventDispatcher) (*runner.StepResponse, error)

// mutate runs fn under the session lock, streams fired events and the
// variable diff, and writes the response. A failed call still returns the
// snapshot alongside the error.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, fn mutation) {
	id := chi.URLParam(r, "id")
	var resp *runner.StepResponse
	err := s.sessions.Do(r.Context(), id, func(sess *cadence.Session) error {
		before := sess.SaveVariables()
		var err error
		resp, err = fn(r.Context(), sess, broadcaster{streams: s.streams, sessionID: id, next: s.dispatcher})
		s.publishDiff(id, before, sess.SaveVariables())
		return err
	})
	if err != nil {
		s.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) publishDiff(id string, before, after domain.VariableSnapshot) {
	if diff := domain.Diff(before, after); diff != nil {
		s.streams.Broadcast(id, StreamMessage{Type: "variables", Diff: diff})
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "err", err)
	} else {
		s.logger.Debug("request rejected", "op", op, "status", status, "err", err)
	}
	writeError(w, status, err)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrProgramNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidChoice), errors.Is(err, domain.ErrTypeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAwaitingChoice), errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, session.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProgramReloaded):
		return http.StatusGone
	case errors.Is(err, domain.ErrScriptCorrupt):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// view reads a session snapshot under its lock; sessions are not safe for
// concurrent use.
func (s *Server) view(ctx context.Context, id string) (*runner.StepResponse, error) {
	snap, err := s.sessions.View(ctx, id)
	if err != nil {
		return nil, err
	}
	return &runner.StepResponse{SessionID: id, Snapshot: snap, Terminal: snap.State.Terminal()}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
