package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
	"github.com/aretw0/cadence/pkg/runner"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ProgramsURI lists the programs the engine can start.
const ProgramsURI = "cadence://programs"

// Server exposes a session manager as an MCP server, so agents can drive
// dialogues through tools.
type Server struct {
	sessions   *session.Manager
	dispatcher ports.EventDispatcher
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithDispatcher forwards fired events to d.
func WithDispatcher(d ports.EventDispatcher) Option {
	return func(s *Server) {
		s.dispatcher = d
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		sessions:  mgr,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("cadence-mcp", strings.TrimSpace(cadence.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type startArgs struct {
	Program   string                  `json:"program"`
	SessionID string                  `json:"session_id,omitempty"`
	Variables domain.VariableSnapshot `json:"variables,omitempty"`
}

type stepArgs struct {
	SessionID string `json:"session_id"`
	Progress  int    `json:"progress"`
}

type choiceArgs struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// VariablesResponse is the output of get_variables.
type VariablesResponse struct {
	SessionID string                  `json:"session_id"`
	Variables domain.VariableSnapshot `json:"variables"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_dialogue",
		mcp.WithDescription("Start a dialogue session over a named program. Returns the session ID and its idle snapshot."),
		mcp.WithString("program", mcp.Required(), mcp.Description("Program name")),
		mcp.WithString("session_id", mcp.Description("Session ID to use (optional, random otherwise)")),
		mcp.WithObject("variables", mcp.Description(`Initial variables, e.g. {"gold": {"type": "number", "value": 3}}`)),
		mcp.WithOutputSchema[runner.StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("step",
		mcp.WithDescription("Push the progress index of the current line. Events that fire are returned in pending_events."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("progress", mcp.Required(), mcp.Min(0), mcp.Description("Progress index (graphemes revealed or milliseconds)")),
		mcp.WithOutputSchema[runner.StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleStep))

	s.mcpServer.AddTool(mcp.NewTool("submit_choice",
		mcp.WithDescription("Select an option of the pending choice (zero-based) and enter the chosen branch."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Option index")),
		mcp.WithOutputSchema[runner.StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleChoice))

	s.mcpServer.AddTool(mcp.NewTool("reset_line",
		mcp.WithDescription("Skip the current line, firing every event still pending on it in order."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[runner.StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("get_variables",
		mcp.WithDescription("Get the typed variable snapshot of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[VariablesResponse](),
	), mcp.NewStructuredToolHandler(s.handleVariables))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args startArgs) (runner.StepResponse, error) {
	var opts []cadence.SessionOption
	if args.SessionID != "" {
		opts = append(opts, cadence.WithSessionID(args.SessionID))
	}
	if args.Variables != nil {
		opts = append(opts, cadence.WithInitialVariables(args.Variables))
	}
	sess, err := s.sessions.Create(ctx, args.Program, opts...)
	if err != nil {
		return runner.StepResponse{}, err
	}
	snap, err := s.sessions.View(ctx, sess.ID())
	if err != nil {
		return runner.StepResponse{}, err
	}
	return runner.StepResponse{SessionID: sess.ID(), Snapshot: snap, Terminal: snap.State.Terminal()}, nil
}

func (s *Server) handleStep(ctx context.Context, _ mcp.CallToolRequest, args stepArgs) (runner.StepResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *cadence.Session) (*runner.StepResponse, error) {
		return runner.StepAndDispatch(ctx, sess, args.Progress, s.dispatcher)
	})
}

func (s *Server) handleChoice(ctx context.Context, _ mcp.CallToolRequest, args choiceArgs) (runner.StepResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *cadence.Session) (*runner.StepResponse, error) {
		return runner.ChooseAndStep(ctx, sess, args.Index, s.dispatcher)
	})
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (runner.StepResponse, error) {
	return s.mutate(ctx, args.SessionID, func(sess *cadence.Session) (*runner.StepResponse, error) {
		return runner.ResetAndReport(ctx, sess, s.dispatcher)
	})
}

func (s *Server) handleVariables(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (VariablesResponse, error) {
	out := VariablesResponse{SessionID: args.SessionID}
	err := s.sessions.Do(ctx, args.SessionID, func(sess *cadence.Session) error {
		out.Variables = sess.SaveVariables()
		return nil
	})
	return out, err
}

func (s *Server) mutate(ctx context.Context, id string, fn func(*cadence.Session) (*runner.StepResponse, error)) (runner.StepResponse, error) {
	if id == "" {
		return runner.StepResponse{}, errors.New("session_id is required")
	}
	var resp *runner.StepResponse
	err := s.sessions.Do(ctx, id, func(sess *cadence.Session) error {
		var err error
		resp, err = fn(sess)
		return err
	})
	if err != nil {
		s.logger.Debug("MCP tool failed", "session_id", id, "err", err)
		return runner.StepResponse{}, err
	}
	return *resp, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ProgramsURI, "Available programs",
		mcp.WithMIMEType("application/json"),
	), func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.sessions.Engine().Programs()
		if err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		data, err := json.Marshal(names)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ProgramsURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
