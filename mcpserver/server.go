package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/poiesic/studyforge/core"
	"github.com/poiesic/studyforge/digest"
	"github.com/poiesic/studyforge/query"
)

// Backend is what the tools call into. *studyforge.Service implements it.
type Backend interface {
	ListTopics(ctx context.Context, limit, offset int) ([]*core.Topic, error)
	Topic(ctx context.Context, id string) (*core.Topic, error)
	ListContent(ctx context.Context, topicID string, limit, offset int) ([]*core.ContentItem, error)
	Ask(ctx context.Context, topicID, question, mode string) (*query.Envelope, error)
	Submit(ctx context.Context, kind core.TaskKind, topicID string, payload core.Payload) (string, error)
	Task(ctx context.Context, id string) (*core.Task, error)
	Summary(ctx context.Context, topicID string, refresh bool) (*digest.Digest, error)
}

// Server serves the study tools over MCP.
type Server struct {
	backend Backend
	server  *mcp.Server
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server and registers its tools.
func New(backend Backend, version string, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	s := &Server{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mcp")

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "studyforge",
		Version: version,
	}, nil)
	s.server.AddReceivingMiddleware(LoggingMiddleware(s.logger))
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves over stdio until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves streamable HTTP on addr until ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("error shutting down http server", "err", err)
		}
	}()

	s.logger.Info("starting MCP server", "transport", "http", "addr", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
