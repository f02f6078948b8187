package server

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ironsheep/image-editor-mcp/internal/editor"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// Name is the implementation name reported during the MCP handshake.
const Name = "image-editor-mcp"

// Server exposes editor sessions as MCP tools.
type Server struct {
	engine *editor.Engine
	logger zerolog.Logger
	mcp    *mcp.Server

	mu       sync.RWMutex
	sessions map[string]*editor.Session
}

// New creates a server backed by engine and registers every tool. The engine
// must already be initialized for tools that create sessions to succeed.
func New(engine *editor.Engine, logger zerolog.Logger, version string) *Server {
	s := &Server{
		engine:   engine,
		logger:   logger,
		mcp:      mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil),
		sessions: make(map[string]*editor.Session),
	}
	for _, tool := range GetToolDefinitions() {
		s.mcp.AddTool(tool, s.handleToolCall)
	}
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves MCP requests on transport until ctx is canceled or the client
// disconnects. Open sessions are closed on return.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	defer s.closeAll()
	s.logger.Info().Int("tools", len(GetToolDefinitions())).Msg("MCP server starting")
	return s.mcp.Run(ctx, transport)
}

// handleToolCall adapts a tool invocation to executeTool.
//
// Successful results are returned as a single text content holding the JSON
// result, unless the handler produced a *mcp.CallToolResult itself (images).
// Failures are reported as tool errors rather than protocol errors.
func (s *Server) handleToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.Params.Name
	result, err := s.executeTool(ctx, name, req.Params.Arguments)
	if err != nil {
		s.logger.Debug().Err(err).Str("tool", name).Str("kind", string(apperrors.KindOf(err))).Msg("Tool failed")
		var res mcp.CallToolResult
		res.SetError(err)
		return &res, nil
	}
	if res, ok := result.(*mcp.CallToolResult); ok {
		return res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: mustMarshalJSON(result)}},
	}, nil
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// openSession creates and registers a new editor session, enforcing the
// configured session cap.
func (s *Server) openSession() (*editor.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit := s.engine.Config().MaxSessions; limit > 0 && len(s.sessions) >= limit {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.open_session",
			"session limit of %d reached; close a session first", limit)
	}
	sess, err := s.engine.CreateSession()
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("session", sess.ID()).Logger()
	sess.Subscribe(func(c editor.Change) {
		logger.Debug().
			Interface("fields", c.Fields).
			Str("lifecycle", string(c.Lifecycle)).
			Uint64("version", c.Version).
			Msg("Session changed")
	})
	s.sessions[sess.ID()] = sess
	return sess, nil
}

// session looks up a registered session.
func (s *Server) session(id string) (*editor.Session, error) {
	if id == "" {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.session", "session_id is required")
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.session", "unknown session %q", id)
	}
	return sess, nil
}

// closeSession closes and unregisters a session.
func (s *Server) closeSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return apperrors.Errorf(apperrors.KindInvalidArgument, "server.close_session", "unknown session %q", id)
	}
	sess.Close()
	return nil
}

// SessionIDs returns the ids of all open sessions in sorted order.
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*editor.Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
