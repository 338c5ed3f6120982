// ABOUTME: MCP server exposing the Baseline tool catalog to external agents.
// ABOUTME: Implements the Streamable HTTP transport with session management.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baselinehq/baseline-mcp/internal/tools"
)

// Supported MCP protocol versions.
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses.
const latestProtocolVersion = "2025-03-26"

// serverName and serverVersion identify this gateway in the handshake.
const (
	serverName    = "baseline-mcp"
	serverVersion = "1.0.0"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []*tools.Descriptor `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TokenValidator reports whether an access token is valid.
type TokenValidator interface {
	Validate(token string) (bool, error)
}

// Verifier validates a signed bearer token and returns its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// Config holds configuration for the MCP server.
type Config struct {
	Registry    *tools.Registry
	Logger      *slog.Logger
	Tokens      TokenValidator // access tokens from the token store; optional
	Verifier    Verifier       // JWT bearer verification; optional
	RequireAuth bool           // when true, reject requests without a valid token
	IdleTimeout time.Duration  // session idle expiry; defaults to 30m
}

// Server exposes the tool catalog over the SSE and Streamable HTTP
// transports. Both ultimately dispatch through the same registry.
type Server struct {
	registry    *tools.Registry
	logger      *slog.Logger
	tokens      TokenValidator
	verifier    Verifier
	requireAuth bool
	sessions    *sessionStore
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.RequireAuth && cfg.Tokens == nil && cfg.Verifier == nil {
		return nil, errors.New("token validator or verifier required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		registry:    cfg.Registry,
		logger:      logger,
		tokens:      cfg.Tokens,
		verifier:    cfg.Verifier,
		requireAuth: cfg.RequireAuth,
		sessions:    newSessionStore(cfg.IdleTimeout),
	}, nil
}

// Close tears down all sessions and stops the idle sweeper.
func (s *Server) Close() {
	s.sessions.close()
}

// RegisterRoutes mounts both transports on the router. The event-stream
// transport is reachable at /sse and /events, the Streamable HTTP
// transport at /mcp and /stream.
func (s *Server) RegisterRoutes(r chi.Router) {
	for _, prefix := range []string{"/sse", "/events"} {
		r.Get(prefix, s.handleStream)
		r.Post(prefix+"/message", s.handleStreamMessage)
	}
	for _, path := range []string{"/mcp", "/stream"} {
		r.HandleFunc(path, s.handleStreamable)
	}
}

// handleStreamable is the single Streamable HTTP endpoint supporting
// POST and DELETE. Server-initiated GET streams are not supported.
func (s *Server) handleStreamable(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session per the Streamable HTTP spec.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	if !s.sessions.delete(sessionID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	req, rpcErr := decodeRequest(r.Body)
	if rpcErr != nil {
		s.writeResponse(w, &JSONRPCResponse{JSONRPC: "2.0", Error: rpcErr})
		return
	}

	isInitialize := req.Method == "initialize"
	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	// The header is not required on initialize; the default assumption
	// when missing is 2025-03-26.
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		if _, ok := s.sessions.get(sessionID); !ok {
			// Session expired or invalid; client must re-initialize.
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	if isNotification {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize {
		sess := s.sessions.create(latestProtocolVersion, false)
		s.logger.Info("MCP session created",
			"session_id", sess.id,
			"transport", "streamable",
		)
		w.Header().Set("Mcp-Session-Id", sess.id)
	}

	s.writeResponse(w, s.dispatch(r, req))
}

// dispatch routes one JSON-RPC request to the matching handler. Shared
// by both transports.
func (s *Server) dispatch(r *http.Request, req *JSONRPCRequest) *JSONRPCResponse {
	s.logger.Debug("MCP request", "method", req.Method)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(r, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

// handleInitialize answers the MCP handshake.
func (s *Server) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	result := map[string]any{
		"protocolVersion": latestProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// handleToolsList returns the full tool catalog.
func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	descriptors := s.registry.Descriptors()
	s.logger.Debug("tools/list", "count", len(descriptors))
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ListToolsResult{Tools: descriptors},
	}
}

// handleToolsCall invokes a tool. Handler failures are already
// normalized into the result envelope; only routing problems surface
// as JSON-RPC errors.
func (s *Server) handleToolsCall(r *http.Request, req *JSONRPCRequest) *JSONRPCResponse {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}

	tool := s.registry.Get(params.Name)
	if tool == nil {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool not found")
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	result := tool.Handler(r.Context(), args)

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"is_error", result.IsError,
	)
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// authorize checks the request's bearer credentials when auth is
// required. Tokens may arrive in the Authorization header or a token
// query parameter.
func (s *Server) authorize(r *http.Request) bool {
	if !s.requireAuth {
		return true
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		return false
	}

	if s.tokens != nil {
		ok, err := s.tokens.Validate(token)
		if err != nil {
			s.logger.Warn("token validation failed", "error", err)
		} else if ok {
			return true
		}
	}
	if s.verifier != nil {
		if _, err := s.verifier.Verify(token); err == nil {
			return true
		}
	}
	return false
}

// decodeRequest reads and validates one JSON-RPC request body.
func decodeRequest(body io.Reader) (*JSONRPCRequest, *JSONRPCError) {
	data, err := io.ReadAll(io.LimitReader(body, MaxRequestBodySize+1))
	if err != nil {
		return nil, &JSONRPCError{Code: JSONRPCParseError, Message: "failed to read request body"}
	}
	if int64(len(data)) > MaxRequestBodySize {
		return nil, &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "request body too large"}
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &JSONRPCError{Code: JSONRPCParseError, Message: "invalid JSON"}
	}
	if req.JSONRPC != "2.0" {
		return nil, &JSONRPCError{Code: JSONRPCInvalidRequest, Message: "invalid JSON-RPC version"}
	}
	return &req, nil
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

// encodeResponse marshals a response for SSE framing.
func encodeResponse(resp *JSONRPCResponse) ([]byte, error) {
	return json.Marshal(resp)
}

// writeResponse sends a JSON-RPC response over plain HTTP.
func (s *Server) writeResponse(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
