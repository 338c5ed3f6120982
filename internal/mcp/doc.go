// Package mcp implements the Model Context Protocol server for the
// Baseline gateway.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration.
// This package exposes the Baseline tool catalog to external AI clients
// (Claude Desktop, other LLMs, or custom applications) over two
// transports that share one JSON-RPC dispatch path.
//
// # Transports
//
// Streamable HTTP (spec 2025-03-26 and later): a single endpoint at
// /mcp (alias /stream) accepting POST for JSON-RPC messages and DELETE
// for session teardown. The initialize call creates a session and
// returns its ID in the Mcp-Session-Id header; all subsequent calls
// must carry that header.
//
// SSE (legacy 2024-11-05): GET /sse (alias /events) opens a long-lived
// text/event-stream. The first frame is an "endpoint" event naming the
// per-session message URL; clients POST JSON-RPC requests there and
// receive 202, with responses delivered asynchronously as "message"
// events on the stream, correlated by JSON-RPC id.
//
// # Methods
//
//   - initialize: protocol/capability handshake
//   - tools/list: returns the full tool catalog with schemas and
//     annotations
//   - tools/call: invokes one tool; failures are normalized into the
//     result envelope with isError set, never JSON-RPC faults
//
// Unknown methods return -32601; unknown tools return -32602.
//
// # Sessions
//
// Sessions are held in memory and swept after an idle timeout. Closing
// the SSE stream or DELETEing the streamable endpoint tears the session
// down immediately.
//
// # Authentication
//
// When require_auth is enabled, requests must carry a bearer token in
// the Authorization header or a token query parameter. Tokens are
// checked against the SQLite access-token store first, then against the
// HS256 JWT verifier when configured.
package mcp
