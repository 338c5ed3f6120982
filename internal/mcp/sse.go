// ABOUTME: Legacy SSE transport: long-lived event stream plus a per-session
// ABOUTME: message endpoint; responses are delivered back over the stream.

package mcp

import (
	"fmt"
	"net/http"
	"strings"
)

// handleStream opens the server-to-client event stream. The first frame
// delivered is an "endpoint" event carrying the session's message URL;
// all responses arrive as "message" events on this stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.sessions.create(latestProtocolVersion, true)
	defer s.sessions.delete(sess.id)

	s.logger.Info("MCP session created",
		"session_id", sess.id,
		"transport", "sse",
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The message endpoint mirrors the alias the stream was opened on.
	endpoint := fmt.Sprintf("%s/message?sessionId=%s", strings.TrimRight(r.URL.Path, "/"), sess.id)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sess.id)
			return
		case msg, ok := <-sess.events:
			if !ok {
				// Session expired or server shutting down.
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleStreamMessage accepts JSON-RPC requests POSTed to a session's
// message endpoint. The HTTP response is always 202 Accepted; the
// JSON-RPC response is delivered asynchronously over the stream,
// correlated by request ID.
func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing sessionId", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	req, rpcErr := decodeRequest(r.Body)
	if rpcErr != nil {
		s.sendStreamResponse(sess, &JSONRPCResponse{JSONRPC: "2.0", Error: rpcErr})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// Notifications get no response on either channel.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.sendStreamResponse(sess, s.dispatch(r, req))
	w.WriteHeader(http.StatusAccepted)
}

// sendStreamResponse queues a response for SSE delivery.
func (s *Server) sendStreamResponse(sess *session, resp *JSONRPCResponse) {
	data, err := encodeResponse(resp)
	if err != nil {
		s.logger.Warn("failed to encode SSE response", "error", err)
		return
	}
	if !sess.send(data) {
		s.logger.Warn("dropped SSE response", "session_id", sess.id)
	}
}
