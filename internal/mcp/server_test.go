// ABOUTME: Tests for the Streamable HTTP transport: sessions, dispatch, auth.

package mcp

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/baselinehq/baseline-mcp/internal/tools"
	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// staticValidator implements TokenValidator for testing.
type staticValidator struct {
	valid map[string]bool
}

func (v *staticValidator) Validate(token string) (bool, error) {
	return v.valid[token], nil
}

func setupTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	if cfg.Registry == nil {
		upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Id":"1"}`))
		}))
		t.Cleanup(upstreamSrv.Close)

		client := upstream.New(upstream.Config{BaseURL: upstreamSrv.URL, Credential: "test"})
		registry, err := tools.NewRegistry(client, slog.Default())
		if err != nil {
			t.Fatalf("building registry: %v", err)
		}
		cfg.Registry = registry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	t.Cleanup(server.Close)

	router := chi.NewRouter()
	server.RegisterRoutes(router)
	return router
}

func postJSONRPC(t *testing.T, handler http.Handler, path, sessionID string, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func initialize(t *testing.T, handler http.Handler, path string) string {
	t.Helper()
	rr := postJSONRPC(t, handler, path, "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("initialize returned %d: %s", rr.Code, rr.Body.String())
	}
	sessionID := rr.Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize did not return a session ID")
	}
	return sessionID
}

func TestInitializeHandshake(t *testing.T) {
	handler := setupTestServer(t, Config{})

	rr := postJSONRPC(t, handler, "/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Mcp-Session-Id") == "" {
		t.Error("expected Mcp-Session-Id header")
	}

	var resp struct {
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Result.ProtocolVersion != latestProtocolVersion {
		t.Errorf("expected protocol %s, got %s", latestProtocolVersion, resp.Result.ProtocolVersion)
	}
	if resp.Result.ServerInfo.Name != serverName {
		t.Errorf("expected server name %s, got %s", serverName, resp.Result.ServerInfo.Name)
	}
}

func TestToolsListReturnsCatalog(t *testing.T) {
	for _, path := range []string{"/mcp", "/stream"} {
		t.Run(path, func(t *testing.T) {
			handler := setupTestServer(t, Config{})
			sessionID := initialize(t, handler, path)

			rr := postJSONRPC(t, handler, path, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}

			var resp struct {
				Result ListToolsResult `json:"result"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(resp.Result.Tools) != 31 {
				t.Errorf("expected 31 tools, got %d", len(resp.Result.Tools))
			}
		})
	}
}

func TestSessionRequired(t *testing.T) {
	handler := setupTestServer(t, Config{})

	t.Run("missing session id", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("unknown session id", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", "nope", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestSessionDelete(t *testing.T) {
	handler := setupTestServer(t, Config{})
	sessionID := initialize(t, handler, "/mcp")

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	// The session is gone afterwards.
	rr = postJSONRPC(t, handler, "/mcp", sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestNotificationsAccepted(t *testing.T) {
	handler := setupTestServer(t, Config{})
	sessionID := initialize(t, handler, "/mcp")

	rr := postJSONRPC(t, handler, "/mcp", sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	handler := setupTestServer(t, Config{})
	sessionID := initialize(t, handler, "/mcp")

	rr := postJSONRPC(t, handler, "/mcp", sessionID, `{"jsonrpc":"2.0","id":3,"method":"resources/list"}`)
	var resp JSONRPCResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != JSONRPCMethodNotFound {
		t.Errorf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestInvalidJSON(t *testing.T) {
	handler := setupTestServer(t, Config{})

	rr := postJSONRPC(t, handler, "/mcp", "", `{not json`)
	var resp JSONRPCResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != JSONRPCParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}

func TestUnsupportedProtocolVersion(t *testing.T) {
	handler := setupTestServer(t, Config{})
	sessionID := initialize(t, handler, "/mcp")

	req := httptest.NewRequest(http.MethodPost, "/mcp",
		bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)))
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Mcp-Protocol-Version", "1999-01-01")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestToolsCall(t *testing.T) {
	handler := setupTestServer(t, Config{})
	sessionID := initialize(t, handler, "/mcp")

	t.Run("success wraps tool result", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", sessionID,
			`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"getLoan","arguments":{"loanId":"1"}}}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp struct {
			Result tools.Result `json:"result"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Result.IsError {
			t.Errorf("unexpected tool error: %s", resp.Result.Content[0].Text)
		}
		if len(resp.Result.Content) != 1 || resp.Result.Content[0].Type != "text" {
			t.Errorf("expected single text content block, got %+v", resp.Result.Content)
		}
	})

	t.Run("validation failures stay in the envelope", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", sessionID,
			`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"getLoan","arguments":{"loanId":""}}}`)

		var resp struct {
			Result tools.Result  `json:"result"`
			Error  *JSONRPCError `json:"error"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Error != nil {
			t.Errorf("validation failure must not be a JSON-RPC error: %+v", resp.Error)
		}
		if !resp.Result.IsError {
			t.Error("expected isError result")
		}
		if !strings.Contains(resp.Result.Content[0].Text, "non-empty string") {
			t.Errorf("unexpected error text: %q", resp.Result.Content[0].Text)
		}
	})

	t.Run("unknown tool is a routing error", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", sessionID,
			`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"nope"}}`)

		var resp JSONRPCResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Error == nil || resp.Error.Code != JSONRPCInvalidParams {
			t.Errorf("expected invalid-params error, got %+v", resp.Error)
		}
	})
}

func TestMethodNotAllowed(t *testing.T) {
	handler := setupTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	handler := setupTestServer(t, Config{
		RequireAuth: true,
		Tokens:      &staticValidator{valid: map[string]bool{"good-token": true}},
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("bearer token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/mcp",
			bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)))
		req.Header.Set("Authorization", "Bearer good-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("query token accepted", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp?token=good-token", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		if rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("bad token rejected", func(t *testing.T) {
		rr := postJSONRPC(t, handler, "/mcp?token=bad", "", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{})
	if err == nil {
		t.Error("expected error when registry is missing")
	}

	upstreamClient := upstream.New(upstream.Config{Credential: "x"})
	registry, err := tools.NewRegistry(upstreamClient, slog.Default())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	_, err = NewServer(Config{Registry: registry, RequireAuth: true})
	if err == nil {
		t.Error("expected error when auth required without validator")
	}
}
