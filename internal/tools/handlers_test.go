// ABOUTME: Handler tests driven through a fake upstream API.
// ABOUTME: Covers validation failures, path derivation, and result shaping.

package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeUpstream records the last request and serves canned responses per path.
type fakeUpstream struct {
	t          *testing.T
	responses  map[string]string
	lastMethod string
	lastPath   string
	lastBody   []byte
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.lastMethod = r.Method
		f.lastPath = r.URL.RequestURI()
		f.lastBody, _ = io.ReadAll(r.Body)
		if resp, ok := f.responses[r.URL.Path]; ok {
			w.Write([]byte(resp))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}
}

func setupHandlers(t *testing.T, responses map[string]string) (*Registry, *fakeUpstream) {
	t.Helper()
	fake := &fakeUpstream{t: t, responses: responses}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := newTestClient(srv.URL)
	registry, err := NewRegistry(client, slog.Default())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return registry, fake
}

func call(t *testing.T, registry *Registry, name string, args map[string]any) *Result {
	t.Helper()
	tool := registry.Get(name)
	if tool == nil {
		t.Fatalf("tool %s not registered", name)
	}
	result := tool.Handler(context.Background(), args)
	if result == nil {
		t.Fatalf("tool %s returned nil result", name)
	}
	if len(result.Content) != 1 {
		t.Fatalf("tool %s returned %d content blocks, want 1", name, len(result.Content))
	}
	return result
}

func resultText(r *Result) string { return r.Content[0].Text }

func TestIdentifierToolsRejectEmptyStrings(t *testing.T) {
	registry, _ := setupHandlers(t, nil)

	cases := []struct {
		tool  string
		field string
	}{
		{"getLoan", "loanId"},
		{"getLoanLedger", "loanId"},
		{"getTask", "taskId"},
		{"deleteTask", "taskId"},
		{"getBorrower", "borrowerId"},
		{"deleteVendor", "vendorId"},
		{"getInvestor", "investorId"},
	}

	for _, tc := range cases {
		for _, bad := range []any{"", "   ", 42} {
			result := call(t, registry, tc.tool, map[string]any{tc.field: bad})
			if !result.IsError {
				t.Errorf("%s(%v) should fail", tc.tool, bad)
			}
			if !strings.Contains(resultText(result), "non-empty string") {
				t.Errorf("%s(%v) error should mention non-empty string, got %q", tc.tool, bad, resultText(result))
			}
		}
	}
}

func TestIdentifierToolsRejectMissingArgument(t *testing.T) {
	registry, _ := setupHandlers(t, nil)

	result := call(t, registry, "getLoan", map[string]any{})
	if !result.IsError {
		t.Fatal("getLoan without loanId should fail")
	}
	if !strings.Contains(resultText(result), "Missing required argument: loanId") {
		t.Errorf("unexpected error text: %q", resultText(result))
	}
}

func TestObjectToolsRejectNonObjects(t *testing.T) {
	registry, _ := setupHandlers(t, nil)

	cases := []struct {
		tool string
		args map[string]any
	}{
		{"updateLoan", map[string]any{"loanId": "1", "updates": "nope"}},
		{"updateTask", map[string]any{"taskId": "1", "updates": 7.0}},
		{"createLoan", map[string]any{"loanData": "nope"}},
		{"createBorrower", map[string]any{"borrowerData": 1.0}},
		{"updateInvestor", map[string]any{"investorId": "1", "updates": "x"}},
	}

	for _, tc := range cases {
		result := call(t, registry, tc.tool, tc.args)
		if !result.IsError {
			t.Errorf("%s should fail with non-object payload", tc.tool)
		}
		if !strings.Contains(resultText(result), "must be an object") {
			t.Errorf("%s error should mention 'must be an object', got %q", tc.tool, resultText(result))
		}
	}
}

func TestGetLoanPath(t *testing.T) {
	registry, fake := setupHandlers(t, map[string]string{
		"/loan/L-42": `{"Id":"L-42","status":"servicing"}`,
	})

	result := call(t, registry, "getLoan", map[string]any{"loanId": "L-42"})
	if result.IsError {
		t.Fatalf("getLoan failed: %s", resultText(result))
	}
	if fake.lastMethod != http.MethodGet || fake.lastPath != "/loan/L-42" {
		t.Errorf("expected GET /loan/L-42, got %s %s", fake.lastMethod, fake.lastPath)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resultText(result)), &parsed); err != nil {
		t.Fatalf("result text is not valid JSON: %v", err)
	}
	if parsed["Id"] != "L-42" {
		t.Errorf("expected upstream fields echoed, got %v", parsed)
	}
}

func TestListLoansComputesTotalCount(t *testing.T) {
	t.Run("loans field preferred", func(t *testing.T) {
		registry, _ := setupHandlers(t, map[string]string{
			"/loan": `{"loans":[{"Id":"1"},{"Id":"2"},{"Id":"3"}]}`,
		})
		result := call(t, registry, "listLoans", map[string]any{})
		if result.IsError {
			t.Fatalf("listLoans failed: %s", resultText(result))
		}

		var parsed struct {
			Loans      []any `json:"loans"`
			TotalCount int   `json:"totalCount"`
		}
		if err := json.Unmarshal([]byte(resultText(result)), &parsed); err != nil {
			t.Fatalf("parsing result: %v", err)
		}
		if parsed.TotalCount != 3 || len(parsed.Loans) != 3 {
			t.Errorf("expected 3 loans with totalCount 3, got %+v", parsed)
		}
	})

	t.Run("bare array body", func(t *testing.T) {
		registry, _ := setupHandlers(t, map[string]string{
			"/loan": `[{"Id":"1"},{"Id":"2"}]`,
		})
		result := call(t, registry, "listLoans", map[string]any{})
		if result.IsError {
			t.Fatalf("listLoans failed: %s", resultText(result))
		}

		var parsed struct {
			TotalCount int `json:"totalCount"`
		}
		if err := json.Unmarshal([]byte(resultText(result)), &parsed); err != nil {
			t.Fatalf("parsing result: %v", err)
		}
		if parsed.TotalCount != 2 {
			t.Errorf("expected totalCount 2, got %d", parsed.TotalCount)
		}
	})
}

func TestListTasksPageHandling(t *testing.T) {
	registry, fake := setupHandlers(t, nil)

	t.Run("negative page rejected", func(t *testing.T) {
		result := call(t, registry, "listTasks", map[string]any{"page": -1.0})
		if !result.IsError {
			t.Fatal("negative page should fail")
		}
		if !strings.Contains(resultText(result), "non-negative number") {
			t.Errorf("error should mention non-negative number, got %q", resultText(result))
		}
	})

	t.Run("valid page appended", func(t *testing.T) {
		result := call(t, registry, "listTasks", map[string]any{"page": 2.0})
		if result.IsError {
			t.Fatalf("listTasks failed: %s", resultText(result))
		}
		if fake.lastPath != "/task?page=2" {
			t.Errorf("expected /task?page=2, got %s", fake.lastPath)
		}
	})

	t.Run("no page omits query", func(t *testing.T) {
		result := call(t, registry, "listTasks", map[string]any{})
		if result.IsError {
			t.Fatalf("listTasks failed: %s", resultText(result))
		}
		if fake.lastPath != "/task" {
			t.Errorf("expected /task, got %s", fake.lastPath)
		}
	})
}

func TestCreateTaskPassThrough(t *testing.T) {
	registry, fake := setupHandlers(t, map[string]string{
		"/task": `{"Id":"T-1","Name":"T","Status":"To Do"}`,
	})

	result := call(t, registry, "createTask", map[string]any{
		"Name":     "T",
		"Status":   "To Do",
		"Priority": 1.0,
	})
	if result.IsError {
		t.Fatalf("createTask failed: %s", resultText(result))
	}

	var sent map[string]any
	if err := json.Unmarshal(fake.lastBody, &sent); err != nil {
		t.Fatalf("parsing forwarded body: %v", err)
	}
	if sent["Name"] != "T" || sent["Status"] != "To Do" || sent["Priority"] != 1.0 {
		t.Errorf("expected all fields forwarded, got %v", sent)
	}

	var echoed map[string]any
	if err := json.Unmarshal([]byte(resultText(result)), &echoed); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if echoed["Id"] != "T-1" {
		t.Errorf("expected upstream fields echoed verbatim, got %v", echoed)
	}
}

func TestCreateTaskRequiresName(t *testing.T) {
	registry, _ := setupHandlers(t, nil)

	result := call(t, registry, "createTask", map[string]any{"Status": "To Do"})
	if !result.IsError {
		t.Fatal("createTask without Name should fail")
	}
	if !strings.Contains(resultText(result), "Missing required argument: Name") {
		t.Errorf("unexpected error text: %q", resultText(result))
	}
}

func TestUpdateLoanVerbIsConfigurable(t *testing.T) {
	fake := &fakeUpstream{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := newTestClientWithMethod(srv.URL, http.MethodPut)
	registry, err := NewRegistry(client, slog.Default())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	result := call(t, registry, "updateLoan", map[string]any{
		"loanId":  "L-1",
		"updates": map[string]any{"status": "approved"},
	})
	if result.IsError {
		t.Fatalf("updateLoan failed: %s", resultText(result))
	}
	if fake.lastMethod != http.MethodPut {
		t.Errorf("expected configured PUT verb, got %s", fake.lastMethod)
	}
}

func TestConnectDisconnectPaths(t *testing.T) {
	registry, fake := setupHandlers(t, nil)

	result := call(t, registry, "connectBorrower", map[string]any{
		"borrowerId": "B-1",
		"loanId":     "L-2",
	})
	if result.IsError {
		t.Fatalf("connectBorrower failed: %s", resultText(result))
	}
	if fake.lastMethod != http.MethodPut || fake.lastPath != "/borrower/B-1/connect/L-2" {
		t.Errorf("expected PUT /borrower/B-1/connect/L-2, got %s %s", fake.lastMethod, fake.lastPath)
	}
	if len(fake.lastBody) != 0 {
		t.Errorf("connect should send an empty body, got %q", fake.lastBody)
	}

	result = call(t, registry, "disconnectVendor", map[string]any{
		"vendorId": "V-9",
		"loanId":   "L-2",
	})
	if result.IsError {
		t.Fatalf("disconnectVendor failed: %s", resultText(result))
	}
	if fake.lastMethod != http.MethodDelete || fake.lastPath != "/vendor/V-9/connect/L-2" {
		t.Errorf("expected DELETE /vendor/V-9/connect/L-2, got %s %s", fake.lastMethod, fake.lastPath)
	}
}

func TestUpstreamErrorsAreNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}))
	t.Cleanup(srv.Close)

	registry, err := NewRegistry(newTestClient(srv.URL), slog.Default())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	result := call(t, registry, "getLoan", map[string]any{"loanId": "missing"})
	if !result.IsError {
		t.Fatal("upstream 404 should surface as isError")
	}
	text := resultText(result)
	if !strings.Contains(text, "404") || !strings.Contains(text, "not found") {
		t.Errorf("error should carry status and body, got %q", text)
	}
	if !strings.HasPrefix(text, "Error retrieving loan:") {
		t.Errorf("error should be prefixed with the attempted action, got %q", text)
	}
}

func TestMissingCredentialIsNormalized(t *testing.T) {
	registry, err := NewRegistry(newTestClientNoCredential(), slog.Default())
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	result := call(t, registry, "listLoans", map[string]any{})
	if !result.IsError {
		t.Fatal("missing credential should surface as isError")
	}
	if !strings.Contains(resultText(result), "credential") {
		t.Errorf("error should mention the credential, got %q", resultText(result))
	}
}

func TestSanitizationAppliesToPayloads(t *testing.T) {
	registry, fake := setupHandlers(t, nil)

	result := call(t, registry, "createLoan", map[string]any{
		"loanData": map[string]any{"name": "<script>x</script>"},
	})
	if result.IsError {
		t.Fatalf("createLoan failed: %s", resultText(result))
	}

	var sent map[string]any
	if err := json.Unmarshal(fake.lastBody, &sent); err != nil {
		t.Fatalf("parsing forwarded body: %v", err)
	}
	if sent["name"] != "scriptxscript" {
		t.Errorf("expected sanitized payload, got %v", sent["name"])
	}
}
