// ABOUTME: Shared upstream client constructors for tool tests.

package tools

import "github.com/baselinehq/baseline-mcp/internal/upstream"

func newTestClient(baseURL string) *upstream.Client {
	return upstream.New(upstream.Config{BaseURL: baseURL, Credential: "test-token"})
}

func newTestClientWithMethod(baseURL, method string) *upstream.Client {
	return upstream.New(upstream.Config{BaseURL: baseURL, Credential: "test-token", UpdateLoanMethod: method})
}

func newTestClientNoCredential() *upstream.Client {
	return upstream.New(upstream.Config{BaseURL: "http://unused.invalid"})
}
