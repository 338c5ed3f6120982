// ABOUTME: Tool descriptor, annotation, and result types for the gateway catalog.
// ABOUTME: Handlers normalize every failure into a Result; nothing propagates.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Annotations describe a tool's side-effect class to calling agents.
// All fields are hints in the MCP sense; clients must not rely on them
// for correctness.
type Annotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint"`
	DestructiveHint bool   `json:"destructiveHint"`
	IdempotentHint  bool   `json:"idempotentHint"`
}

// Descriptor describes a tool: its name, human description, JSON Schema
// for input, and behavioral annotations.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Annotations *Annotations    `json:"annotations,omitempty"`
}

// Content is a single content block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the uniform success/error envelope returned by every tool.
// It is never partially populated: exactly one content block carrying
// either the success payload or a readable error message.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Handler executes a tool invocation against the upstream API.
type Handler func(ctx context.Context, args map[string]any) *Result

// RegisteredTool pairs a descriptor with its handler.
type RegisteredTool struct {
	Descriptor *Descriptor
	Handler    Handler
}

// textResult wraps v as pretty-printed JSON in a success result.
func textResult(v any) *Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("formatting response", err)
	}
	return &Result{
		Content: []Content{{Type: "text", Text: string(data)}},
	}
}

// rawResult pretty-prints an upstream JSON body in a success result.
func rawResult(body json.RawMessage) *Result {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return errorResult("parsing upstream response", err)
	}
	return textResult(v)
}

// errorResult produces the uniform "Error <doing X>: <message>" shape.
func errorResult(action string, err error) *Result {
	return &Result{
		Content: []Content{{Type: "text", Text: fmt.Sprintf("Error %s: %v", action, err)}},
		IsError: true,
	}
}

// errorResultf is errorResult for message-only failures.
func errorResultf(action, format string, a ...any) *Result {
	return &Result{
		Content: []Content{{Type: "text", Text: fmt.Sprintf("Error %s: %s", action, fmt.Sprintf(format, a...))}},
		IsError: true,
	}
}
