// ABOUTME: Shared argument helpers for tool handlers.
// ABOUTME: Identifier, object payload, and pagination checks per the tool schemas.

package tools

import (
	"fmt"
	"net/url"

	"github.com/baselinehq/baseline-mcp/internal/sanitize"
)

// requireID validates and sanitizes a required identifier argument.
// Whitespace-only identifiers are rejected after trimming.
func requireID(args map[string]any, field string) (string, error) {
	if err := sanitize.RequireFields(args, field); err != nil {
		return "", err
	}
	s, ok := args[field].(string)
	if !ok {
		return "", sanitize.Invalidf("%s must be a non-empty string", field)
	}
	cleaned, err := sanitize.Text(s)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", sanitize.Invalidf("%s must be a non-empty string", field)
	}
	return url.PathEscape(cleaned), nil
}

// requireObject validates and sanitizes a required object argument such
// as updates or a *Data payload.
func requireObject(args map[string]any, field string) (map[string]any, error) {
	if err := sanitize.RequireFields(args, field); err != nil {
		return nil, err
	}
	obj, ok := args[field].(map[string]any)
	if !ok {
		return nil, sanitize.Invalidf("%s must be an object", field)
	}
	return sanitize.Structure(obj)
}

// pageQuery returns the query suffix for an optional page argument, or
// an empty string when the argument is absent. JSON numbers arrive as
// float64.
func pageQuery(args map[string]any) (string, error) {
	v, ok := args["page"]
	if !ok || v == nil {
		return "", nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 {
		return "", sanitize.Invalidf("page must be a non-negative number")
	}
	return fmt.Sprintf("?page=%d", int(f)), nil
}
