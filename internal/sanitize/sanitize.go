// ABOUTME: Argument validation and input sanitization for tool handlers.
// ABOUTME: Defense-in-depth before values are forwarded to the Baseline API.

package sanitize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is the sentinel wrapped by all validation failures so
// callers can classify them without string matching.
var ErrInvalid = errors.New("invalid argument")

// invalidError carries a client-facing message while still matching
// ErrInvalid under errors.Is. The sentinel's own text never leaks into
// the message shown to callers.
type invalidError struct {
	msg string
}

func (e *invalidError) Error() string { return e.msg }
func (e *invalidError) Unwrap() error { return ErrInvalid }

// Invalidf builds a validation error with the given message.
func Invalidf(format string, a ...any) error {
	return &invalidError{msg: fmt.Sprintf(format, a...)}
}

// maxTextLength caps free-text values forwarded upstream.
const maxTextLength = 1000

// unsafeChars are stripped from all free-text input.
const unsafeChars = `<>"'&`

// RequireFields checks that each named field is present and non-nil in
// args, failing on the first absent field in left-to-right order.
func RequireFields(args map[string]any, names ...string) error {
	for _, name := range names {
		if v, ok := args[name]; !ok || v == nil {
			return Invalidf("Missing required argument: %s", name)
		}
	}
	return nil
}

// Text validates that v is a string, then trims it, strips unsafe
// characters, and truncates to the maximum length.
func Text(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", Invalidf("expected a string value")
	}

	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, s)

	if len(s) > maxTextLength {
		s = s[:maxTextLength]
	}
	return s, nil
}

// Structure validates that v is a non-nil object and recursively
// sanitizes every string leaf, preserving array and object shapes.
// Non-string scalars pass through untouched.
func Structure(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, Invalidf("expected an object value")
	}
	cleaned, err := sanitizeValue(obj)
	if err != nil {
		return nil, err
	}
	return cleaned.(map[string]any), nil
}

func sanitizeValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return Text(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			cleaned, err := sanitizeValue(inner)
			if err != nil {
				return nil, err
			}
			out[k] = cleaned
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			cleaned, err := sanitizeValue(inner)
			if err != nil {
				return nil, err
			}
			out[i] = cleaned
		}
		return out, nil
	default:
		return v, nil
	}
}
