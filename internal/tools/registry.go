// ABOUTME: Registry of tool descriptors and handlers for the gateway.
// ABOUTME: Built once at startup; no dynamic registration afterwards.

package tools

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/baselinehq/baseline-mcp/internal/upstream"
)

// ErrToolCollision indicates a tool name was registered twice.
var ErrToolCollision = errors.New("tool name collision")

// Registry holds the static catalog of tools. It is populated during
// construction and immutable afterwards, so lookups need no locking.
type Registry struct {
	tools  map[string]*RegisteredTool
	order  []string // registration order, for stable tools/list output
	logger *slog.Logger
}

// NewRegistry builds the full tool catalog backed by the given upstream
// client: the loan and task families plus the three party families.
func NewRegistry(client *upstream.Client, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*RegisteredTool),
		logger: logger,
	}

	families := [][]*RegisteredTool{
		loanTools(client),
		taskTools(client),
		partyTools(client, "borrower", "Borrower"),
		partyTools(client, "vendor", "Vendor"),
		partyTools(client, "investor", "Investor"),
	}
	for _, family := range families {
		for _, tool := range family {
			if err := r.register(tool); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("tool registry built", "tool_count", len(r.tools))
	return r, nil
}

func (r *Registry) register(tool *RegisteredTool) error {
	name := tool.Descriptor.Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolCollision, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) *RegisteredTool {
	return r.tools[name]
}

// Descriptors returns all tool descriptors in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Annotation constructors used across the families.

func readOnlyAnnotations(title string) *Annotations {
	return &Annotations{Title: title, ReadOnlyHint: true, IdempotentHint: true}
}

func destructiveAnnotations(title string) *Annotations {
	return &Annotations{Title: title, DestructiveHint: true, IdempotentHint: true}
}

func mutatingAnnotations(title string) *Annotations {
	return &Annotations{Title: title}
}
