package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// ToolHandler executes one tool call, decoding args from the raw JSON
// arguments string a Provider returned on a domain.ToolCall.
type ToolHandler func(ctx context.Context, tenantID, threadID string, args json.RawMessage) (any, error)

// toolEntry pairs a tool's advertised definition with its handler.
type toolEntry struct {
	def     ToolDefinition
	handler ToolHandler
}

// ToolRegistry is the set of tools a Gateway can advertise to a Provider and
// dispatch to when the model requests one (spec.md §4.2).
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]toolEntry
	schemas *schemaCache
}

// NewToolRegistry constructs an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{entries: map[string]toolEntry{}, schemas: newSchemaCache()}
}

// Register adds a tool definition and its handler. Re-registering a name
// replaces the previous entry.
func (r *ToolRegistry) Register(def ToolDefinition, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = toolEntry{def: def, handler: handler}
}

// Definitions returns the advertised ToolDefinition list in registration
// order is not guaranteed; callers needing a stable order should sort by
// Name.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.def)
	}
	return out
}

// Invoke validates args against the tool's schema and dispatches to its
// handler. Returns a KindToolError wrapping "unknown tool" if name was never
// registered.
func (r *ToolRegistry) Invoke(ctx context.Context, tenantID, threadID, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.KindToolError, "unknown tool %q", name)
	}

	if len(entry.def.InputSchema) > 0 {
		var decoded any
		if len(args) > 0 {
			if err := json.Unmarshal(args, &decoded); err != nil {
				return nil, apperrors.Wrap(apperrors.KindValidationError, err, fmt.Sprintf("tool %q arguments are not valid JSON", name))
			}
		}
		if err := r.schemas.validate(name, entry.def.InputSchema, decoded); err != nil {
			return nil, err
		}
	}

	result, err := entry.handler(ctx, tenantID, threadID, args)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindToolError, err, fmt.Sprintf("tool %q execution failed", name))
	}
	return result, nil
}
