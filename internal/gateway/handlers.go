package gateway

import (
	"context"
	"encoding/json"

	"github.com/digitalemployee/orchestrator/internal/memory"
)

type longTermLookupArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type storeEpisodicArgs struct {
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Importance float64  `json:"importance"`
}

// RegisterMemoryTools registers the two Memory-Store-backed tools described
// in spec.md §4.2: long_term_memory_lookup (keyword search over a thread's
// long-term entries) and store_episodic_memory (write a durable episodic
// entry on demand, outside the automatic summarization trigger).
func RegisterMemoryTools(registry *ToolRegistry, store *memory.Store) {
	registry.Register(ToolDefinition{
		Name:        "long_term_memory_lookup",
		Description: "Search this thread's long-term memory for entries relevant to a query.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
			},
			"required": []any{"query"},
		},
	}, func(ctx context.Context, tenantID, threadID string, raw json.RawMessage) (any, error) {
		var args longTermLookupArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, err
			}
		}
		limit := args.Limit
		if limit <= 0 {
			limit = 10
		}
		_, entries, err := store.RetrieveContext(ctx, tenantID, threadID, args.Query, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries}, nil
	})

	registry.Register(ToolDefinition{
		Name:        "store_episodic_memory",
		Description: "Persist a durable episodic memory entry for this thread.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content":    map[string]any{"type": "string"},
				"tags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"importance": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
			"required": []any{"content"},
		},
	}, func(ctx context.Context, tenantID, threadID string, raw json.RawMessage) (any, error) {
		var args storeEpisodicArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
		id, err := store.StoreSummary(ctx, tenantID, threadID, args.Content, memory.MemoryTypeEpisodic, args.Tags, args.Importance, nil)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil
	})
}
