package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/memory"
)

func TestRegisterMemoryTools_LookupAndStore(t *testing.T) {
	store := memory.New(memory.Options{Backend: memory.NewFakeBackend(), NShort: 10, NSummary: 1000})
	registry := NewToolRegistry()
	RegisterMemoryTools(registry, store)

	ctx := context.Background()
	result, err := registry.Invoke(ctx, "t1", "th1", "store_episodic_memory", json.RawMessage(`{"content":"likes blue","importance":0.8}`))
	require.NoError(t, err)
	stored := result.(map[string]any)
	require.NotEmpty(t, stored["id"])

	lookup, err := registry.Invoke(ctx, "t1", "th1", "long_term_memory_lookup", json.RawMessage(`{"query":"blue"}`))
	require.NoError(t, err)
	entries := lookup.(map[string]any)["entries"].([]memory.LongTermEntry)
	require.Len(t, entries, 1)
	require.Equal(t, "likes blue", entries[0].Content)
}

func TestRegisterMemoryTools_StoreRequiresContent(t *testing.T) {
	store := memory.New(memory.Options{Backend: memory.NewFakeBackend(), NShort: 10, NSummary: 1000})
	registry := NewToolRegistry()
	RegisterMemoryTools(registry, store)

	_, err := registry.Invoke(context.Background(), "t1", "th1", "store_episodic_memory", json.RawMessage(`{}`))
	require.Error(t, err)
}
