package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// schemaCache compiles and caches jsonschema.Schema values per tool, keyed by
// tool name: the first schema compiled for a name is reused for every later
// call (one compile per registered tool).
type schemaCache struct {
	mu     sync.Mutex
	byName map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{byName: map[string]*jsonschema.Schema{}}
}

func (c *schemaCache) compile(toolName string, schema map[string]any) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.byName[toolName]; ok {
		return s, nil
	}
	if len(schema) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for tool %q: %w", toolName, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema for tool %q: %w", toolName, err)
	}
	compiler := jsonschema.NewCompiler()
	resource := "tool://" + toolName
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for tool %q: %w", toolName, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %q: %w", toolName, err)
	}
	c.byName[toolName] = compiled
	return compiled, nil
}

// validate checks a decoded tool-call argument payload against the tool's
// compiled schema, returning a KindValidationError on mismatch (spec.md §7).
func (c *schemaCache) validate(toolName string, schema map[string]any, payload any) error {
	compiled, err := c.compile(toolName, schema)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidationError, err, "compile tool schema")
	}
	if compiled == nil {
		return nil
	}
	if err := compiled.Validate(payload); err != nil {
		return apperrors.Wrap(apperrors.KindValidationError, err, fmt.Sprintf("tool %q arguments failed schema validation", toolName))
	}
	return nil
}
