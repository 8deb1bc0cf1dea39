package domain

import "context"

// Tool is one remote-callable operation exposed to agents.
//
// Execute returns either the encoded result string or, where a tool passes a
// device result through untouched, the raw value.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
