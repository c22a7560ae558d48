package generation

import (
	"encoding/json"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/internal/schemautil"
)

// NewTool builds a ToolDefinition whose parameter schema is reflected from a
// Go struct. Pass a zero value (or pointer) of the argument type; json and
// description tags shape the schema.
func NewTool(name, description string, params any) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schemautil.Reflect(params),
	}
}

// DecodeArguments parses the call's JSON argument payload and validates it
// against the tool's parameter schema.
func (c *ToolCall) DecodeArguments(def ToolDefinition) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, &core.InvalidArgumentError{Field: "arguments", Reason: err.Error()}
	}
	if err := schemautil.Validate(args, def.Parameters); err != nil {
		return nil, err
	}
	return args, nil
}
