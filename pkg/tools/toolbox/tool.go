package toolbox

import (
	"context"
	"encoding/json"
)

// Handler runs a tool with its JSON arguments and returns a text result.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is one named gateway operation with a JSON Schema for its arguments.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Call is one invocation of a tool by name.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Result is the outcome of a Call. IsError marks both unknown tools and
// handler failures; Content then holds the error text.
type Result struct {
	CallID  string
	Content string
	IsError bool
}
