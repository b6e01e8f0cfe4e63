package toolbox

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// ToolBox is a named collection of tools.
type ToolBox struct {
	tools map[string]Tool
}

// New creates an empty ToolBox.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds tools, replacing any with the same name.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Tools returns all registered tools ordered by name.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b Tool) int { return cmp.Compare(a.Name, b.Name) })

	return result
}

// Filter returns a ToolBox holding only the named tools. Unknown names are
// skipped; an empty list returns tb itself.
func (tb *ToolBox) Filter(names []string) *ToolBox {
	if len(names) == 0 {
		return tb
	}

	out := New()
	for _, n := range names {
		if t, ok := tb.tools[n]; ok {
			out.tools[n] = t
		}
	}

	return out
}

// Call runs one tool call.
func (tb *ToolBox) Call(ctx context.Context, c Call) Result {
	t, ok := tb.tools[c.Name]
	if !ok {
		return Result{CallID: c.ID, Content: fmt.Sprintf("tool not found: %s", c.Name), IsError: true}
	}

	args := c.Arguments
	if len(args) == 0 {
		args = []byte("{}")
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		return Result{CallID: c.ID, Content: err.Error(), IsError: true}
	}

	return Result{CallID: c.ID, Content: out}
}
