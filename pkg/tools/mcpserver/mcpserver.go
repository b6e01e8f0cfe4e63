// Package mcpserver exposes a toolbox of gateway operations over the Model
// Context Protocol, on stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/germanamz/gsmgate/pkg/tools/toolbox"
)

// Server serves tools over MCP.
type Server struct {
	server *mcp.Server
}

// New creates a Server. instructions is sent to clients on initialization;
// it may be empty.
func New(name, version, instructions string) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{Instructions: instructions})

	return &Server{server: server}
}

// Register adds tools to the server.
func (s *Server) Register(tools ...toolbox.Tool) {
	for _, t := range tools {
		s.server.AddTool(toSDKTool(t), toSDKHandler(t.Handler))
	}
}

// RegisterBox adds every tool of tb.
func (s *Server) RegisterBox(tb *toolbox.ToolBox) {
	s.Register(tb.Tools()...)
}

// Serve reads requests from in and writes responses to out until ctx is
// cancelled or the stream closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
}

func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func toSDKTool(t toolbox.Tool) *mcp.Tool {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// toSDKHandler reports handler failures as tool errors, not protocol errors,
// so the client sees the device's message.
func toSDKHandler(h toolbox.Handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}

		result, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
