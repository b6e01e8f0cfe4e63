// Package tools exposes gateway operations as callable tools.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/gsmgate/pkg/tools/toolbox]: the Tool type and the ToolBox registry
//   - [github.com/germanamz/gsmgate/pkg/tools/devicetools]: tools bound to a live device session
//   - [github.com/germanamz/gsmgate/pkg/tools/mcpserver]: serves a ToolBox over the Model Context Protocol
//
// devicetools and mcpserver both depend on toolbox and are independent of
// each other. mcpserver is a thin wrapper around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
package tools
