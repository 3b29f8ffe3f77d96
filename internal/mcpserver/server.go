package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all RugSentry tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("rugsentry", "1.0.0")
	client := NewClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolListActiveWarnings, h.HandleListActiveWarnings)
	s.AddTool(ToolGetWarning, h.HandleGetWarning)
	s.AddTool(ToolFindSimilarRugs, h.HandleFindSimilarRugs)
	s.AddTool(ToolCheckContract, h.HandleCheckContract)
	s.AddTool(ToolListTombstones, h.HandleListTombstones)
	s.AddTool(ToolScanMessage, h.HandleScanMessage)

	return s
}
