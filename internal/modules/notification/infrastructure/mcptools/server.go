package mcptools

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
)

type ServerConfig struct {
	Name    string
	Version string
}

// NewNotificationMCPServer 创建注册了通知工具的 MCP Server
func NewNotificationMCPServer(conf ServerConfig, svc NotificationOperator) *server.MCPServer {
	s := server.NewMCPServer(
		conf.Name,
		conf.Version,
		server.WithToolCapabilities(true),
	)
	NewNotificationToolHandler(svc).RegisterTools(s)
	return s
}

// NewHTTPHandler streamable HTTP 传输，挂到网关的 /mcp
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath("/mcp"))
}
