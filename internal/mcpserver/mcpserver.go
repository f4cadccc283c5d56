// Package mcpserver exposes the c3ms analyzer as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/c3ms/internal/cache"
	"github.com/panbanda/c3ms/pkg/classify"
	"github.com/panbanda/c3ms/pkg/config"
)

// Server wraps the MCP server and registers the c3ms tools.
type Server struct {
	server  *mcp.Server
	config  *config.Config
	catalog *classify.Catalog
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewServer creates a new MCP server with all c3ms tools registered.
// A nil cfg uses the defaults; a nil logger discards.
func NewServer(version string, cfg *config.Config, logger *slog.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "c3ms",
			Version: version,
		},
		nil,
	)

	c, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		logger.Warn("cache disabled", "dir", cfg.Cache.Dir, "error", err)
		c = nil
	}

	s := &Server{
		server:  server,
		config:  cfg,
		catalog: cfg.API.Catalog(),
		cache:   c,
		logger:  logger,
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_complexity",
		Description: describeAnalyze(),
	}, s.handleAnalyze)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "measure_snippet",
		Description: describeMeasureSnippet(),
	}, s.handleMeasureSnippet)
}
