// Package server provides a factory for creating the MCP server.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-sapbo/pkg/bridge"
	"github.com/txn2/mcp-sapbo/pkg/catalog"
	"github.com/txn2/mcp-sapbo/pkg/client"
	"github.com/txn2/mcp-sapbo/pkg/query"
	"github.com/txn2/mcp-sapbo/pkg/tools"
)

// Version is set at build time.
var Version = "dev"

// Server bundles the MCP server with the BO client it depends on.
type Server struct {
	cfg     *Config
	mcp     *mcp.Server
	client  *client.Client
	toolkit *tools.Toolkit
}

// New creates an MCP server wired to the configured BusinessObjects
// deployment. The BO session is not established until Start.
func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bo, err := client.New(client.Config{
		URL:          cfg.SAPBO.URL,
		Username:     cfg.SAPBO.Username,
		Password:     cfg.SAPBO.Password,
		AuthType:     cfg.SAPBO.AuthType,
		SessionTTL:   cfg.SAPBO.SessionTTL,
		Timeout:      cfg.SAPBO.Timeout,
		RetryMax:     cfg.SAPBO.RetryMax,
		RetryBackoff: cfg.SAPBO.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("creating BO client: %w", err)
	}

	cat := catalog.New(bo, catalog.Config{
		TTL:           cfg.Catalog.TTL,
		StaleFallback: cfg.Catalog.StaleFallback,
	})
	translator := query.NewTranslator(cat)
	br := bridge.New(cat, translator, bo)

	toolkit := tools.NewToolkit(br, tools.Config{Descriptions: cfg.Tools.Descriptions})

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)
	toolkit.RegisterAll(mcpServer)

	return &Server{cfg: cfg, mcp: mcpServer, client: bo, toolkit: toolkit}, nil
}

// NewWithDefaults creates a server configured from environment variables.
func NewWithDefaults() (*Server, error) {
	return New(ConfigFromEnv())
}

// MCP returns the underlying MCP server for transport binding.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Toolkit returns the registered toolkit.
func (s *Server) Toolkit() *tools.Toolkit {
	return s.toolkit
}

// Ping verifies the BO session, logging in if none is held.
func (s *Server) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Start logs in to the BO server so credential problems surface at
// startup instead of on the first tool call.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to BO server: %w", err)
	}
	slog.Info("connected to BO server",
		"url", s.cfg.SAPBO.URL,
		"tools", s.toolkit.Tools())
	return nil
}

// Close logs out of the BO session.
func (s *Server) Close() error {
	return s.client.Close()
}
