// Package main provides the entry point for the mcp-sapbo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	mcpserver "github.com/txn2/mcp-sapbo/internal/server"
	"github.com/txn2/mcp-sapbo/pkg/health"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.transport, "transport", "", "Transport type: stdio, http")
	flag.StringVar(&opts.address, "address", "", "Listen address for http transport")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

func loadConfig(opts serverOptions) (*mcpserver.Config, error) {
	cfg := mcpserver.ConfigFromEnv()
	if opts.configPath != "" {
		var err error
		cfg, err = mcpserver.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}
	// Flags override the config file.
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	return cfg, nil
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("mcp-sapbo version %s\n", mcpserver.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx := setupSignalHandler()

	s, err := mcpserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			slog.Warn("shutdown", "error", cerr)
		}
	}()

	if err := s.Start(ctx); err != nil {
		return err
	}

	return serve(ctx, s, cfg)
}

func serve(ctx context.Context, s *mcpserver.Server, cfg *mcpserver.Config) error {
	switch cfg.Server.Transport {
	case "stdio":
		return s.MCP().Run(ctx, &mcp.StdioTransport{})
	case "http":
		return serveHTTP(ctx, s, cfg.Server.Address)
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Server.Transport)
	}
}

func serveHTTP(ctx context.Context, s *mcpserver.Server, address string) error {
	checker := health.NewChecker(s.Ping)
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.MCP()
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	mux.Handle("/", handler)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "address", address)
		errCh <- httpServer.ListenAndServe()
	}()
	checker.SetReady()

	select {
	case <-ctx.Done():
		checker.SetDraining()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
