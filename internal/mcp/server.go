package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/gather-mcp/internal/config"
	"github.com/dshills/gather-mcp/internal/logger"
	"github.com/dshills/gather-mcp/internal/runner"
	"github.com/dshills/gather-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "gather-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DBFileName is the database file created inside the data directory
	DBFileName = "gather.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	runner  *runner.Runner
	log     *charmlog.Logger
	workers int
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for the server and everything it creates
func WithLogger(l *charmlog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithWorkers sets the default worker count for gather runs
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// NewServer creates a new MCP server instance backed by a database in dbPath
func NewServer(dbPath string, opts ...Option) (*Server, error) {
	if dbPath == "" {
		dbPath = config.DefaultDBPath
	}
	dbPath, err := config.ExpandHome(dbPath)
	if err != nil {
		return nil, err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s := &Server{log: logger.Default()}
	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage
	store, err := storage.NewSQLiteStorage(filepath.Join(dbPath, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.storage = store
	s.runner = runner.New(store, runner.WithLogger(s.log), runner.WithWorkers(s.workers))

	// Create MCP server
	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	s.log.Debug("server initialized", "db", dbPath, "driver", storage.DriverName)
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.log.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// Close releases the underlying storage
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(validateGatherConfigTool(), s.handleValidateGatherConfig)
	s.mcp.AddTool(gatherContextTool(), s.handleGatherContext)
	s.mcp.AddTool(storeChunksTool(), s.handleStoreChunks)
	s.mcp.AddTool(listDatasetsTool(), s.handleListDatasets)
	s.mcp.AddTool(deleteDatasetTool(), s.handleDeleteDataset)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
