package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dshills/gather-mcp/internal/config"
	"github.com/dshills/gather-mcp/internal/gather"
	"github.com/dshills/gather-mcp/internal/logger"
	"github.com/dshills/gather-mcp/internal/mcp"
	"github.com/dshills/gather-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version":
			printVersion()
			return nil
		case "run":
			return runOnce(args[1:])
		}
	}
	return serve(args)
}

func printVersion() {
	fmt.Printf("Gather MCP Server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Build Mode: %s\n", storage.BuildMode)
	fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
}

// logFlags registers the logging flags shared by every mode
func logFlags(fs *pflag.FlagSet, settings *config.Settings) {
	fs.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&settings.LogJSON, "log-json", settings.LogJSON, "emit JSON log records")
}

func initLogger(settings config.Settings) {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(settings.LogLevel)
	cfg.JSON = settings.LogJSON
	logger.Init(cfg)
}

func serve(args []string) error {
	settings := config.FromEnv()

	fs := pflag.NewFlagSet("gather-mcp", pflag.ContinueOnError)
	fs.StringVar(&settings.DBPath, "db", settings.DBPath, "directory holding the dataset database")
	fs.IntVar(&settings.Workers, "workers", settings.Workers, "document groups formatted concurrently")
	showVersion := fs.Bool("version", false, "print version information and exit")
	logFlags(fs, &settings)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		printVersion()
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	// Log to stderr (stdout reserved for MCP protocol)
	initLogger(settings)
	logger.Info("gather MCP server starting", "version", version,
		"build_mode", storage.BuildMode, "driver", storage.DriverName)

	server, err := mcp.NewServer(settings.DBPath,
		mcp.WithLogger(logger.Default()),
		mcp.WithWorkers(settings.Workers))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// runOnce executes a single gather operation over a records file
func runOnce(args []string) error {
	settings := config.FromEnv()

	var configPath, operation, inputPath, outputPath string
	fs := pflag.NewFlagSet("gather-mcp run", pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "operation or pipeline config file (.yaml, .yml, .json)")
	fs.StringVar(&operation, "operation", "", "operation name within a pipeline config")
	fs.StringVar(&inputPath, "input", "", "chunk records file (.json, .yaml, .yml)")
	fs.StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	fs.IntVar(&settings.Workers, "workers", settings.Workers, "document groups formatted concurrently")
	logFlags(fs, &settings)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if configPath == "" || inputPath == "" {
		return fmt.Errorf("--config and --input are required")
	}

	initLogger(settings)

	raw, err := config.LoadOperation(configPath, operation)
	if err != nil {
		return err
	}
	stage, err := gather.NewStage(raw, gather.WithLogger(logger.Default()))
	if err != nil {
		return err
	}
	records, err := config.LoadRecords(inputPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	out, cost, err := stage.ExecuteParallel(ctx, records, settings.Workers)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(outputPath, data, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("gather complete", "records", len(out), "cost", cost, "duration", time.Since(start))
	return nil
}
