package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ironsheep/image-editor-mcp/internal/config"
	"github.com/ironsheep/image-editor-mcp/internal/editor"
	"github.com/ironsheep/image-editor-mcp/internal/logging"
	"github.com/ironsheep/image-editor-mcp/internal/render"
	"github.com/ironsheep/image-editor-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-editor-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("image-editor-mcp - MCP server for interactive image editing")
			fmt.Println()
			fmt.Println("Usage: image-editor-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from ./.env):")
			fmt.Printf("  %-32s YAML config file\n", config.EnvConfigFile)
			fmt.Printf("  %-32s Minimum zoom scale (default 0.05)\n", config.EnvMinScale)
			fmt.Printf("  %-32s Maximum zoom scale (default 32)\n", config.EnvMaxScale)
			fmt.Printf("  %-32s Export quality 1-100 (default 92)\n", config.EnvDefaultQuality)
			fmt.Printf("  %-32s Use the parallel renderer (default true)\n", config.EnvAcceleration)
			fmt.Printf("  %-32s Panic on crop invariant violations\n", config.EnvStrictInvariants)
			fmt.Printf("  %-32s Largest accepted input in bytes\n", config.EnvMaxDecodeBytes)
			fmt.Printf("  %-32s Largest accepted image in pixels\n", config.EnvMaxPixels)
			fmt.Printf("  %-32s Largest preview or export in pixels (default 50000000)\n", config.EnvMaxOutputPixels)
			fmt.Printf("  %-32s Open session cap (default 16)\n", config.EnvMaxSessions)
			fmt.Printf("  %-32s debug, info, warn, error\n", config.EnvLogLevel)
			fmt.Printf("  %-32s console or json\n", config.EnvLogFormat)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-editor-mcp: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for the MCP protocol.
	logger := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Debug().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("commit", GitCommit).
		Bool("acceleration_available", render.AccelerationAvailable()).
		Msg("Image editor MCP server")

	engine := editor.NewEngine(cfg, logger)
	if err := engine.Initialize(); err != nil {
		logger.Fatal().Err(err).Msg("Engine initialization failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(engine, logger, Version)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}
