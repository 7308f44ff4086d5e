// pandakin: Franka Panda kinematics MCP server
//
// Exposes forward/inverse kinematics, Jacobian, singularity and workspace
// tools for the Franka Panda 7-DOF arm to any MCP client.
//
// Usage:
//
//	pandakin serve [--config file]   # Start MCP server
//	pandakin schema                  # Print the external backend protocol schema
//	pandakin update                  # Check for a newer release
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HendryAvila/pandakin/internal/config"
	"github.com/HendryAvila/pandakin/internal/external"
	pkserver "github.com/HendryAvila/pandakin/internal/server"
	"github.com/HendryAvila/pandakin/internal/updater"
	"github.com/edaniels/golog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "schema":
		if err := printSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("pandakin v%s\n", pkserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default: $"+config.EnvConfig+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := pkserver.NewLogger("pandakin")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	s, cleanup, err := pkserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go checkForUpdates(ctx, logger)

	return pkserver.Serve(ctx, s, cfg, logger)
}

// checkForUpdates runs a best-effort version check during "serve" and logs
// a notice if an update is available.
func checkForUpdates(ctx context.Context, logger golog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := updater.NewChecker().Check(ctx, pkserver.Version)
	if err != nil {
		logger.Debugw("update check failed", "error", err)
		return
	}
	if result.UpdateAvailable {
		logger.Infow("update available",
			"current", result.CurrentVersion,
			"latest", result.LatestVersion,
			"install", updater.InstallHint,
			"release", result.ReleaseURL)
	}
}

// runUpdate reports whether a newer release exists and how to install it.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "🔍 Checking for updates...\n")

	result, err := updater.NewChecker().Check(context.Background(), pkserver.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Update check failed: %v\n", err)
		os.Exit(1)
	}
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "✅ Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "📦 New version available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "   Install it with:\n     %s\n", updater.InstallHint)
	fmt.Fprintf(os.Stderr, "   Release notes: %s\n", result.ReleaseURL)
}

// printSchema writes the JSON Schema of the external backend protocol.
func printSchema() error {
	data, err := json.MarshalIndent(external.Schemas(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pandakin v%s - Franka Panda kinematics MCP server

Usage:
  pandakin serve [--config file]   Start the MCP server
  pandakin schema                  Print the external backend protocol schema
  pandakin update                  Check for a newer release

Environment:
  %-20s config file path
  %-20s local (default) or external
  %-20s data directory (default: ~/.pandakin)
  %-20s stdio (default) or http
  %-20s listen address for http

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "pandakin": {
        "command": "pandakin",
        "args": ["serve"]
      }
    }
  }

Learn more: https://github.com/HendryAvila/pandakin
`, pkserver.Version,
		config.EnvConfig, config.EnvBackend, config.EnvDataDir, config.EnvTransport, config.EnvHTTPAddr)
}
