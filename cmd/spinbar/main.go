package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/itsrenoria/spinbar/internal/config"
	"github.com/itsrenoria/spinbar/internal/logger"
	"github.com/itsrenoria/spinbar/pkg/runner"
)

const version = "1.0"

func main() {
	var (
		configPath string
		logLevel   string
		async      bool
		showHelp   bool
		showVer    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&configPath, "c", "", "Path to config file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&async, "async", false, "Render the bar on a background worker")
	flag.BoolVar(&showHelp, "help", false, "Show help")
	flag.BoolVar(&showHelp, "h", false, "Show help (shorthand)")
	flag.BoolVar(&showVer, "version", false, "Show version")
	flag.BoolVar(&showVer, "v", false, "Show version (shorthand)")

	flag.Parse()

	if showVer {
		fmt.Printf("spinbar v%s\n", version)
		os.Exit(0)
	}

	if showHelp || len(flag.Args()) == 0 {
		printUsage()
		os.Exit(0)
	}

	mode := runner.Mode(strings.ToLower(flag.Arg(0)))
	switch mode {
	case runner.ModeSequential, runner.ModeWorkers, runner.ModeFraction:
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", mode)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if async {
		cfg.AsyncRender = true
	}

	if logLevel != "" {
		logger.SetLogLevel(logLevel)
	} else {
		logger.SetLogLevel(cfg.LogLevel)
	}
	logger.SetLogPath(cfg.LogDir)

	log := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("mode", string(mode)).
		Float64("total", cfg.Total).
		Int("width", cfg.Width).
		Bool("async", cfg.AsyncRender).
		Msg("Starting task")

	result, err := runner.New(cfg, os.Stdout).Run(ctx, mode)
	if err != nil {
		log.Error().Err(err).Msg("Task failed")
		os.Exit(1)
	}

	log.Info().Msg(runner.FormatSummary(result))
}

func printUsage() {
	fmt.Printf(`spinbar v%s - single-line terminal progress bar demo

Usage: spinbar [options] <command>

Commands:
  run        Update and print the bar once per element on one goroutine
  workers    Process elements on a worker pool with a separate presenter
  fraction   Walk a fractional total with a metric annotation

Options:
  -c, --config <path>    Path to config file
  --log-level <level>    Log level (trace, debug, info, warn, error)
  --async                Render on a background worker
  -v, --version          Show version
  -h, --help             Show this help

Examples:
  spinbar run
  spinbar --config ./spinbar.json workers
  spinbar --async fraction
`, version)
}
