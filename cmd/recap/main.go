// Recap summarizes online videos from their transcripts and answers
// questions about them.
//
// It exposes a JSON HTTP API (with a websocket endpoint for streamed
// answers) and a CLI for one-shot summaries. Configuration is loaded from
// a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	recap serve                      Start the API server
//	recap init [dir]                 Write an example config.yaml
//	recap summarize <url>            Summarize a video
//	recap chapters <url>             Show chapters and transcript alignment
//	recap ask <url> <question>       Ask a single question about a video
//	recap version                    Print version and build information
//	recap -o json version            Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/recap/internal/api"
	"github.com/nugget/recap/internal/buildinfo"
	"github.com/nugget/recap/internal/config"
	"github.com/nugget/recap/internal/connwatch"
	"github.com/nugget/recap/internal/recap"
	"github.com/nugget/recap/internal/session"
)

// main constructs the OS-level environment and delegates to [run], which
// keeps os.Exit and os.Args out of the application logic.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the recap command. Arguments are
// parsed by hand so that run can be called concurrently from tests
// without the flag package's globals.
//
// Flags that follow the command (such as --focus for summarize) are
// passed through to the subcommand.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "summarize":
		opts, err := parseSummarizeArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runSummarize(ctx, stdout, stderr, configPath, outputFmt, opts)
	case "chapters":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: recap chapters <url>")
		}
		return runChapters(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0])
	case "ask":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: recap ask <url> <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0], strings.Join(cmdArgs[1:], " "))
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Recap - video summaries and Q&A from transcripts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: recap [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                   Start the API server")
	fmt.Fprintln(w, "  init [dir]              Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  summarize <url>         Summarize a video")
	fmt.Fprintln(w, "      --focus <text>      Summarize with a focus topic")
	fmt.Fprintln(w, "      --brief             Short summary instead of the full one")
	fmt.Fprintln(w, "  chapters <url>          Show chapters and transcript alignment")
	fmt.Fprintln(w, "  ask <url> <question>    Ask one question about a video")
	fmt.Fprintln(w, "  version                 Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/recap/config.yaml, /etc/recap/config.yaml")
	return nil
}

// runServe starts the API server and blocks until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting Recap", "version", buildinfo.Version, "commit", buildinfo.GitCommit)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Rebuild the logger now that the configured level and format are known.
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = newLogger(stdout, level, cfg.LogFormat)
	logger.Info("config loaded", "path", cfgPath, "log_level", level, "log_format", cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := newDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	sessions := session.NewStore[recap.Conversation](cfg.Sessions.TTL, logger)
	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	watch := connwatch.NewManager(connwatch.DefaultSchedule(), logger)
	for name, probe := range deps.probes {
		watch.Watch(ctx, name, probe)
	}
	defer watch.Stop()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, deps.service, sessions, logger)
	server.SetHealth(watch)
	if deps.usage != nil {
		server.SetUsage(deps.usage)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	// Start blocks until the server is shut down.
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Recap stopped", "sessions_dropped", sessions.Len())
	return nil
}

// newLogger creates a structured logger that writes to w at the given level
// and format. Format must be "text" or "json"; any other value defaults to
// text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
