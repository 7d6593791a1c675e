package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nugget/recap/internal/config"
	"github.com/nugget/recap/internal/prompts"
	"github.com/nugget/recap/internal/recap"
)

// summarizeOptions are the arguments of "recap summarize".
type summarizeOptions struct {
	url    string
	focus  string
	detail string
}

func parseSummarizeArgs(args []string) (summarizeOptions, error) {
	var opts summarizeOptions
	for i := 0; i < len(args); i++ {
		switch {
		case (args[i] == "--focus" || args[i] == "-focus") && i+1 < len(args):
			opts.focus = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--focus="):
			opts.focus = strings.TrimPrefix(args[i], "--focus=")
		case args[i] == "--brief" || args[i] == "-brief":
			opts.detail = prompts.DetailBrief
		case !strings.HasPrefix(args[i], "-") && opts.url == "":
			opts.url = args[i]
		default:
			return opts, fmt.Errorf("summarize: unexpected argument %q", args[i])
		}
	}
	if opts.url == "" {
		return opts, fmt.Errorf("usage: recap summarize [--focus <text>] [--brief] <url>")
	}
	return opts, nil
}

// setupOneShot loads config and wires the pipeline for a single command.
// Logs go to stderr so stdout carries only the result.
func setupOneShot(ctx context.Context, stderr io.Writer, configPath string) (*deps, error) {
	logger := newLogger(stderr, slog.LevelWarn, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	// One-shot commands stay quiet unless asked for debug output.
	if level == slog.LevelInfo {
		level = slog.LevelWarn
	}
	logger = newLogger(stderr, level, cfg.LogFormat)

	return newDeps(ctx, cfg, logger)
}

// runSummarize handles "recap summarize <url>".
func runSummarize(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, opts summarizeOptions) error {
	d, err := setupOneShot(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	sum, err := d.service.Summarize(ctx, recap.SummaryRequest{
		URL:    opts.url,
		Focus:  opts.focus,
		Detail: opts.detail,
	})
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	return printSummary(stdout, outputFmt, sum)
}

// runChapters handles "recap chapters <url>". No model is called.
func runChapters(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, url string) error {
	d, err := setupOneShot(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	info, err := d.service.VideoInfo(ctx, url)
	if err != nil {
		return fmt.Errorf("chapters: %w", err)
	}
	return printInfo(stdout, outputFmt, info)
}

// runAsk handles "recap ask <url> <question>". In text mode the answer
// streams to stdout as it is generated.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, url, question string) error {
	d, err := setupOneShot(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	var callback func(string)
	if outputFmt == "text" {
		callback = func(token string) { fmt.Fprint(stdout, token) }
	}

	var conv recap.Conversation
	ans, err := d.service.Ask(ctx, &conv, url, question, callback)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if outputFmt == "json" {
		return writeIndentedJSON(stdout, ans)
	}
	fmt.Fprintln(stdout)
	return nil
}

func printSummary(w io.Writer, outputFmt string, sum *recap.Summary) error {
	if outputFmt == "json" {
		return writeIndentedJSON(w, sum)
	}
	fmt.Fprintf(w, "# %s\n\n", sum.Info.Title)
	fmt.Fprintln(w, strings.TrimSpace(sum.Summary))
	return nil
}

func printInfo(w io.Writer, outputFmt string, info recap.Info) error {
	if outputFmt == "json" {
		return writeIndentedJSON(w, info)
	}
	fmt.Fprintln(w, info.Title)
	if info.Channel != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "channel:", info.Channel)
	}
	if info.PublishDate != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "published:", info.PublishDate)
	}
	transcriptKind := "manual"
	if info.AutoGenerated {
		transcriptKind = "auto-generated"
	}
	fmt.Fprintf(w, "  %-12s %s (%s), %d segments, %d chars\n", "transcript:", info.Language, transcriptKind, info.Segments, info.Chars)

	if !info.Chaptered {
		fmt.Fprintln(w, "\nNo chapters.")
		return nil
	}
	fmt.Fprintln(w)
	for _, c := range info.Chapters {
		fmt.Fprintf(w, "%8s  %-40s %4d segments %6d chars\n", c.Timestamp, c.Title, c.Segments, c.Chars)
	}
	return nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
