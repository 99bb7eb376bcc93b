// Package main is a command-line probe for the nextedit suggestion
// engine: it spawns a backend, opens the given files, runs one
// suggestion cycle against the first of them, and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/nextedit/internal/backend"
	"github.com/dshills/nextedit/internal/config"
	"github.com/dshills/nextedit/internal/document"
	"github.com/dshills/nextedit/internal/event"
	"github.com/dshills/nextedit/internal/log"
	"github.com/dshills/nextedit/internal/protocol"
	"github.com/dshills/nextedit/internal/suggest"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	Apply      bool
	Wait       time.Duration
	Files      []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.Backend != "" {
		fields := strings.Fields(opts.Backend)
		cfg.Backend.Command = fields[0]
		cfg.Backend.Args = fields[1:]
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if cfg.Backend.Command == "" {
		fmt.Fprintf(os.Stderr, "Error: no backend command (use -backend or the config file)\n")
		return 1
	}

	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.Log.Level),
		Output: os.Stderr,
		Prefix: "nextedit",
	})

	host := document.NewHost()
	first, err := openDocuments(host, opts.Files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := host.SetCurrent(first); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	var enableFn suggest.EnableFunc
	if cfg.Suggest.EnabledExpr != "" {
		pred, perr := config.CompilePredicate(cfg.Suggest.EnabledExpr)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", perr)
			return 1
		}
		defer pred.Close()
		enableFn = predicateFunc(host, pred, logger)
	}

	engine := buildEngine(host, cfg, logger, enableFn)
	defer engine.Close()

	// A render signal with active edits means the cycle produced something.
	rendered := make(chan struct{}, 1)
	engine.Bus().Subscribe(event.TopicRenderUpdated, func(_ event.Topic, payload any) {
		if r, ok := payload.(event.RenderUpdated); ok && r.HaveActive {
			select {
			case rendered <- struct{}{}:
			default:
			}
		}
	})
	engine.Bus().Subscribe(event.TopicEditApplied, func(_ event.Topic, payload any) {
		if a, ok := payload.(event.EditApplied); ok {
			logger.Info("applied edits to %s, now v%d", a.Document, a.Version)
		}
	})

	client := backend.NewClient(
		backend.WithCommand(cfg.Backend.Command, cfg.Backend.Args...),
		backend.WithLanguages(cfg.Backend.Languages...),
		backend.WithRequestTimeout(cfg.Backend.RequestTimeout.Std()),
		backend.WithLogger(logger),
	)
	if err := client.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start backend: %v\n", err)
		return 1
	}
	defer client.Close()
	client.OnClose(func() {
		engine.DetachConnection(client.ID())
	})

	engine.AttachConnection(client)
	engine.Update(suggest.UpdateOptions{ForceRender: true})

	select {
	case <-rendered:
	case <-time.After(opts.Wait):
		fmt.Println("No suggestions within the wait window.")
		return 0
	case <-ctx.Done():
		return 1
	}

	recs := engine.Rendered()
	if len(recs) == 0 {
		fmt.Println("No suggestions.")
		return 0
	}
	printRecords(recs)

	if opts.Apply {
		if !engine.Apply() {
			fmt.Fprintln(os.Stderr, "Error: suggestions could not be applied")
			return 1
		}
		// The apply unit and the cursor move each take one loop turn.
		engine.Sync()
		engine.Sync()

		if content, ok := host.Content(first); ok {
			fmt.Printf("--- %s after apply ---\n", protocol.URIToFilePath(first))
			fmt.Print(content)
		}
	}

	return 0
}

// openDocuments reads each file into the host and returns the URI of the
// first one.
func openDocuments(host *document.Host, files []string) (protocol.DocumentURI, error) {
	var first protocol.DocumentURI
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		uri := protocol.FilePathToURI(path)
		if _, err := host.Open(uri, protocol.DetectLanguageID(path), string(data)); err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		if first == "" {
			first = uri
		}
	}
	return first, nil
}

// buildEngine wires the suggestion engine from the loaded configuration.
func buildEngine(host *document.Host, cfg *config.Config, logger *log.Logger, enableFn suggest.EnableFunc) *suggest.Engine {
	engineOpts := []suggest.Option{
		suggest.WithLogger(logger),
		suggest.WithEnabled(cfg.Suggest.Enabled),
		suggest.WithAutoRender(cfg.Suggest.AutoRender),
		suggest.WithDebounceInterval(cfg.Suggest.Debounce.Std()),
		suggest.WithJumpHistory(cfg.Suggest.JumpHistory),
		suggest.WithTriggerEvents(cfg.Suggest.TriggerEvents...),
		suggest.WithClearEvents(cfg.Suggest.ClearEvents...),
	}
	if enableFn != nil {
		engineOpts = append(engineOpts, suggest.WithEnableFunc(enableFn))
	}
	return suggest.NewEngine(host, engineOpts...)
}

// predicateFunc adapts a compiled enablement expression to the engine's
// per-document predicate.
func predicateFunc(host *document.Host, pred *config.Predicate, logger *log.Logger) suggest.EnableFunc {
	return func(uri protocol.DocumentURI, languageID string) bool {
		kind, _ := host.Kind(uri)
		allowed, err := pred.Allow(config.DocumentInfo{
			URI:      string(uri),
			Path:     protocol.URIToFilePath(uri),
			Language: languageID,
			Kind:     kind.String(),
		})
		if err != nil {
			logger.Warn("enablement expression: %v", err)
			return false
		}
		return allowed
	}
}

// printRecords writes the rendered suggestions as unified-style hunks.
func printRecords(recs []*suggest.EditRecord) {
	for i, rec := range recs {
		fmt.Printf("Suggestion %d for %s (v%d):\n", i+1, protocol.URIToFilePath(rec.Document), rec.ExpectedVersion)
		for _, hunk := range rec.Diff.Hunks {
			fmt.Printf("  @ line %d\n", hunk.Pos.Line+1)
			for _, line := range hunk.BeforeLines {
				fmt.Printf("  - %s\n", line)
			}
			for _, line := range hunk.AfterLines {
				fmt.Printf("  + %s\n", line)
			}
		}
		if rec.Command != nil {
			fmt.Printf("  follow-up: %s\n", rec.Command.Title)
		}
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Backend, "backend", "", "Backend command line (overrides config)")
	flag.StringVar(&opts.Backend, "b", "", "Backend command line (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Apply, "apply", false, "Apply the rendered suggestions and print the result")
	flag.BoolVar(&opts.Apply, "a", false, "Apply the rendered suggestions (shorthand)")
	flag.DurationVar(&opts.Wait, "wait", 15*time.Second, "How long to wait for suggestions")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nextedit - next-edit suggestion probe\n\n")
		fmt.Fprintf(os.Stderr, "Usage: nextedit [options] files...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nextedit -b \"nes-server --stdio\" main.py     Request suggestions for a file\n")
		fmt.Fprintf(os.Stderr, "  nextedit -a -b nes-server main.py            Apply what the backend proposes\n")
		fmt.Fprintf(os.Stderr, "  nextedit -c ./nextedit.toml main.py          Use a specific config file\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("nextedit %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level (empty defers to the config file)
	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	opts.Files = flag.Args()
	if len(opts.Files) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	return opts
}
