// Palaver is a conversational Telegram bot backed by a text-completion
// model.
//
// It records chat history per conversation, builds token-budgeted ChatML
// prompts, relays them to a llama.cpp, Kobold, or OpenAI-style backend, and
// executes the tool calls the model embeds in its responses. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	palaver serve            Connect to Telegram and serve chats
//	palaver ask <question>   Ask a single question (for testing)
//	palaver version          Print version and build information
//	palaver -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/go-github/v69/github"

	"github.com/mwadsworth/palaver/internal/buildinfo"
	"github.com/mwadsworth/palaver/internal/chatml"
	"github.com/mwadsworth/palaver/internal/config"
	"github.com/mwadsworth/palaver/internal/history"
	"github.com/mwadsworth/palaver/internal/httpkit"
	"github.com/mwadsworth/palaver/internal/llm"
	"github.com/mwadsworth/palaver/internal/prompt"
	"github.com/mwadsworth/palaver/internal/respond"
	"github.com/mwadsworth/palaver/internal/telegram"
	"github.com/mwadsworth/palaver/internal/tokens"
	"github.com/mwadsworth/palaver/internal/tools"
)

// main constructs the OS-level environment and delegates to [run], keeping
// os.Exit and os.Args out of the application logic so the lifecycle can be
// driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses arguments by hand. The flag package relies on package-level
// globals, which makes it impossible to call run() concurrently from tests;
// the argument surface here is small enough that manual parsing is clearer
// than bringing in a CLI framework.
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
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: palaver ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Palaver - Conversational Telegram bot")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: palaver [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Connect to Telegram and serve chats")
	fmt.Fprintln(w, "  init [dir]   Write a starter palaver.yaml (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./palaver.yaml, ~/.config/palaver/config.yaml, /etc/palaver/config.yaml")
	return nil
}

// relay bundles the constructed response pipeline.
type relay struct {
	store    *history.SQLiteStore
	sessions *llm.Sessions
	orch     *respond.Orchestrator
}

// buildRelay wires the full pipeline from config: store, backend, prompt
// builder, tool registry, orchestrator.
func buildRelay(cfg *config.Config, logger *slog.Logger) (*relay, error) {
	store, err := history.NewSQLiteStore(cfg.HistoryPath(), cfg.History.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	backend, err := llm.NewBackendFromConfig(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	sessions := llm.NewSessions()
	client := llm.NewClient(backend, sessions, llm.Params{
		Temperature:   cfg.Model.Temperature,
		TopP:          cfg.Model.TopP,
		TopK:          cfg.Model.TopK,
		MaxNewTokens:  cfg.Model.MaxLength,
		ContextWindow: cfg.Model.MaxTokens,
		Stop:          chatml.StopSequences(cfg.Persona.Name),
	}, logger)

	var registry *tools.Registry
	catalogue := ""
	if cfg.Tools.Enabled {
		toolClient := httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		)
		gh := github.NewClient(toolClient)
		if cfg.Tools.GitHubToken != "" {
			gh = gh.WithAuthToken(cfg.Tools.GitHubToken)
		}
		registry = tools.NewRegistry(toolClient, gh)
		catalogue = registry.Describe()
	}

	estimator := tokens.RatioEstimator{}
	builder := prompt.NewBuilder(store, estimator, prompt.Options{
		Persona:      cfg.Persona.Name,
		Budget:       cfg.Model.MaxTokens,
		BatchSize:    cfg.History.BatchSize,
		Catalogue:    catalogue,
		MaxToolDepth: cfg.Model.MaxToolDepth,
		Logger:       logger,
	})

	orch := respond.New(builder, client, estimator, respond.Options{
		Registry:     registry,
		MaxTries:     cfg.Model.MaxTries,
		MaxToolDepth: cfg.Model.MaxToolDepth,
		MaxLength:    cfg.Model.MaxLength,
		Logger:       logger,
	})

	return &relay{store: store, sessions: sessions, orch: orch}, nil
}

// runServe connects to Telegram and blocks until interrupted.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("starting", "version", buildinfo.Version, "config", cfgPath)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required for serve")
	}

	r, err := buildRelay(cfg, logger)
	if err != nil {
		return err
	}
	defer r.store.Close()

	bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.PollTimeoutSec,
		cfg.Persona.Name, r.store, r.sessions, r.orch, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = bot.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// runAsk runs one response cycle against the configured backend and prints
// the result. The exchange is recorded in a throwaway conversation so the
// prompt machinery runs exactly as it does in serve.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(stdout, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	r, err := buildRelay(cfg, logger)
	if err != nil {
		return err
	}
	defer r.store.Close()

	question := strings.Join(args, " ")
	conv := history.ConversationID("cli")

	if err := r.store.Append(history.Message{
		ID:           int(time.Now().Unix()),
		Conversation: conv,
		Sender:       "user",
		Text:         question,
		Timestamp:    time.Now(),
	}); err != nil {
		return fmt.Errorf("record question: %w", err)
	}

	return r.orch.Respond(ctx, conv, prompt.ChatDetails{
		Type:      "private",
		Username:  "user",
		FirstName: "CLI",
	}, func(e respond.Event) {
		switch e.Kind {
		case respond.EventUpdate:
			logger.Info("working", "status", e.Text)
		default:
			fmt.Fprintln(stdout, e.Text)
		}
	})
}

func newLogger(w io.Writer, levelName string) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(handler), nil
}

// loadConfig locates and parses the YAML configuration file, then validates
// it. If explicit is non-empty that exact path is used; otherwise
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
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, err
	}

	return cfg, cfgPath, nil
}
