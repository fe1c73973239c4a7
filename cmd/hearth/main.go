// Command hearth is the Hearth home agent.
//
// Usage:
//
//	hearth init               write an example config file
//	hearth serve              run the agent daemon (cache refresh + schedules)
//	hearth chat               interactive console chat with the agent
//	hearth ask <question>     one-shot question, reply on stdout
//	hearth aliases            list remembered entity aliases
//	hearth usage              token usage summary for the last 30 days
//	hearth version            print version info
//
// Flags:
//
//	-config <path>   config file (default: search standard locations)
//	-o json          machine-readable output where supported
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hearthd/hearth/examples"
	"github.com/hearthd/hearth/internal/agent"
	"github.com/hearthd/hearth/internal/aliases"
	"github.com/hearthd/hearth/internal/buildinfo"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/entities"
	"github.com/hearthd/hearth/internal/homeassistant"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
	"github.com/hearthd/hearth/internal/resolve"
	"github.com/hearthd/hearth/internal/scheduler"
	"github.com/hearthd/hearth/internal/tools"
	"github.com/hearthd/hearth/internal/usage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run dispatches subcommands. Flags are parsed by hand; the flag
// package relies on package-level globals that make run untestable.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var cfgPath, output string
	var rest []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" || args[i] == "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("-config requires a path")
			}
			i++
			cfgPath = args[i]
		case strings.HasPrefix(args[i], "-config="):
			cfgPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-o" || args[i] == "--output":
			if i+1 >= len(args) {
				return fmt.Errorf("-o requires a format")
			}
			i++
			output = args[i]
		case args[i] == "-h" || args[i] == "--help" || args[i] == "help":
			printUsage(stdout)
			return nil
		default:
			rest = append(rest, args[i])
		}
	}

	if len(rest) == 0 {
		printUsage(stderr)
		return fmt.Errorf("no command given")
	}

	switch rest[0] {
	case "init":
		return runInit(stdout, cfgPath)
	case "serve":
		return runServe(ctx, stderr, cfgPath)
	case "chat":
		return runChat(ctx, stdout, stderr, cfgPath)
	case "ask":
		if len(rest) < 2 {
			return fmt.Errorf("usage: hearth ask <question>")
		}
		return runAsk(ctx, stdout, stderr, cfgPath, strings.Join(rest[1:], " "))
	case "aliases":
		return runAliases(stdout, cfgPath, output)
	case "usage":
		return runUsage(stdout, cfgPath, output)
	case "version":
		return runVersion(stdout, output)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `hearth - home agent

Commands:
  init               write an example config file
  serve              run the agent daemon
  chat               interactive console chat
  ask <question>     one-shot question
  aliases            list remembered aliases
  usage              token usage for the last 30 days
  version            print version info

Flags:
  -config <path>     config file path
  -o json            machine-readable output (aliases, usage, version)`)
}

// newLogger builds a slog.Logger writing to w.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func loadConfig(explicit string) (*config.Config, string, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, path, nil
}

// core holds the wired-up agent and the stores behind it.
type core struct {
	cfg     *config.Config
	hub     *homeassistant.Client
	cache   *entities.Cache
	aliases *aliases.Store
	usage   *usage.Store
	agent   *agent.Agent
}

func (c *core) Close() {
	c.usage.Close()
	c.aliases.Close()
}

// buildCore wires stores, clients, and the agent from config.
func buildCore(cfg *config.Config, logger *slog.Logger) (*core, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	aliasStore, err := aliases.Open(filepath.Join(cfg.DataDir, "aliases.db"))
	if err != nil {
		return nil, fmt.Errorf("open alias store: %w", err)
	}

	pricing := make(map[string]usage.Price, len(cfg.Usage.Pricing))
	for model, p := range cfg.Usage.Pricing {
		pricing[model] = usage.Price{
			InputPerMillion:  p.InputPerMillion,
			OutputPerMillion: p.OutputPerMillion,
		}
	}
	usageStore, err := usage.Open(filepath.Join(cfg.DataDir, "usage.db"), pricing)
	if err != nil {
		aliasStore.Close()
		return nil, fmt.Errorf("open usage store: %w", err)
	}

	hub := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, logger)
	cache := entities.NewCache(hub, cfg.Cache.RefreshInterval(), logger)
	resolver := resolve.New(aliasStore, cfg.Resolver.MatchThreshold, cfg.Resolver.MaxCandidates)

	registry := tools.NewRegistry(tools.Deps{
		Hub:      hub,
		Cache:    cache,
		Resolver: resolver,
		Aliases:  aliasStore,
		Logger:   logger,
	})

	ag := agent.New(agent.Config{
		Model:      cfg.Anthropic.Model,
		MaxTokens:  cfg.Anthropic.MaxTokens,
		MaxRounds:  cfg.Agent.MaxRounds,
		RunTimeout: cfg.Agent.RunTimeout(),
	}, agent.Deps{
		LLM:      llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger),
		Registry: registry,
		History:  memory.NewHistory(cfg.Agent.MaxHistory),
		Cache:    cache,
		Aliases:  aliasStore,
		Usage:    usageStore,
		Logger:   logger,
	})

	return &core{
		cfg:     cfg,
		hub:     hub,
		cache:   cache,
		aliases: aliasStore,
		usage:   usageStore,
		agent:   ag,
	}, nil
}

// runInit writes the example config, refusing to overwrite.
func runInit(stdout io.Writer, cfgPath string) error {
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}
	if err := os.WriteFile(cfgPath, examples.ConfigYAML, 0600); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s; fill in home_assistant and anthropic credentials\n", cfgPath)
	return nil
}

func runServe(ctx context.Context, stderr io.Writer, cfgPath string) error {
	logger := newLogger(stderr, slog.LevelInfo, "text")
	logger.Info("starting", "build", buildinfo.String())

	cfg, path, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger = newLogger(stderr, level, cfg.LogFormat)
	logger.Info("config loaded", "path", path, "schedules", len(cfg.Schedules))

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.hub.Ping(ctx); err != nil {
		logger.Warn("hub not reachable at startup", "error", err)
	}
	if err := c.cache.Refresh(ctx); err != nil {
		logger.Warn("initial entity refresh failed", "error", err)
	} else {
		snap := c.cache.Snapshot()
		logger.Info("entity cache primed", "entities", snap.Len())
	}

	go c.cache.Run(ctx)

	sched := scheduler.New(logger, func(ctx context.Context, name, prompt string) {
		outcome, err := c.agent.Handle(ctx, "schedule:"+name, prompt)
		if err != nil {
			logger.Error("scheduled run failed", "task", name, "error", err)
			return
		}
		logger.Info("scheduled run finished",
			"task", name,
			"rounds", outcome.Rounds,
			"reply", outcome.Reply,
		)
	})
	for _, task := range cfg.Schedules {
		if !task.IsEnabled() {
			logger.Info("schedule disabled", "name", task.Name)
			continue
		}
		if err := sched.Add(task.Name, task.Cron, task.Prompt); err != nil {
			return err
		}
	}
	go sched.Run(ctx)

	logger.Info("serving", "tasks", sched.Len())
	<-ctx.Done()
	logger.Info("shutting down", "uptime", buildinfo.Uptime())
	return nil
}

func runChat(ctx context.Context, stdout, stderr io.Writer, cfgPath string) error {
	cfg, _, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger := newLogger(stderr, level, cfg.LogFormat)

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	go c.cache.Run(ctx)

	fmt.Fprintln(stdout, "Hearth ready. Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/reset" {
			c.agent.Reset("console")
			fmt.Fprintln(stdout, "conversation cleared")
			continue
		}

		outcome, err := c.agent.Handle(ctx, "console", text)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		fmt.Fprintln(stdout, outcome.Reply)
	}
}

func runAsk(ctx context.Context, stdout, stderr io.Writer, cfgPath, question string) error {
	cfg, _, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger := newLogger(stderr, level, cfg.LogFormat)

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	outcome, err := c.agent.Handle(ctx, "cli", question)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, outcome.Reply)
	return nil
}

func runAliases(stdout io.Writer, cfgPath, output string) error {
	cfg, _, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	store, err := aliases.Open(filepath.Join(cfg.DataDir, "aliases.db"))
	if err != nil {
		return fmt.Errorf("open alias store: %w", err)
	}
	defer store.Close()

	all, err := store.All()
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	if len(all) == 0 {
		fmt.Fprintln(stdout, "no aliases remembered")
		return nil
	}
	for _, a := range all {
		fmt.Fprintf(stdout, "%-30s %s\n", a.Name, a.EntityID)
	}
	return nil
}

func runUsage(stdout io.Writer, cfgPath, output string) error {
	cfg, _, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	pricing := make(map[string]usage.Price, len(cfg.Usage.Pricing))
	for model, p := range cfg.Usage.Pricing {
		pricing[model] = usage.Price{
			InputPerMillion:  p.InputPerMillion,
			OutputPerMillion: p.OutputPerMillion,
		}
	}
	store, err := usage.Open(filepath.Join(cfg.DataDir, "usage.db"), pricing)
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer store.Close()

	summary, err := store.Since(time.Now().AddDate(0, 0, -30))
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Fprintf(stdout, "last 30 days: %d requests, %d in / %d out tokens, $%.4f\n",
		summary.Requests, summary.InputTokens, summary.OutputTokens, summary.CostUSD)
	return nil
}

func runVersion(stdout io.Writer, output string) error {
	if output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(buildinfo.Info())
	}

	fmt.Fprintln(stdout, buildinfo.String())
	info := buildinfo.Info()
	for _, key := range []string{"go_version", "os", "arch"} {
		fmt.Fprintf(stdout, "  %s: %s\n", key, info[key])
	}
	return nil
}
