package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/agentgw/internal/api"
	"github.com/mattjoyce/agentgw/internal/audit"
	"github.com/mattjoyce/agentgw/internal/auth"
	"github.com/mattjoyce/agentgw/internal/catalog"
	"github.com/mattjoyce/agentgw/internal/config"
	"github.com/mattjoyce/agentgw/internal/dispatch"
	"github.com/mattjoyce/agentgw/internal/events"
	"github.com/mattjoyce/agentgw/internal/handlers"
	"github.com/mattjoyce/agentgw/internal/lock"
	"github.com/mattjoyce/agentgw/internal/log"
	"github.com/mattjoyce/agentgw/internal/permission"
	"github.com/mattjoyce/agentgw/internal/privacy"
	"github.com/mattjoyce/agentgw/internal/retryq"
	"github.com/mattjoyce/agentgw/internal/scheduler"
	"github.com/mattjoyce/agentgw/internal/storage"
	"github.com/mattjoyce/agentgw/internal/tui/watch"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "watch":
		os.Exit(runWatch(args))
	case "retryq":
		os.Exit(runRetryQNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("agentgw version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`agentgw - Action dispatch gateway for assistant function calls

Usage:
  agentgw <command> [flags]

Commands:
  serve           Run the gateway service in foreground
  watch           Live terminal monitor for a running gateway
  retryq run      Process one batch of the retry queue and exit
  config check    Validate a configuration file
  version         Show version information
  help            Show this help message
`)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("agentgw starting", "version", version)

	lockPath := filepath.Join(filepath.Dir(cfg.Store.Path), "agentgw.lock")
	pidLock, err := lock.Acquire(lockPath)
	if err != nil {
		logger.Error("failed to acquire pid lock", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Store.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Store.Path)

	chatStore := handlers.NewChatStore(db)
	hub := events.NewHub(200)
	audits := audit.NewStore(db)
	queue := retryq.NewSQLStore(db)

	dispatcher, err := dispatch.New(
		catalog.NewRegistry(),
		handlers.NewSet(chatStore, handlers.NewKeywordIndex(chatStore)),
		permission.NewSQLChecker(db),
		audits, queue,
		privacy.NewHasher(cfg.Privacy.HashSalt),
		hub, cfg.Dispatch.Timeout,
	)
	if err != nil {
		logger.Error("dispatcher init failed", "error", err)
		return 1
	}

	processor := retryq.NewProcessor(queue, dispatcher, retryq.Options{
		BatchSize:   cfg.Retry.BatchSize,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffCap:  cfg.Retry.BackoffCap,
	})

	sched, err := scheduler.New(scheduler.Config{
		RetrySchedule: cfg.Retry.Schedule,
		PruneSchedule: cfg.Audit.PruneSchedule,
		Retention:     cfg.Audit.Retention,
	}, processor, audits, hub)
	if err != nil {
		logger.Error("scheduler init failed", "error", err)
		return 1
	}
	sched.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = sched.Stop(stopCtx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{Token: t.Token, UserID: t.UserID, Scopes: t.Scopes})
		}
		server := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: tokens,
		}, dispatcher, audits, queue, hub, log.WithComponent("api"))
		go func() {
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				errCh <- err
			}
		}()
	} else {
		logger.Warn("api disabled; only scheduled maintenance will run")
	}

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errCh:
		logger.Error("service error", "error", err)
		cancel()
		return 1
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("url", "http://127.0.0.1:8080", "Gateway base URL")
	token := fs.String("token", os.Getenv("AGENTGW_TOKEN"), "Bearer token (events:ro scope)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "A bearer token is required (flag -token or AGENTGW_TOKEN)")
		return 1
	}

	p := tea.NewProgram(watch.New(*apiURL, *token))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
		return 1
	}
	return 0
}

func runRetryQNoun(args []string) int {
	if len(args) < 1 || args[0] != "run" {
		fmt.Fprintln(os.Stderr, "Usage: agentgw retryq run [-config path]")
		return 1
	}
	fs := flag.NewFlagSet("retryq run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	chatStore := handlers.NewChatStore(db)
	queue := retryq.NewSQLStore(db)
	dispatcher, err := dispatch.New(
		catalog.NewRegistry(),
		handlers.NewSet(chatStore, handlers.NewKeywordIndex(chatStore)),
		permission.NewSQLChecker(db),
		audit.NewStore(db), queue,
		privacy.NewHasher(cfg.Privacy.HashSalt),
		nil, cfg.Dispatch.Timeout,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dispatcher init failed: %v\n", err)
		return 1
	}

	processor := retryq.NewProcessor(queue, dispatcher, retryq.Options{
		BatchSize:   cfg.Retry.BatchSize,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffCap:  cfg.Retry.BackoffCap,
	})
	stats, err := processor.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retry run failed: %v\n", err)
		return 1
	}
	fmt.Printf("processed=%d succeeded=%d failed=%d skipped=%d\n",
		stats.Processed, stats.Succeeded, stats.Failed, stats.Skipped)
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || args[0] != "check" {
		fmt.Fprintln(os.Stderr, "Usage: agentgw config check [-config path]")
		return 1
	}
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		return 1
	}
	fmt.Printf("OK: %s (timeout %s, retention %s, retry batch %d)\n",
		cfg.Service.Name, cfg.Dispatch.Timeout, cfg.Audit.Retention, cfg.Retry.BatchSize)
	return 0
}
