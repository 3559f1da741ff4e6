package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vampirenirmal/docagent/internal/agent"
	"github.com/vampirenirmal/docagent/internal/config"
	"github.com/vampirenirmal/docagent/internal/core"
	"github.com/vampirenirmal/docagent/internal/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docagent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	repoPath := flag.String("repo-path", ".", "repository to document")
	configPath := flag.String("config-path", "", "config file (default $DOCAGENT_CONFIG, then XDG path)")
	orderMode := flag.String("order-mode", "", "traversal order: dependency_first, random_node, random_file")
	testMode := flag.String("test-mode", "", "test mode: none, placeholder, context_print")
	overwrite := flag.Bool("overwrite-docstrings", false, "replace existing docstrings instead of keeping them")
	graphOut := flag.String("graph-out", "", "directory for the dependency graph export")
	seed := flag.Int64("seed", 0, "seed for the random order modes (0 picks one)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *orderMode != "" {
			c.Flow.OrderMode = *orderMode
		}
		if *testMode != "" {
			c.Flow.TestMode = *testMode
		}
		if *overwrite {
			c.Flow.OverwriteDocstrings = true
		}
		if *graphOut != "" {
			c.Paths.GraphDir = *graphOut
		}
		if *seed != 0 {
			c.Flow.Seed = *seed
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usage := agent.NewTracker(3.0, 15.0)
	gen := agent.NewClient(cfg.AI.APIKey,
		agent.WithAPIConfig(cfg.AI.BaseURL, cfg.AI.Model),
		agent.WithTimeout(time.Duration(cfg.AI.Timeout)*time.Second),
		agent.WithRetry(cfg.Flow.MaxRetries),
		agent.WithRateLimit(cfg.Flow.RateLimit.RequestsPerMinute, cfg.Flow.RateLimit.BurstSize),
		agent.WithUsage(usage),
		agent.WithLogger(logger))
	search := agent.NewSearchClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Model,
		agent.WithSearchUsage(usage),
		agent.WithSearchLogger(logger))

	runner := core.NewRunner(cfg, gen, search,
		agent.NewCounter(), usage,
		orchestrator.NewLogSink(logger), logger)

	sum, err := runner.Run(ctx, *repoPath)
	printSummary(sum)
	return err
}

func printSummary(sum core.Summary) {
	fmt.Printf("documented: %d\n", sum.Documented)
	fmt.Printf("forced:     %d\n", sum.Forced)
	fmt.Printf("skipped:    %d\n", sum.Skipped)
	fmt.Printf("failed:     %d\n", sum.Failed)
	fmt.Printf("requests:   %d (input tokens %d, output tokens %d, est. cost $%.4f)\n",
		sum.Usage.Requests, sum.Usage.InputTokens, sum.Usage.OutputTokens, sum.Usage.Cost)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
