// Command standup-bot runs the standup conversation bot: it listens for
// chat events over Socket Mode, drives the conversation graph, and posts
// the finished update back to the channel.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dailysync/standup-bot/internal/bot"
	"github.com/dailysync/standup-bot/internal/config"
	"github.com/dailysync/standup-bot/internal/health"
	"github.com/dailysync/standup-bot/internal/llm"
	"github.com/dailysync/standup-bot/internal/session"
	"github.com/dailysync/standup-bot/internal/slack"
	"github.com/dailysync/standup-bot/internal/standup"
	"github.com/dailysync/standup-bot/pkg/convograph/checkpoint"
	"github.com/dailysync/standup-bot/pkg/convograph/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetricsRecorder()
	if err != nil {
		return err
	}

	gateway := llm.NewGateway(client,
		llm.WithTimeout(cfg.OpenAI.Timeout),
		llm.WithRetry(llm.RetryConfig{
			MaxAttempts:    cfg.Run.MaxAttempts,
			InitialBackoff: cfg.Run.InitialBackoff,
			MaxBackoff:     cfg.Run.MaxBackoff,
			BackoffFactor:  2.0,
			Jitter:         0.1,
		}),
		llm.WithGatewayLogger(logger),
		llm.WithGatewayMetrics(metrics),
	)

	graph, err := standup.BuildGraph(standup.NewNodes(gateway, nil))
	if err != nil {
		return err
	}

	slackClient, err := slack.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken,
		slack.WithClientLogger(logger))
	if err != nil {
		return err
	}

	dispatcherOpts := []bot.Option{
		bot.WithTrigger(cfg.Trigger),
		bot.WithMaxSteps(cfg.Run.MaxSteps),
		bot.WithLogger(logger),
		bot.WithMetrics(metrics),
	}
	if cfg.Checkpoint.Path != "" {
		store, err := checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		dispatcherOpts = append(dispatcherOpts, bot.WithSnapshots(store))
	}

	sessions := session.NewManager()
	dispatcher := bot.NewDispatcher(graph, sessions, slackClient, dispatcherOpts...)
	listener := slack.NewSocketListener(slackClient, dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthSrv *health.Server
	if cfg.Health.Addr != "" {
		healthSrv = health.NewServer(cfg.Health.Addr, logger)
		healthSrv.Start()
		healthSrv.SetReady(true)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("standup bot starting", "trigger", cfg.Trigger, "model", cfg.OpenAI.Model)

	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("standup bot stopped")
	return nil
}
