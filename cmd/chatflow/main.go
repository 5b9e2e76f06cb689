// chatflow is the event-driven action pipeline server: webhook ingestion,
// change-capture/queue dispatch, rule matching, NLP parsing, action
// execution, real-time fan-out, and background recovery, all in one
// process (spec §1).
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fcamachol/chatflow/pkg/action"
	"github.com/fcamachol/chatflow/pkg/api"
	"github.com/fcamachol/chatflow/pkg/calendar"
	"github.com/fcamachol/chatflow/pkg/changefeed"
	"github.com/fcamachol/chatflow/pkg/config"
	"github.com/fcamachol/chatflow/pkg/database"
	"github.com/fcamachol/chatflow/pkg/fanout"
	"github.com/fcamachol/chatflow/pkg/metrics"
	"github.com/fcamachol/chatflow/pkg/nlp"
	"github.com/fcamachol/chatflow/pkg/provider"
	"github.com/fcamachol/chatflow/pkg/queue"
	"github.com/fcamachol/chatflow/pkg/recovery"
	"github.com/fcamachol/chatflow/pkg/rules"
	"github.com/fcamachol/chatflow/pkg/storage"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

// publisherFanout adapts *fanout.Publisher's fanout-typed payloads to the
// local payload shapes pkg/action declares, so pkg/action need not import
// pkg/fanout just to name two structurally-identical field sets.
type publisherFanout struct {
	pub *fanout.Publisher
}

func (f publisherFanout) PublishEntityCreated(ctx context.Context, instanceID string, payload action.EntityCreatedPayload) error {
	return f.pub.PublishEntityCreated(ctx, instanceID, fanout.EntityCreatedPayload{
		EntityType: payload.EntityType,
		EntityID:   payload.EntityID,
	})
}

func (f publisherFanout) PublishRuleExecuted(ctx context.Context, instanceID string, payload action.RuleExecutedPayload) error {
	return f.pub.PublishRuleExecuted(ctx, instanceID, fanout.RuleExecutedPayload{
		RuleID: payload.RuleID,
		Status: payload.Status,
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded, relying on process environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database and applied migrations")

	gw := storage.New(dbClient.DB)
	metricsRegistry := metrics.NewRegistry()

	connString := cfg.Database.ConnString()
	fanPublisher := fanout.NewPublisher(dbClient.DB)
	connManager := fanout.NewManager(10 * time.Second)
	notifyListener := fanout.NewNotifyListener(connString, connManager)
	connManager.SetListener(notifyListener)

	providerClient := provider.NewClient(cfg.Provider)
	calendarResolver := calendar.NewResolver()
	ruleEngine := rules.NewEngine(gw, cfg.Rules.CacheTTL, cfg.Rules.CacheSweepEvery)
	nlpService := nlp.NewService(gw)

	executor := action.NewExecutor(gw, publisherFanout{pub: fanPublisher}, providerClient, calendarResolver, ruleEngine, nlpService, nil)
	workerPool := queue.NewWorkerPool("chatflow-1", gw, &cfg.Queue, executor)

	changefeedConsumer := changefeed.NewConsumer(gw, connString, cfg.Changefeed.BatchSize)

	webhookAdapter := webhook.New(gw, fanPublisher)
	sweeper := recovery.NewSweeper(gw, webhookAdapter, cfg.Recovery, metricsRegistry.DeadLetterGauge())

	server := api.NewServer(cfg, dbClient, gw, webhookAdapter, ruleEngine, sweeper, workerPool, connManager, providerClient, metricsRegistry)

	if err := notifyListener.Start(ctx); err != nil {
		log.Fatalf("failed to start real-time listener: %v", err)
	}
	defer notifyListener.Stop(context.Background())

	if err := changefeedConsumer.Start(ctx); err != nil {
		log.Fatalf("failed to start change-feed consumer: %v", err)
	}
	defer changefeedConsumer.Stop(context.Background())

	if err := workerPool.Start(ctx); err != nil {
		log.Fatalf("failed to start worker pool: %v", err)
	}
	defer workerPool.Stop()

	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("failed to start recovery sweeper: %v", err)
	}
	defer sweeper.Stop()

	go func() {
		slog.Info("http server listening", "port", cfg.HTTP.Port)
		if err := server.Start(":" + cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
}
