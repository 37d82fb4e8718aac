package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/config"
	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/evaluation"
	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/prompt"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/queue/workers"
	"github.com/promptlab/promptlab/internal/testcase"
	"github.com/promptlab/promptlab/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	promptSvc := prompt.NewService(db)
	registry := testcase.NewRegistry(db)
	evalStore := evaluation.NewStore(db)
	batchStore := evaluation.NewBatchStore(db)
	gateway := llm.NewGateway(cfg.LLM)
	runner := evaluation.NewRunner(promptSvc, registry, evalStore, gateway, cfg.Eval.BatchConcurrency)
	compareCache := cache.NewCompareCache(rdb, time.Duration(cfg.Eval.CompareCacheTTLSeconds)*time.Second)
	dispatcher := webhook.NewDispatcher()
	webhookSvc := webhook.NewService(db, dispatcher)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One batch task at a time per worker; the runner bounds its
			// own generation concurrency inside the batch.
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registryMux := queue.NewHandlersRegistry()
	evalWorker := workers.NewEvaluationWorker(runner, batchStore, compareCache, webhookSvc)
	registryMux.Register(queue.TypeEvaluationBatch, asynq.HandlerFunc(evalWorker.ProcessTask))

	slog.Info("starting worker", "batch_concurrency", cfg.Eval.BatchConcurrency)
	if err := srv.Run(registryMux.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
