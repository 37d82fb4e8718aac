package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/evaluation"
	"github.com/promptlab/promptlab/internal/models"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/webhook"
)

// EvaluationWorker executes queued batch runs: load the batch record, fan
// the pairs out through the runner, persist the report, invalidate cached
// comparison views and notify subscribers.
type EvaluationWorker struct {
	runner   *evaluation.Runner
	batches  *evaluation.BatchStore
	compares *cache.CompareCache
	webhooks *webhook.Service
}

func NewEvaluationWorker(runner *evaluation.Runner, batches *evaluation.BatchStore, compares *cache.CompareCache, webhooks *webhook.Service) *EvaluationWorker {
	return &EvaluationWorker{
		runner:   runner,
		batches:  batches,
		compares: compares,
		webhooks: webhooks,
	}
}

func (w *EvaluationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EvaluationBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	batch, err := w.batches.Get(ctx, payload.BatchRunID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The batch row was cascade-deleted; nothing to do.
			slog.Warn("batch run vanished before execution", "batch_run_id", payload.BatchRunID)
			return nil
		}
		return err
	}

	if err := w.batches.MarkRunning(ctx, batch.ID); err != nil {
		return err
	}

	report, err := w.runner.RunBatch(ctx, batch.PromptID, batch.BaseVersionID, batch.CompareVersionID, batch.Model, batch.ForceRerun)
	if err != nil {
		return fmt.Errorf("run batch %s: %w", batch.ID, err)
	}

	if err := w.batches.Complete(ctx, batch.ID, report); err != nil {
		return err
	}

	if w.compares != nil {
		if err := w.compares.Invalidate(ctx, batch.PromptID); err != nil {
			slog.Warn("compare cache invalidation failed", "error", err, "prompt_id", batch.PromptID)
		}
	}

	if w.webhooks != nil {
		batch.Status = models.BatchStatusCompleted
		batch.Report = report
		if err := w.webhooks.Notify(ctx, webhook.EventBatchCompleted, batch); err != nil {
			slog.Warn("webhook notify failed", "error", err, "batch_run_id", batch.ID)
		}
	}

	slog.Info("batch run completed", "batch_run_id", batch.ID, "pairs", len(report))
	return nil
}
