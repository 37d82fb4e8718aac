package queue

import "github.com/google/uuid"

const TypeEvaluationBatch = "evaluation:batch"

// EvaluationBatchPayload carries a queued runBatch by reference: the worker
// loads the batch_runs row and executes it.
type EvaluationBatchPayload struct {
	BatchRunID uuid.UUID `json:"batch_run_id"`
}
