package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BatchStatusPending   = "pending"
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
)

// Per-pair outcomes collected into a batch report.
const (
	OutcomeSkipped   = "skipped"
	OutcomeSucceeded = "succeeded"
)

// PairOutcome is the result of one (test case, version) run within a batch.
// Outcome is "skipped", "succeeded" or "failed:<reason>".
type PairOutcome struct {
	TestCaseID      uuid.UUID `json:"test_case_id"`
	PromptVersionID uuid.UUID `json:"prompt_version_id"`
	Outcome         string    `json:"outcome"`
}

// BatchRun is the durable record of a runBatch invocation, so callers can
// poll a long batch that executes on the worker.
type BatchRun struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	PromptID         uuid.UUID     `json:"prompt_id" db:"prompt_id"`
	BaseVersionID    uuid.UUID     `json:"base_version_id" db:"base_version_id"`
	CompareVersionID uuid.UUID     `json:"compare_version_id" db:"compare_version_id"`
	Model            string        `json:"model" db:"model"`
	ForceRerun       bool          `json:"force_rerun" db:"force_rerun"`
	Status           string        `json:"status" db:"status"`
	Report           []PairOutcome `json:"report,omitempty" db:"report"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}
