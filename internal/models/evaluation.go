package models

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation is the stored result of rendering one TestCase against one
// PromptVersion and invoking generation. The (test_case_id,
// prompt_version_id) pair is the natural key of the experiment: at most one
// row exists per pair, enforced by a composite unique constraint.
type Evaluation struct {
	ID              uuid.UUID `json:"id" db:"id"`
	TestCaseID      uuid.UUID `json:"test_case_id" db:"test_case_id"`
	PromptVersionID uuid.UUID `json:"prompt_version_id" db:"prompt_version_id"`
	Model           string    `json:"model" db:"model"`
	RenderedPrompt  string    `json:"rendered_prompt,omitempty" db:"rendered_prompt"`
	Output          string    `json:"output" db:"output"`
	InputTokens     int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens    int       `json:"output_tokens" db:"output_tokens"`
	CostUSD         float64   `json:"cost_usd" db:"cost_usd"`
	LatencyMs       int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
