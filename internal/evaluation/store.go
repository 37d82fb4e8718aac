package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/models"
)

// Store persists evaluation results. The at-most-one-row-per-pair invariant
// lives in the schema (composite unique constraint), and Replace goes
// through a single upsert statement so a concurrent reader never sees the
// pair transiently empty during replacement.
type Store struct {
	db database.DB
}

func NewStore(db database.DB) *Store {
	return &Store{db: db}
}

const evaluationColumns = `id, test_case_id, prompt_version_id, model, rendered_prompt, output,
	 input_tokens, output_tokens, cost_usd, latency_ms, created_at, updated_at`

func scanEvaluation(row pgx.Row, e *models.Evaluation) error {
	return row.Scan(&e.ID, &e.TestCaseID, &e.PromptVersionID, &e.Model, &e.RenderedPrompt, &e.Output,
		&e.InputTokens, &e.OutputTokens, &e.CostUSD, &e.LatencyMs, &e.CreatedAt, &e.UpdatedAt)
}

func (s *Store) Get(ctx context.Context, testCaseID, versionID uuid.UUID) (*models.Evaluation, error) {
	var e models.Evaluation
	err := scanEvaluation(s.db.QueryRow(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE test_case_id = $1 AND prompt_version_id = $2`,
		testCaseID, versionID,
	), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("evaluation for pair (%s, %s): %w", testCaseID, versionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return &e, nil
}

// Replace upserts the result for the (test case, version) pair in one
// statement. Whichever of two concurrent writers commits last wins with a
// fully formed row; there is never a duplicate and never a gap.
func (s *Store) Replace(ctx context.Context, e *models.Evaluation) (*models.Evaluation, error) {
	var stored models.Evaluation
	err := scanEvaluation(s.db.QueryRow(ctx,
		`INSERT INTO evaluations
		   (test_case_id, prompt_version_id, model, rendered_prompt, output,
		    input_tokens, output_tokens, cost_usd, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (test_case_id, prompt_version_id) DO UPDATE SET
		   model = EXCLUDED.model,
		   rendered_prompt = EXCLUDED.rendered_prompt,
		   output = EXCLUDED.output,
		   input_tokens = EXCLUDED.input_tokens,
		   output_tokens = EXCLUDED.output_tokens,
		   cost_usd = EXCLUDED.cost_usd,
		   latency_ms = EXCLUDED.latency_ms,
		   updated_at = now()
		 RETURNING `+evaluationColumns,
		e.TestCaseID, e.PromptVersionID, e.Model, e.RenderedPrompt, e.Output,
		e.InputTokens, e.OutputTokens, e.CostUSD, e.LatencyMs,
	), &stored)
	if err != nil {
		return nil, fmt.Errorf("replace evaluation: %w", err)
	}
	return &stored, nil
}

// ListByVersion returns every stored result for one version, used by the
// comparison assembler to join against the test case registry.
func (s *Store) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]models.Evaluation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE prompt_version_id = $1`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		var e models.Evaluation
		if err := scanEvaluation(rows, &e); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
