package testcase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/models"
)

// Registry owns reusable test inputs. A test case belongs to a prompt, not
// to any version of it, so it survives every subsequent edit. The input map
// is stored as JSONB with no schema: keys do not have to match any
// template's variables.
type Registry struct {
	db database.DB
}

func NewRegistry(db database.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Create(ctx context.Context, promptID uuid.UUID, title string, input map[string]string) (*models.TestCase, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if input == nil {
		input = map[string]string{}
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	var tc models.TestCase
	var raw json.RawMessage
	err = r.db.QueryRow(ctx,
		`INSERT INTO test_cases (prompt_id, title, input)
		 VALUES ($1, $2, $3)
		 RETURNING id, prompt_id, title, input, created_at`,
		promptID, title, inputJSON,
	).Scan(&tc.ID, &tc.PromptID, &tc.Title, &raw, &tc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert test case: %w", err)
	}
	if err := json.Unmarshal(raw, &tc.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	return &tc, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.TestCase, error) {
	var tc models.TestCase
	var raw json.RawMessage
	err := r.db.QueryRow(ctx,
		`SELECT id, prompt_id, title, input, created_at FROM test_cases WHERE id = $1`,
		id,
	).Scan(&tc.ID, &tc.PromptID, &tc.Title, &raw, &tc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("test case %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get test case: %w", err)
	}
	if err := json.Unmarshal(raw, &tc.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	return &tc, nil
}

// List returns the prompt's test cases in creation order, which is the
// stable presentation order comparison rows follow.
func (r *Registry) List(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, prompt_id, title, input, created_at FROM test_cases
		 WHERE prompt_id = $1 ORDER BY created_at, id`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var cases []models.TestCase
	for rows.Next() {
		var tc models.TestCase
		var raw json.RawMessage
		if err := rows.Scan(&tc.ID, &tc.PromptID, &tc.Title, &raw, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		if err := json.Unmarshal(raw, &tc.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// Delete removes the test case; its evaluations go with it via the foreign
// key cascade.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("test case %s: %w", id, models.ErrNotFound)
	}
	return nil
}
