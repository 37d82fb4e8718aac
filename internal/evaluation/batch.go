package evaluation

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

// BatchStore records batch runs so a caller can poll a long batch that
// executes on the worker.
type BatchStore struct {
	db database.DB
}

func NewBatchStore(db database.DB) *BatchStore {
	return &BatchStore{db: db}
}

func (s *BatchStore) Create(ctx context.Context, b *models.BatchRun) (*models.BatchRun, error) {
	var created models.BatchRun
	err := s.db.QueryRow(ctx,
		`INSERT INTO batch_runs (prompt_id, base_version_id, compare_version_id, model, force_rerun, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, prompt_id, base_version_id, compare_version_id, model, force_rerun, status, created_at, updated_at`,
		b.PromptID, b.BaseVersionID, b.CompareVersionID, b.Model, b.ForceRerun, models.BatchStatusPending,
	).Scan(&created.ID, &created.PromptID, &created.BaseVersionID, &created.CompareVersionID,
		&created.Model, &created.ForceRerun, &created.Status, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert batch run: %w", err)
	}
	return &created, nil
}

func (s *BatchStore) Get(ctx context.Context, id uuid.UUID) (*models.BatchRun, error) {
	var b models.BatchRun
	var report []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, base_version_id, compare_version_id, model, force_rerun, status, report, created_at, updated_at
		 FROM batch_runs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.PromptID, &b.BaseVersionID, &b.CompareVersionID,
		&b.Model, &b.ForceRerun, &b.Status, &report, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("batch run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch run: %w", err)
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &b.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	return &b, nil
}

func (s *BatchStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE batch_runs SET status = $1, updated_at = now() WHERE id = $2`,
		models.BatchStatusRunning, id,
	)
	if err != nil {
		return fmt.Errorf("mark batch running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch run %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *BatchStore) Complete(ctx context.Context, id uuid.UUID, report []models.PairOutcome) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE batch_runs SET status = $1, report = $2, updated_at = now() WHERE id = $3`,
		models.BatchStatusCompleted, reportJSON, id,
	)
	if err != nil {
		return fmt.Errorf("complete batch run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch run %s: %w", id, models.ErrNotFound)
	}
	return nil
}
