package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/models"
)

// Service owns prompts and their immutable version history. A version row
// is append-only: edits always create a new row with the next per-prompt
// sequence number, and "latest" is the maximum sequence.
type Service struct {
	db database.DB
}

func NewService(db database.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, projectID uuid.UUID, title string) (*models.Prompt, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}

	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`INSERT INTO prompts (project_id, title)
		 VALUES ($1, $2)
		 RETURNING id, project_id, title, created_at`,
		projectID, title,
	).Scan(&p.ID, &p.ProjectID, &p.Title, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT id, project_id, title, created_at FROM prompts WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.ProjectID, &p.Title, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, title, created_at FROM prompts
		 WHERE project_id = $1 ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// RenameTitle is the only mutation a prompt supports after creation.
func (s *Service) RenameTitle(ctx context.Context, id uuid.UUID, title string) error {
	if title == "" {
		return fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	tag, err := s.db.Exec(ctx, `UPDATE prompts SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("rename prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("prompt %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CreateVersion appends a new immutable snapshot. The prompt row is locked
// so two concurrent edits cannot claim the same sequence number.
func (s *Service) CreateVersion(ctx context.Context, promptID uuid.UUID, template string) (*models.PromptVersion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM prompts WHERE id = $1 FOR UPDATE`, promptID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prompt %s: %w", promptID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock prompt: %w", err)
	}

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (prompt_id, sequence, template)
		 VALUES ($1, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM prompt_versions WHERE prompt_id = $1), $2)
		 RETURNING id, prompt_id, sequence, template, created_at`,
		promptID, template,
	).Scan(&v.ID, &v.PromptID, &v.Sequence, &v.Template, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &v, nil
}

func (s *Service) GetLatest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, sequence, template, created_at
		 FROM prompt_versions WHERE prompt_id = $1
		 ORDER BY sequence DESC LIMIT 1`,
		promptID,
	).Scan(&v.ID, &v.PromptID, &v.Sequence, &v.Template, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no versions for prompt %s: %w", promptID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return &v, nil
}

func (s *Service) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, sequence, template, created_at
		 FROM prompt_versions WHERE id = $1`,
		versionID,
	).Scan(&v.ID, &v.PromptID, &v.Sequence, &v.Template, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", versionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

func (s *Service) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, sequence, template, created_at
		 FROM prompt_versions WHERE prompt_id = $1 ORDER BY sequence`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		var v models.PromptVersion
		if err := rows.Scan(&v.ID, &v.PromptID, &v.Sequence, &v.Template, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
