package models

import (
	"time"

	"github.com/google/uuid"
)

// TestCase is a reusable named input scenario scoped to a Prompt, never to a
// version. Input is a schema-less string map stored as JSONB so adding or
// removing template variables never requires a migration.
type TestCase struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	PromptID  uuid.UUID         `json:"prompt_id" db:"prompt_id"`
	Title     string            `json:"title" db:"title"`
	Input     map[string]string `json:"input" db:"input"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
