package models

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is the durable identity for a family of template revisions and
// their test cases. Only the title is mutable after creation.
type Prompt struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PromptVersion is one immutable snapshot of template text. The per-prompt
// sequence number is the authoritative order; "latest" = max sequence.
type PromptVersion struct {
	ID       uuid.UUID `json:"id" db:"id"`
	PromptID uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Sequence int       `json:"sequence" db:"sequence"`
	Template string    `json:"template" db:"template"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
