package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/database"
	"github.com/promptlab/promptlab/internal/models"
)

// EventBatchCompleted fires when a queued batch run finishes, with the full
// per-pair report as payload.
const EventBatchCompleted = "batch.completed"

type Service struct {
	db         database.DB
	dispatcher *Dispatcher
}

func NewService(db database.DB, dispatcher *Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

type CreateRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Webhook, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("url is required: %w", models.ErrValidation)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	eventsJSON, _ := json.Marshal(req.Events)

	var wh models.Webhook
	var rawEvents json.RawMessage
	err = s.db.QueryRow(ctx,
		`INSERT INTO webhooks (url, events, secret, is_active)
		 VALUES ($1, $2, $3, true)
		 RETURNING id, url, events, is_active, created_at`,
		req.URL, eventsJSON, secret,
	).Scan(&wh.ID, &wh.URL, &rawEvents, &wh.IsActive, &wh.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	if err := json.Unmarshal(rawEvents, &wh.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	// Return secret only on creation
	wh.Secret = secret

	return &wh, nil
}

func (s *Service) List(ctx context.Context) ([]models.Webhook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, url, events, is_active, created_at FROM webhooks ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var hooks []models.Webhook
	for rows.Next() {
		var wh models.Webhook
		var rawEvents json.RawMessage
		if err := rows.Scan(&wh.ID, &wh.URL, &rawEvents, &wh.IsActive, &wh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		if err := json.Unmarshal(rawEvents, &wh.Events); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}
		hooks = append(hooks, wh)
	}
	return hooks, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// Notify fans an event out to every active webhook subscribed to it.
func (s *Service) Notify(ctx context.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, url, secret, events FROM webhooks WHERE is_active = true`,
	)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var url, secret string
		var rawEvents json.RawMessage
		if err := rows.Scan(&id, &url, &secret, &rawEvents); err != nil {
			return fmt.Errorf("scan webhook: %w", err)
		}
		var events []string
		if err := json.Unmarshal(rawEvents, &events); err != nil {
			return fmt.Errorf("unmarshal events: %w", err)
		}
		if !subscribed(events, event) {
			continue
		}
		s.dispatcher.Enqueue(DeliveryRequest{
			WebhookID: id,
			URL:       url,
			Secret:    secret,
			Event:     event,
			Payload:   data,
		})
	}
	return rows.Err()
}

func subscribed(events []string, event string) bool {
	for _, e := range events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
