package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/onestopradio/streamcast/pkg/models"
)

// WebhookRepository provides persistence for webhook subscriptions and
// delivery records.
type WebhookRepository struct {
	db *DB
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// GetWebhooksByEvent retrieves active webhooks subscribed to an event
func (r *WebhookRepository) GetWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	var field string
	switch event {
	case models.WebhookEventStreamProvisioned:
		field = "stream_provisioned"
	case models.WebhookEventStreamActivated:
		field = "stream_activated"
	case models.WebhookEventStreamSuspended:
		field = "stream_suspended"
	case models.WebhookEventStreamTerminated:
		field = "stream_terminated"
	case models.WebhookEventStreamError:
		field = "stream_error"
	default:
		return nil, fmt.Errorf("unknown webhook event %q", event)
	}

	query := `
		SELECT id, user_id, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE is_active AND (events ->> $1)::boolean
	`

	rows, err := r.db.Pool.Query(ctx, query, field)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhooks: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func collectWebhooks(rows pgx.Rows) ([]*models.Webhook, error) {
	var webhooks []*models.Webhook
	for rows.Next() {
		var w models.Webhook
		err := rows.Scan(&w.ID, &w.UserID, &w.URL, &w.Events, &w.Secret, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhooks: %w", err)
	}

	return webhooks, nil
}

// CreateDelivery records a delivery attempt
func (r *WebhookRepository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		delivery.ID, delivery.WebhookID, delivery.Event, delivery.Payload,
		delivery.Status, delivery.RetryCount, delivery.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

// UpdateDelivery updates a delivery's outcome
func (r *WebhookRepository) UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2, status_code = $3, response_body = $4,
		    retry_count = $5, next_retry_at = $6, completed_at = $7
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		delivery.ID, delivery.Status, delivery.StatusCode, delivery.ResponseBody,
		delivery.RetryCount, delivery.NextRetryAt, delivery.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	return nil
}

// GetPendingDeliveries retrieves deliveries due for retry
func (r *WebhookRepository) GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error) {
	query := `
		SELECT id, webhook_id, event, payload, status, status_code, response_body,
		       retry_count, next_retry_at, created_at, completed_at
		FROM webhook_deliveries
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func collectDeliveries(rows pgx.Rows) ([]*models.WebhookDelivery, error) {
	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		var d models.WebhookDelivery
		err := rows.Scan(
			&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Status, &d.StatusCode,
			&d.ResponseBody, &d.RetryCount, &d.NextRetryAt, &d.CreatedAt, &d.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deliveries: %w", err)
	}

	return deliveries, nil
}
