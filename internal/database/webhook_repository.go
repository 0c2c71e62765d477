package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foliosend/foliosend/pkg/models"
)

// Webhook management methods

// CreateWebhook creates a new webhook
func (r *Repository) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	query := `
		INSERT INTO webhooks (id, owner_id, url, events, secret, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		webhook.ID,
		webhook.OwnerID,
		webhook.URL,
		webhook.Events,
		webhook.Secret,
		webhook.IsActive,
	)

	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	return nil
}

// GetWebhook retrieves one webhook by ID
func (r *Repository) GetWebhook(ctx context.Context, webhookID string) (*models.Webhook, error) {
	query := `
		SELECT id, owner_id, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE id = $1
	`

	var webhook models.Webhook
	err := r.db.Pool.QueryRow(ctx, query, webhookID).Scan(
		&webhook.ID,
		&webhook.OwnerID,
		&webhook.URL,
		&webhook.Events,
		&webhook.Secret,
		&webhook.IsActive,
		&webhook.CreatedAt,
		&webhook.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("webhook not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return &webhook, nil
}

// GetWebhooksByEvent retrieves an owner's webhooks subscribed to an event
func (r *Repository) GetWebhooksByEvent(ctx context.Context, ownerID, event string) ([]*models.Webhook, error) {
	eventField := ""
	switch event {
	case models.WebhookEventSessionClosed:
		eventField = "session_closed"
	case models.WebhookEventHotLead:
		eventField = "hot_lead"
	case models.WebhookEventLinkCreated:
		eventField = "link_created"
	default:
		return nil, fmt.Errorf("unknown event: %s", event)
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE owner_id = $1
		AND is_active = true
		AND (events->>'%s')::boolean = true
	`, eventField)

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var webhook models.Webhook
		err := rows.Scan(
			&webhook.ID,
			&webhook.OwnerID,
			&webhook.URL,
			&webhook.Events,
			&webhook.Secret,
			&webhook.IsActive,
			&webhook.CreatedAt,
			&webhook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, &webhook)
	}

	return webhooks, nil
}

// GetOwnerWebhooks retrieves all webhooks for an owner
func (r *Repository) GetOwnerWebhooks(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	query := `
		SELECT id, owner_id, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var webhook models.Webhook
		err := rows.Scan(
			&webhook.ID,
			&webhook.OwnerID,
			&webhook.URL,
			&webhook.Events,
			&webhook.Secret,
			&webhook.IsActive,
			&webhook.CreatedAt,
			&webhook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, &webhook)
	}

	return webhooks, nil
}

// Webhook delivery methods

// CreateDelivery creates a new webhook delivery record
func (r *Repository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, $10)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		delivery.ID,
		delivery.WebhookID,
		delivery.Event,
		delivery.Payload,
		delivery.Status,
		delivery.StatusCode,
		delivery.ResponseBody,
		delivery.RetryCount,
		delivery.NextRetryAt,
		delivery.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	return nil
}

// UpdateDelivery updates a webhook delivery record
func (r *Repository) UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2,
		    status_code = $3,
		    response_body = $4,
		    retry_count = $5,
		    next_retry_at = $6,
		    completed_at = $7
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		delivery.ID,
		delivery.Status,
		delivery.StatusCode,
		delivery.ResponseBody,
		delivery.RetryCount,
		delivery.NextRetryAt,
		delivery.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	return nil
}

// GetPendingDeliveries retrieves deliveries ready for a retry attempt
func (r *Repository) GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error) {
	query := `
		SELECT id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, created_at, completed_at
		FROM webhook_deliveries
		WHERE status = $1
		AND (next_retry_at IS NULL OR next_retry_at <= CURRENT_TIMESTAMP)
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, models.WebhookDeliveryStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		var delivery models.WebhookDelivery
		err := rows.Scan(
			&delivery.ID,
			&delivery.WebhookID,
			&delivery.Event,
			&delivery.Payload,
			&delivery.Status,
			&delivery.StatusCode,
			&delivery.ResponseBody,
			&delivery.RetryCount,
			&delivery.NextRetryAt,
			&delivery.CreatedAt,
			&delivery.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, &delivery)
	}

	return deliveries, nil
}
