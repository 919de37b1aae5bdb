package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/payment-notification-core/internal/domain"
)

// RecordOutcome inserts the result of a webhook POST.
func (s *PostgresStore) RecordOutcome(ctx context.Context, merchantID string, outcome domain.DeliveryOutcome) error {
	event, err := json.Marshal(outcome.Event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	var errMsg *string
	if outcome.Error != "" {
		errMsg = &outcome.Error
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (merchant_id, event_id, event, signature, sent_at, delivered, http_status, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, merchantID, outcome.Event.ID, event, outcome.Signature, outcome.SentAt,
		outcome.Delivered, outcome.HTTPStatus, errMsg, outcome.DurationMs)
	if err != nil {
		return fmt.Errorf("inserting delivery outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns delivery outcomes for a merchant, newest first.
func (s *PostgresStore) ListOutcomes(ctx context.Context, merchantID string, limit int) ([]domain.DeliveryOutcome, error) {
	query := `
		SELECT event, signature, sent_at, delivered, http_status, error_message, duration_ms
		FROM webhook_deliveries
		WHERE merchant_id = $1
		ORDER BY seq DESC`
	args := []interface{}{merchantID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []domain.DeliveryOutcome{}
	for rows.Next() {
		var o domain.DeliveryOutcome
		var event []byte
		var errMsg *string
		err := rows.Scan(
			&event, &o.Signature, &o.SentAt, &o.Delivered,
			&o.HTTPStatus, &errMsg, &o.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery outcome: %w", err)
		}
		if err := json.Unmarshal(event, &o.Event); err != nil {
			return nil, fmt.Errorf("decoding delivery event: %w", err)
		}
		if errMsg != nil {
			o.Error = *errMsg
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery outcomes: %w", err)
	}

	return outcomes, nil
}
