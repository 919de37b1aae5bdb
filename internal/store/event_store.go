package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Priya8975/payment-notification-core/internal/domain"
)

func (s *PostgresStore) AppendEvent(ctx context.Context, merchantID string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO payment_events (id, merchant_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, merchantID, string(event.Type), payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListEvents returns the merchant's events in the order they were appended.
func (s *PostgresStore) ListEvents(ctx context.Context, merchantID string) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM payment_events
		WHERE merchant_id = $1
		ORDER BY seq ASC
	`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		var e domain.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}
