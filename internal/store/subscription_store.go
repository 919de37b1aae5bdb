package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/jackc/pgx/v5"
)

// PutSubscription inserts or fully replaces the merchant's subscription.
func (s *PostgresStore) PutSubscription(ctx context.Context, sub domain.Subscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merchant_subscriptions (merchant_id, callback_url, secret_key, events, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (merchant_id) DO UPDATE SET
			callback_url = EXCLUDED.callback_url,
			secret_key   = EXCLUDED.secret_key,
			events       = EXCLUDED.events,
			is_active    = EXCLUDED.is_active,
			created_at   = EXCLUDED.created_at,
			updated_at   = EXCLUDED.updated_at
	`, sub.MerchantID, sub.CallbackURL, sub.SecretKey, kindsToStrings(sub.Events), sub.Active, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubscription(ctx context.Context, merchantID string) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		SELECT merchant_id, callback_url, secret_key, events, is_active, created_at, updated_at
		FROM merchant_subscriptions WHERE merchant_id = $1
	`, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) SetSubscriptionActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx, `
		UPDATE merchant_subscriptions SET is_active = $2, updated_at = NOW()
		WHERE merchant_id = $1
		RETURNING merchant_id, callback_url, secret_key, events, is_active, created_at, updated_at
	`, merchantID, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", merchantID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("updating subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var events []string
	err := row.Scan(
		&sub.MerchantID, &sub.CallbackURL, &sub.SecretKey, &events,
		&sub.Active, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Events = stringsToKinds(events)
	return &sub, nil
}

func kindsToStrings(kinds []domain.EventKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func stringsToKinds(strs []string) []domain.EventKind {
	out := make([]domain.EventKind, len(strs))
	for i, s := range strs {
		out[i] = domain.EventKind(s)
	}
	return out
}
