package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/store"
)

// SecretPrefix marks generated webhook secrets.
const SecretPrefix = "whsec_"

// Registry manages per-merchant webhook subscriptions.
type Registry struct {
	subs   store.SubscriptionStore
	random io.Reader
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates a registry. random defaults to crypto/rand and now to time.Now.
func NewRegistry(subs store.SubscriptionStore, random io.Reader, now func() time.Time, logger *slog.Logger) *Registry {
	if random == nil {
		random = rand.Reader
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{subs: subs, random: random, now: now, logger: logger}
}

// Subscribe stores a fresh subscription for the merchant, replacing any
// previous one, and returns its secret. The secret is not retrievable later.
func (r *Registry) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*domain.SubscribeResponse, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if err := checkCallbackURL(req.CallbackURL); err != nil {
		return nil, err
	}

	events := dedupeKinds(req.Events)
	if len(events) == 0 {
		events = slices.Clone(domain.SupportedEvents)
	}

	secret, err := generateSecretKey(r.random)
	if err != nil {
		return nil, fmt.Errorf("generating secret key: %w", err)
	}

	now := r.now().UTC()
	sub := domain.Subscription{
		MerchantID:  req.MerchantID,
		CallbackURL: req.CallbackURL,
		SecretKey:   secret,
		Events:      events,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.subs.PutSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("storing subscription: %w", err)
	}

	r.logger.Info("merchant subscribed",
		"merchant_id", sub.MerchantID,
		"callback_url", sub.CallbackURL,
		"events", sub.Events,
	)

	return &domain.SubscribeResponse{MerchantID: sub.MerchantID, SecretKey: secret}, nil
}

// GetActive returns the merchant's subscription if it exists and is active.
func (r *Registry) GetActive(ctx context.Context, merchantID string) (*domain.Subscription, error) {
	sub, err := r.subs.GetSubscription(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.Active {
		return nil, nil
	}
	return sub, nil
}

// Get returns the stored subscription with its secret stripped.
func (r *Registry) Get(ctx context.Context, merchantID string) (*domain.Subscription, error) {
	sub, err := r.subs.GetSubscription(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s: %w", merchantID, domain.ErrNotFound)
	}
	sub.SecretKey = ""
	return sub, nil
}

// SetActive toggles delivery for the merchant without touching the secret.
func (r *Registry) SetActive(ctx context.Context, merchantID string, active bool) (*domain.Subscription, error) {
	sub, err := r.subs.SetSubscriptionActive(ctx, merchantID, active)
	if err != nil {
		return nil, err
	}
	r.logger.Info("subscription toggled", "merchant_id", merchantID, "active", active)
	sub.SecretKey = ""
	return sub, nil
}

func checkCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: callback_url must be an absolute http(s) URL", domain.ErrInvalidRequest)
	}
	return nil
}

func dedupeKinds(kinds []domain.EventKind) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(kinds))
	for _, k := range kinds {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func generateSecretKey(random io.Reader) (string, error) {
	bytes := make([]byte, 32)
	if _, err := io.ReadFull(random, bytes); err != nil {
		return "", err
	}
	return SecretPrefix + hex.EncodeToString(bytes), nil
}
