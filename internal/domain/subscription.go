package domain

import "time"

// Subscription is a merchant's webhook registration. There is at most one per
// merchant; the secret never leaves the process through JSON.
type Subscription struct {
	MerchantID  string      `json:"merchant_id"`
	CallbackURL string      `json:"callback_url"`
	SecretKey   string      `json:"-"`
	Events      []EventKind `json:"events"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Wants reports whether the subscription covers kind.
func (s *Subscription) Wants(kind EventKind) bool {
	for _, k := range s.Events {
		if k == kind {
			return true
		}
	}
	return false
}

type SubscribeRequest struct {
	MerchantID  string      `json:"merchant_id" validate:"required"`
	CallbackURL string      `json:"callback_url" validate:"required,http_url"`
	Events      []EventKind `json:"events" validate:"dive,event_kind"`
}

type SubscribeResponse struct {
	MerchantID string `json:"merchant_id"`
	SecretKey  string `json:"secret_key"`
}

type UpdateSubscriptionRequest struct {
	Active *bool `json:"active"`
}
