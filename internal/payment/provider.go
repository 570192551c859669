// Package payment turns credit purchases into checkouts with a payment
// provider.
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidWebhook = errors.New("invalid webhook")

type Purchase struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	PackageID string
	Credits   int
	PriceKRW  int64
}

// Checkout is the provider's answer to a purchase. Completed is true when the
// payment settled synchronously and credits may be granted right away.
type Checkout struct {
	ExternalID  string `json:"external_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Completed   bool   `json:"completed"`
}

type Provider interface {
	Name() string
	Checkout(ctx context.Context, p Purchase) (*Checkout, error)
}

// WebhookVerifier is implemented by providers that settle asynchronously.
// VerifyWebhook returns the purchase ID to complete, or uuid.Nil when the
// event does not complete a purchase.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (uuid.UUID, error)
}

// MockProvider settles every purchase immediately.
type MockProvider struct{}

func (MockProvider) Name() string { return "mock" }

func (MockProvider) Checkout(_ context.Context, p Purchase) (*Checkout, error) {
	return &Checkout{ExternalID: "mock_" + p.ID.String(), Completed: true}, nil
}
