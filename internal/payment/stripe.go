package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	// SessionTTL bounds how long a checkout stays payable. Stripe accepts
	// 30 minutes to 24 hours; zero leaves Stripe's 24 hour default.
	SessionTTL    time.Duration
}

const (
	MinSessionTTL = 30 * time.Minute
	MaxSessionTTL = 24 * time.Hour
)

// StripeProvider creates hosted checkout sessions priced in KRW. Credits are
// granted when checkout.session.completed arrives on the webhook.
type StripeProvider struct {
	cfg        StripeConfig
	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	now        func() time.Time
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	stripe.Key = cfg.SecretKey
	return &StripeProvider{cfg: cfg, newSession: session.New, now: time.Now}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) Checkout(_ context.Context, pur Purchase) (*Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyKRW)),
				UnitAmount: stripe.Int64(pur.PriceKRW),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("%d credits (%s)", pur.Credits, pur.PackageID)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(p.cfg.SuccessURL),
		CancelURL:         stripe.String(p.cfg.CancelURL),
		ClientReferenceID: stripe.String(pur.ID.String()),
	}
	if ttl := p.cfg.SessionTTL; ttl > 0 {
		ttl = min(max(ttl, MinSessionTTL), MaxSessionTTL)
		params.ExpiresAt = stripe.Int64(p.now().Add(ttl).Unix())
	}
	params.AddMetadata("purchase_id", pur.ID.String())
	params.AddMetadata("user_id", pur.UserID.String())

	sess, err := p.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Checkout{ExternalID: sess.ID, RedirectURL: sess.URL}, nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (uuid.UUID, error) {
	if signature == "" {
		return uuid.Nil, fmt.Errorf("%w: missing signature", ErrInvalidWebhook)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	if event.Type != "checkout.session.completed" {
		return uuid.Nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return uuid.Nil, fmt.Errorf("%w: decode session: %v", ErrInvalidWebhook, err)
	}
	ref := sess.ClientReferenceID
	if ref == "" {
		ref = sess.Metadata["purchase_id"]
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: missing purchase reference", ErrInvalidWebhook)
	}
	return id, nil
}
