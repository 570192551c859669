// Package credits manages the credit balance clients spend to unlock dancer
// contacts, and the purchases that refill it.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Casting/internal/config"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/payment"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

var (
	ErrInsufficientCredits = store.ErrInsufficientCredits
	ErrUnknownPackage      = errors.New("unknown credit package")
	ErrUserNotFound        = errors.New("user not found")
	ErrDancerNotFound      = errors.New("dancer not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrWebhookUnsupported  = errors.New("payment provider does not accept webhooks")
)

type Store interface {
	store.Users
	store.Dancers
	store.Credits
}

// Contact is what an unlock reveals.
type Contact struct {
	Phone        string `json:"phone,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	TiktokURL    string `json:"tiktok_url,omitempty"`
	YoutubeURL   string `json:"youtube_url,omitempty"`
}

type UnlockResult struct {
	DancerID uuid.UUID `json:"dancer_id"`
	Charged  bool      `json:"charged"`
	Balance  int       `json:"balance"`
	Contact  Contact   `json:"contact"`
}

type PurchaseResult struct {
	Purchase *store.CreditPurchase `json:"purchase"`
	Checkout *payment.Checkout     `json:"checkout"`
	Balance  int                   `json:"balance"`
}

type Service struct {
	store    Store
	provider payment.Provider
	hermes   hermes.Client
	metrics  *metrics.Metrics
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewService(s Store, p payment.Provider, h hermes.Client, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		provider: p,
		hermes:   h,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (s *Service) Packages() []config.CreditPackage {
	return s.cfg.Credits.Packages
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return 0, ErrUserNotFound
	}
	return u.Credits, nil
}

// Unlock reveals a dancer's contact details to the user. The first unlock of
// a dancer costs the configured credits; repeat unlocks are free.
func (s *Service) Unlock(ctx context.Context, userID, dancerID uuid.UUID) (*UnlockResult, error) {
	d, err := s.store.GetDancer(ctx, dancerID)
	if err != nil {
		return nil, fmt.Errorf("get dancer: %w", err)
	}
	if d == nil || d.Status != store.DancerApproved {
		return nil, ErrDancerNotFound
	}

	cost := s.cfg.Credits.UnlockCost
	charged, balance, err := s.store.UnlockContact(ctx, userID, dancerID, cost)
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		return nil, ErrInsufficientCredits
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("unlock contact: %w", err)
	}

	if charged {
		s.metrics.AddCreditsSpent(cost)
		s.logger.Info("contact unlocked", "user_id", userID, "dancer_id", dancerID, "balance", balance)
		if s.hermes != nil {
			_ = s.hermes.Publish(hermes.SubjectCreditsSpent(userID.String()), hermes.CreditsSpentEvent{
				UserID:   userID.String(),
				DancerID: dancerID.String(),
				Cost:     cost,
				Balance:  balance,
			})
		}
	}

	return &UnlockResult{
		DancerID: dancerID,
		Charged:  charged,
		Balance:  balance,
		Contact: Contact{
			Phone:        d.Phone,
			InstagramURL: d.InstagramURL,
			TiktokURL:    d.TiktokURL,
			YoutubeURL:   d.YoutubeURL,
		},
	}, nil
}

func (s *Service) IsUnlocked(ctx context.Context, userID, dancerID uuid.UUID) (bool, error) {
	return s.store.IsUnlocked(ctx, userID, dancerID)
}

func (s *Service) Unlocked(ctx context.Context, userID uuid.UUID) ([]*store.ContactUnlock, error) {
	return s.store.ListUnlocks(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*store.CreditPurchase, error) {
	return s.store.ListPurchases(ctx, userID)
}

// Purchase opens a checkout for a package. Providers that settle
// synchronously are completed before returning.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, packageID string) (*PurchaseResult, error) {
	pkg, ok := s.cfg.Package(packageID)
	if !ok {
		return nil, ErrUnknownPackage
	}

	p := &store.CreditPurchase{
		UserID:    userID,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		PriceKRW:  pkg.PriceKRW,
		Method:    s.provider.Name(),
		Status:    store.PurchasePending,
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	co, err := s.provider.Checkout(ctx, payment.Purchase{
		ID:        p.ID,
		UserID:    userID,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		PriceKRW:  pkg.PriceKRW,
	})
	if err != nil {
		s.logger.Error("checkout failed", "purchase_id", p.ID, "provider", s.provider.Name(), "error", err)
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if co.ExternalID != "" {
		if err := s.store.SetPurchaseExternalID(ctx, p.ID, co.ExternalID); err != nil {
			return nil, fmt.Errorf("record external id: %w", err)
		}
		p.ExternalID = co.ExternalID
	}

	result := &PurchaseResult{Purchase: p, Checkout: co}
	if co.Completed {
		_, balance, err := s.Complete(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		result.Balance = balance
		if fresh, err := s.store.GetPurchase(ctx, p.ID); err == nil && fresh != nil {
			result.Purchase = fresh
		}
		return result, nil
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Balance = balance
	return result, nil
}

// Complete grants a purchase's credits. It is safe to call more than once,
// and settles purchases the reaper expired while the payment was in flight.
func (s *Service) Complete(ctx context.Context, purchaseID uuid.UUID) (bool, int, error) {
	done, balance, err := s.store.CompletePurchase(ctx, purchaseID)
	if errors.Is(err, store.ErrNotFound) {
		return false, 0, ErrPurchaseNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("complete purchase: %w", err)
	}
	if !done {
		return false, balance, nil
	}

	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil || p == nil {
		return true, balance, nil
	}
	s.metrics.AddCreditsPurchased(p.PackageID, p.Credits)
	s.logger.Info("purchase completed", "purchase_id", purchaseID, "user_id", p.UserID, "credits", p.Credits, "balance", balance)
	if s.hermes != nil {
		_ = s.hermes.Publish(hermes.SubjectCreditsPurchased(p.UserID.String()), hermes.CreditsPurchasedEvent{
			UserID:     p.UserID.String(),
			PurchaseID: purchaseID.String(),
			PackageID:  p.PackageID,
			Credits:    p.Credits,
			Balance:    balance,
		})
	}
	return true, balance, nil
}

// HandleWebhook verifies a provider callback and completes the purchase it
// names, if any.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	v, ok := s.provider.(payment.WebhookVerifier)
	if !ok {
		return ErrWebhookUnsupported
	}
	id, err := v.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	if id == uuid.Nil {
		return nil
	}
	_, _, err = s.Complete(ctx, id)
	if errors.Is(err, ErrPurchaseNotFound) {
		s.logger.Warn("webhook for unknown purchase", "purchase_id", id)
		return nil
	}
	return err
}
