package credits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Casting/internal/config"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/payment"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockHermes struct {
	mu        sync.Mutex
	published []string
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	return nil
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close() {}

// asyncProvider behaves like a hosted checkout: nothing settles until the
// webhook arrives.
type asyncProvider struct {
	webhookID uuid.UUID
	err       error
}

func (p *asyncProvider) Name() string { return "async" }
func (p *asyncProvider) Checkout(_ context.Context, pur payment.Purchase) (*payment.Checkout, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &payment.Checkout{ExternalID: "ext_" + pur.ID.String(), RedirectURL: "https://pay.example/" + pur.ID.String()}, nil
}
func (p *asyncProvider) VerifyWebhook(payload []byte, _ string) (uuid.UUID, error) {
	if string(payload) == "bad" {
		return uuid.Nil, payment.ErrInvalidWebhook
	}
	return p.webhookID, nil
}

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	hermes *mockHermes
	user   *store.User
	dancer *store.Dancer
}

func newFixture(t *testing.T, p payment.Provider, credits int) *fixture {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	h := &mockHermes{}

	u := &store.User{Email: "client@test.kr", Role: store.RoleClient, Credits: credits}
	require.NoError(t, ms.CreateUser(ctx, u))
	d := &store.Dancer{Name: "Mina", Phone: "010-1234-5678", InstagramURL: "https://instagram.com/mina", Status: store.DancerApproved}
	require.NoError(t, ms.UpsertDancer(ctx, d))

	svc := NewService(ms, p, h, nil, config.Default(), discardLogger())
	return &fixture{svc: svc, store: ms, hermes: h, user: u, dancer: d}
}

func TestUnlockChargesOnce(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 2)
	ctx := context.Background()

	res, err := f.svc.Unlock(ctx, f.user.ID, f.dancer.ID)
	require.NoError(t, err)
	assert.True(t, res.Charged)
	assert.Equal(t, 1, res.Balance)
	assert.Equal(t, "010-1234-5678", res.Contact.Phone)
	assert.Equal(t, []string{hermes.SubjectCreditsSpent(f.user.ID.String())}, f.hermes.published)

	again, err := f.svc.Unlock(ctx, f.user.ID, f.dancer.ID)
	require.NoError(t, err)
	assert.False(t, again.Charged)
	assert.Equal(t, 1, again.Balance)
	assert.Equal(t, "https://instagram.com/mina", again.Contact.InstagramURL)
	assert.Len(t, f.hermes.published, 1, "repeat unlock publishes nothing")

	ok, err := f.svc.IsUnlocked(ctx, f.user.ID, f.dancer.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient credits", func(t *testing.T) {
		f := newFixture(t, payment.MockProvider{}, 0)
		_, err := f.svc.Unlock(ctx, f.user.ID, f.dancer.ID)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		bal, _ := f.svc.Balance(ctx, f.user.ID)
		assert.Equal(t, 0, bal)
	})

	t.Run("unknown dancer", func(t *testing.T) {
		f := newFixture(t, payment.MockProvider{}, 5)
		_, err := f.svc.Unlock(ctx, f.user.ID, uuid.New())
		assert.ErrorIs(t, err, ErrDancerNotFound)
	})

	t.Run("pending dancer", func(t *testing.T) {
		f := newFixture(t, payment.MockProvider{}, 5)
		require.NoError(t, f.store.SetDancerStatus(ctx, f.dancer.ID, store.DancerPending))
		_, err := f.svc.Unlock(ctx, f.user.ID, f.dancer.ID)
		assert.ErrorIs(t, err, ErrDancerNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, payment.MockProvider{}, 5)
		_, err := f.svc.Unlock(ctx, uuid.New(), f.dancer.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestPurchaseMockCompletes(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 10)
	ctx := context.Background()

	res, err := f.svc.Purchase(ctx, f.user.ID, "starter")
	require.NoError(t, err)
	assert.True(t, res.Checkout.Completed)
	assert.Equal(t, 20, res.Balance)
	assert.Equal(t, store.PurchaseCompleted, res.Purchase.Status)
	assert.Equal(t, "mock", res.Purchase.Method)
	assert.Contains(t, f.hermes.published, hermes.SubjectCreditsPurchased(f.user.ID.String()))

	history, err := f.svc.History(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "mock_"+res.Purchase.ID.String(), history[0].ExternalID)
}

func TestPurchaseUnknownPackage(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 10)
	_, err := f.svc.Purchase(context.Background(), f.user.ID, "platinum")
	assert.ErrorIs(t, err, ErrUnknownPackage)
}

func TestPurchaseAsyncCompletesViaWebhook(t *testing.T) {
	p := &asyncProvider{}
	f := newFixture(t, p, 1)
	ctx := context.Background()

	res, err := f.svc.Purchase(ctx, f.user.ID, "standard")
	require.NoError(t, err)
	assert.False(t, res.Checkout.Completed)
	assert.Equal(t, 1, res.Balance)
	assert.Equal(t, store.PurchasePending, res.Purchase.Status)
	assert.NotEmpty(t, res.Checkout.RedirectURL)

	p.webhookID = res.Purchase.ID
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"), "redelivery is a no-op")

	bal, err := f.svc.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, bal)

	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, []byte("bad"), "sig"), payment.ErrInvalidWebhook)

	p.webhookID = uuid.New()
	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"), "unknown purchase is acknowledged")

	p.webhookID = uuid.Nil
	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
}

func TestPurchaseCheckoutFailure(t *testing.T) {
	f := newFixture(t, &asyncProvider{err: errors.New("gateway down")}, 1)
	_, err := f.svc.Purchase(context.Background(), f.user.ID, "starter")
	assert.Error(t, err)

	history, _ := f.svc.History(context.Background(), f.user.ID)
	require.Len(t, history, 1)
	assert.Equal(t, store.PurchasePending, history[0].Status)
}

func TestHandleWebhookUnsupported(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 1)
	assert.ErrorIs(t, f.svc.HandleWebhook(context.Background(), nil, ""), ErrWebhookUnsupported)
}

func TestReapExpiresStalePurchases(t *testing.T) {
	f := newFixture(t, &asyncProvider{}, 1)
	ctx := context.Background()

	res, err := f.svc.Purchase(ctx, f.user.ID, "starter")
	require.NoError(t, err)

	assert.Equal(t, 0, f.svc.reap(ctx), "fresh purchase is kept")

	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, f.svc.reap(ctx))

	reaped, err := f.store.GetPurchase(ctx, res.Purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PurchaseExpired, reaped.Status)
}

func TestPaymentAfterReapGrantsCredits(t *testing.T) {
	tests := []struct {
		name    string
		reap    bool
		balance int
	}{
		{"paid before the ttl", false, 11},
		{"paid after the reaper expired it", true, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &asyncProvider{}
			f := newFixture(t, p, 1)
			ctx := context.Background()

			res, err := f.svc.Purchase(ctx, f.user.ID, "starter")
			require.NoError(t, err)
			if tt.reap {
				f.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
				require.Equal(t, 1, f.svc.reap(ctx))
			}

			p.webhookID = res.Purchase.ID
			require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
			require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"), "redelivery is a no-op")

			bal, err := f.svc.Balance(ctx, f.user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.balance, bal)

			got, err := f.store.GetPurchase(ctx, res.Purchase.ID)
			require.NoError(t, err)
			assert.Equal(t, store.PurchaseCompleted, got.Status)
			assert.Equal(t, 0, f.svc.reap(ctx), "completed purchase is never expired")
		})
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 1)
	f.svc.cfg.Credits.ReapIntervalMs = 5
	f.svc.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	f.svc.Stop()
	f.svc.Stop()
}

func TestPackages(t *testing.T) {
	f := newFixture(t, payment.MockProvider{}, 0)
	pkgs := f.svc.Packages()
	require.Len(t, pkgs, 3)
	assert.Equal(t, "starter", pkgs[0].ID)
}
