package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Casting/internal/accounts"
	"github.com/MikeSquared-Agency/Casting/internal/analysis"
	"github.com/MikeSquared-Agency/Casting/internal/auth"
	"github.com/MikeSquared-Agency/Casting/internal/casting"
	"github.com/MikeSquared-Agency/Casting/internal/chat"
	"github.com/MikeSquared-Agency/Casting/internal/config"
	"github.com/MikeSquared-Agency/Casting/internal/credits"
	"github.com/MikeSquared-Agency/Casting/internal/hermes"
	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/payment"
	"github.com/MikeSquared-Agency/Casting/internal/store"
)

const (
	testSecret     = "test-jwt-secret"
	testAdminToken = "admin-secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	handler  http.Handler
	store    *store.MemoryStore
	verifier *auth.Verifier
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithServer(t, config.ServerConfig{AdminToken: testAdminToken})
}

func newTestEnvWithServer(t *testing.T, server config.ServerConfig) *testEnv {
	t.Helper()
	cfg := config.Default()
	ms := store.NewMemoryStore()
	h := hermes.NoopClient{}
	m := metrics.New()
	logger := discardLogger()
	verifier := auth.NewVerifier(testSecret, time.Minute)

	engine := matching.NewEngine(matching.DefaultOptions(), logger)
	deps := Deps{
		Accounts: accounts.NewService(ms, h, cfg.Credits.Initial, logger),
		Casting:  casting.NewService(ms, analysis.KeywordAnalyzer{}, engine, h, m, logger),
		Credits:  credits.NewService(ms, payment.MockProvider{}, h, m, cfg, logger),
		Chat:     chat.NewService(ms, chat.NewHub(), h, m, logger),
		Verifier: verifier,
		Metrics:  m,
		Server:   server,
		Logger:   logger,
	}
	return &testEnv{handler: NewRouter(deps), store: ms, verifier: verifier, metrics: m}
}

func (e *testEnv) token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := e.verifier.Issue(id, id.String()[:8]+"@test.kr", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (e *testEnv) register(t *testing.T, role store.Role) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	tok := e.token(t, id, string(role))
	w := e.do(t, http.MethodPost, "/api/v1/me/register", tok, accounts.RegisterInput{
		Role: role, Name: "Agency", StageName: "Mina", Phone: "010-1234-5678",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return id, tok
}

func (e *testEnv) importDancer(t *testing.T, d store.Dancer) uuid.UUID {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/admin/dancers", testAdminToken, d)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved store.Dancer
	decode(t, w, &saved)
	return saved.ID
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	w = env.do(t, http.MethodGet, "/api/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := env.verifier.Issue(uuid.New(), "x@test.kr", "client", -time.Hour)
	require.NoError(t, err)
	w = env.do(t, http.MethodGet, "/api/v1/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/admin/dancers/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, clientTok := env.register(t, store.RoleClient)
	w = env.do(t, http.MethodGet, "/api/v1/admin/dancers/pending", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/dancers/pending", env.token(t, uuid.New(), "admin"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/dancers/pending", testAdminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndMe(t *testing.T) {
	env := newTestEnv(t)

	id, tok := env.register(t, store.RoleClient)
	w := env.do(t, http.MethodPost, "/api/v1/me/register", tok, accounts.RegisterInput{Role: store.RoleClient, Name: "A", Phone: "1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p struct {
		User      store.User `json:"user"`
		Dashboard string     `json:"dashboard"`
	}
	decode(t, w, &p)
	assert.Equal(t, id, p.User.ID)
	assert.Equal(t, 10, p.User.Credits)
	assert.Equal(t, "/client/dashboard", p.Dashboard)

	w = env.do(t, http.MethodPost, "/api/v1/me/register", env.token(t, uuid.New(), "client"), accounts.RegisterInput{Role: "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/me", env.token(t, uuid.New(), "client"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDancerProfileReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.register(t, store.RoleArtist)

	w := env.do(t, http.MethodPut, "/api/v1/me/dancer-profile", tok, accounts.DancerProfileInput{StageName: "Mina", Phone: "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/me/dancer-profile", tok, accounts.DancerProfileInput{
		StageName: "Mina", Phone: "010-1234-5678", VibeTags: []string{"fresh"}, Gender: "female",
		Styles: map[string]float64{"fresh": 0.95},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d store.Dancer
	decode(t, w, &d)
	assert.Equal(t, store.DancerPending, d.Status)

	w = env.do(t, http.MethodGet, "/api/v1/dancers/"+d.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/dancers/"+d.ID.String()+"/review", testAdminToken, map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/admin/dancers/"+d.ID.String()+"/review", testAdminToken, map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/dancers/"+d.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var public store.Dancer
	decode(t, w, &public)
	assert.Empty(t, public.Phone)

	w = env.do(t, http.MethodGet, "/api/v1/dancers/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeAndMatch(t *testing.T) {
	env := newTestEnv(t)
	env.importDancer(t, store.Dancer{Name: "Fresh", Gender: "female", Attributes: map[string]float64{"fresh": 0.9}})
	env.importDancer(t, store.Dancer{Name: "Male", Gender: "male", Attributes: map[string]float64{"fresh": 1}})

	w := env.do(t, http.MethodPost, "/api/v1/analyze", "", map[string]string{"prompt": "여성 댄서 청량"})
	require.Equal(t, http.StatusOK, w.Code)
	var analyzed struct {
		Success bool              `json:"success"`
		Result  matching.Analysis `json:"result"`
	}
	decode(t, w, &analyzed)
	assert.True(t, analyzed.Success)
	assert.Equal(t, 0.95, analyzed.Result.SoftScores["tag_fresh"])

	w = env.do(t, http.MethodPost, "/api/v1/analyze", "", map[string]string{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/match", "", map[string]interface{}{"prompt": "여성 댄서 청량", "topN": 3})
	require.Equal(t, http.StatusOK, w.Code)
	var res casting.MatchResult
	decode(t, w, &res)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Fresh", res.Matches[0].Name)

	w = env.do(t, http.MethodPost, "/api/v1/match", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditsFlow(t *testing.T) {
	env := newTestEnv(t)
	dancerID := env.importDancer(t, store.Dancer{Name: "Mina", Phone: "010-9999-0000", Rating: 4.8})
	_, tok := env.register(t, store.RoleClient)

	w := env.do(t, http.MethodGet, "/api/v1/credits/packages", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pkgs []config.CreditPackage
	decode(t, w, &pkgs)
	require.NotEmpty(t, pkgs)

	w = env.do(t, http.MethodPost, "/api/v1/credits/unlock/"+dancerID.String(), tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var unlock credits.UnlockResult
	decode(t, w, &unlock)
	assert.True(t, unlock.Charged)
	assert.Equal(t, 9, unlock.Balance)
	assert.Equal(t, "010-9999-0000", unlock.Contact.Phone)

	w = env.do(t, http.MethodPost, "/api/v1/credits/unlock/"+dancerID.String(), tok, nil)
	decode(t, w, &unlock)
	assert.False(t, unlock.Charged)
	assert.Equal(t, 9, unlock.Balance)

	w = env.do(t, http.MethodPost, "/api/v1/credits/purchase", tok, map[string]string{"package_id": pkgs[0].ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/credits", tok, nil)
	var balance map[string]int
	decode(t, w, &balance)
	assert.Equal(t, 9+pkgs[0].Credits, balance["credits"])

	w = env.do(t, http.MethodPost, "/api/v1/credits/purchase", tok, map[string]string{"package_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/credits/history", tok, nil)
	var history []store.CreditPurchase
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, store.PurchaseCompleted, history[0].Status)

	w = env.do(t, http.MethodGet, "/api/v1/credits/unlocked", tok, nil)
	var unlocked []store.ContactUnlock
	decode(t, w, &unlocked)
	assert.Len(t, unlocked, 1)

	w = env.do(t, http.MethodPost, "/api/v1/payments/webhook", "", map[string]string{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnlockInsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	dancerID := env.importDancer(t, store.Dancer{Name: "Mina"})

	broke := &store.User{Email: "broke@test.kr", Role: store.RoleClient}
	require.NoError(t, env.store.CreateUser(context.Background(), broke))

	w := env.do(t, http.MethodPost, "/api/v1/credits/unlock/"+dancerID.String(), env.token(t, broke.ID, "client"), nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/credits/unlock/"+uuid.NewString(), env.token(t, broke.ID, "client"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCastingRequestFlow(t *testing.T) {
	env := newTestEnv(t)
	env.importDancer(t, store.Dancer{Name: "Cute", Attributes: map[string]float64{"cute": 0.9}})
	_, tok := env.register(t, store.RoleClient)

	w := env.do(t, http.MethodPost, "/api/v1/casting-requests", tok, casting.RequestForm{Name: "Kids Co"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/casting-requests", tok, casting.RequestForm{
		Name: "Kids Co", Email: "kids@test.kr", Phone: "010-1111-2222", DancerCount: 2, AIPrompt: "귀여운 컨셉",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted casting.SubmitResult
	decode(t, w, &submitted)
	require.Len(t, submitted.Request.RecommendedDancers, 1)

	w = env.do(t, http.MethodGet, "/api/v1/casting-requests/mine", tok, nil)
	var mine []store.CastingRequest
	decode(t, w, &mine)
	assert.Len(t, mine, 1)

	path := "/api/v1/admin/casting-requests/" + submitted.Request.ID.String()
	w = env.do(t, http.MethodPatch, path, testAdminToken, map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPatch, path, testAdminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/casting-requests/stats", tok, nil)
	var stats casting.Stats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 0, stats.Pending)

	w = env.do(t, http.MethodGet, "/api/v1/admin/casting-requests?status=approved", testAdminToken, nil)
	var all []store.CastingRequest
	decode(t, w, &all)
	assert.Len(t, all, 1)
}

func TestMessagesFlow(t *testing.T) {
	env := newTestEnv(t)
	clientID, clientTok := env.register(t, store.RoleClient)
	artistID, artistTok := env.register(t, store.RoleArtist)

	w := env.do(t, http.MethodPost, "/api/v1/messages", clientTok, map[string]string{"receiver_id": artistID.String(), "content": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/messages", clientTok, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/messages", clientTok, map[string]string{"receiver_id": artistID.String(), "content": "섭외 문의드립니다"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent store.Message
	decode(t, w, &sent)

	w = env.do(t, http.MethodGet, "/api/v1/messages/unread", artistTok, nil)
	var unread map[string]int
	decode(t, w, &unread)
	assert.Equal(t, 1, unread["unread"])

	w = env.do(t, http.MethodPost, "/api/v1/messages/"+sent.ID.String()+"/read", clientTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/messages/conversations", artistTok, nil)
	var convs []chat.Conversation
	decode(t, w, &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, clientID, convs[0].Partner.ID)
	assert.Equal(t, 1, convs[0].UnreadCount)

	w = env.do(t, http.MethodGet, "/api/v1/messages/with/"+clientID.String(), artistTok, nil)
	var history []store.Message
	decode(t, w, &history)
	require.Len(t, history, 1)

	w = env.do(t, http.MethodGet, "/api/v1/messages/unread", artistTok, nil)
	decode(t, w, &unread)
	assert.Equal(t, 0, unread["unread"])
}

func TestPresignWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	_, tok := env.register(t, store.RoleArtist)

	w := env.do(t, http.MethodPost, "/api/v1/uploads/presign", tok, map[string]interface{}{"kind": "dancers", "content_type": "image/png", "size_bytes": 100})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestMetricsRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/dancers", "", nil)

	reg := prometheus.NewRegistry()
	require.NoError(t, env.metrics.Register(reg))

	w := httptest.NewRecorder()
	NewMetricsRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `route="/api/v1/dancers"`), w.Body.String())

	w = httptest.NewRecorder()
	NewMetricsRouter(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRateLimitSkipsPaymentWebhook(t *testing.T) {
	env := newTestEnvWithServer(t, config.ServerConfig{AdminToken: testAdminToken, RateLimitPerMinute: 1})

	w := env.do(t, http.MethodGet, "/api/v1/credits/packages", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/credits/packages", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	for i := 0; i < 3; i++ {
		w = env.do(t, http.MethodPost, "/api/v1/payments/webhook", "", map[string]string{"type": "checkout.session.completed"})
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code, "webhook delivery %d", i)
	}
}
