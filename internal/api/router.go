package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Casting/internal/accounts"
	"github.com/MikeSquared-Agency/Casting/internal/auth"
	"github.com/MikeSquared-Agency/Casting/internal/casting"
	"github.com/MikeSquared-Agency/Casting/internal/chat"
	"github.com/MikeSquared-Agency/Casting/internal/config"
	"github.com/MikeSquared-Agency/Casting/internal/credits"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
	"github.com/MikeSquared-Agency/Casting/internal/storage"
)

// Deps are the services the HTTP API is built from. Uploads may be nil when
// object storage is not configured.
type Deps struct {
	Accounts *accounts.Service
	Casting  *casting.Service
	Credits  *credits.Service
	Chat     *chat.Service
	Uploads  *storage.Service
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Server   config.ServerConfig
	Logger   *slog.Logger
}

type Server struct {
	accounts *accounts.Service
	casting  *casting.Service
	credits  *credits.Service
	chat     *chat.Service
	ws       *chat.WebsocketHandler
	uploads  *storage.Service
	logger   *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	s := &Server{
		accounts: d.Accounts,
		casting:  d.Casting,
		credits:  d.Credits,
		chat:     d.Chat,
		ws:       chat.NewWebsocketHandler(d.Chat, d.Server.AllowedOrigins),
		uploads:  d.Uploads,
		logger:   d.Logger,
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(CORSMiddleware(d.Server.AllowedOrigins))
	limit := RateLimitMiddleware(d.Server.RateLimitPerMinute)

	r.Route("/api/v1", func(r chi.Router) {
		// Payment callbacks bypass the rate limit.
		r.Post("/payments/webhook", s.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(limit)

			r.Post("/analyze", s.Analyze)
			r.Post("/match", s.Match)
			r.Get("/dancers", s.ListDancers)
			r.Get("/dancers/featured", s.FeaturedDancers)
			r.Get("/dancers/{id}", s.GetDancer)
			r.Get("/credits/packages", s.Packages)

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(d.Verifier))

				r.Post("/me/register", s.Register)
				r.Get("/me", s.Me)
				r.Put("/me/client-profile", s.UpsertClientProfile)
				r.Put("/me/dancer-profile", s.SubmitDancerProfile)

				r.Post("/casting-requests", s.SubmitRequest)
				r.Get("/casting-requests/mine", s.MyRequests)
				r.Get("/casting-requests/stats", s.RequestStats)

				r.Get("/credits", s.Balance)
				r.Post("/credits/purchase", s.Purchase)
				r.Post("/credits/unlock/{dancerID}", s.Unlock)
				r.Get("/credits/unlocked", s.Unlocked)
				r.Get("/credits/history", s.PurchaseHistory)

				r.Post("/messages", s.SendMessage)
				r.Get("/messages/conversations", s.Conversations)
				r.Get("/messages/unread", s.UnreadCount)
				r.Get("/messages/with/{partnerID}", s.MessageHistory)
				r.Post("/messages/{id}/read", s.MarkMessageRead)
				r.Get("/messages/ws", s.MessageStream)

				r.Post("/uploads/presign", s.PresignUpload)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminAuthMiddleware(d.Server.AdminToken, d.Verifier))
				r.Get("/dancers/pending", s.PendingDancers)
				r.Post("/dancers", s.ImportDancer)
				r.Post("/dancers/{id}/review", s.ReviewDancer)
				r.Get("/casting-requests", s.AdminListRequests)
				r.Patch("/casting-requests/{id}", s.AdminUpdateRequest)
			})
		})
	})

	return r
}

func NewMetricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
