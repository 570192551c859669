// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricMatchesTotal        = "casting_matches_total"
	MetricMatchDuration       = "casting_match_duration_seconds"
	MetricAnalyzerFallbacks   = "casting_analyzer_fallbacks_total"
	MetricCreditsSpent        = "casting_credits_spent_total"
	MetricCreditsPurchased    = "casting_credits_purchased_total"
	MetricPurchasesExpired    = "casting_purchases_expired_total"
	MetricMessagesSent        = "casting_messages_sent_total"
	MetricWebsocketClients    = "casting_websocket_clients"
	MetricHTTPRequestDuration = "casting_http_request_duration_seconds"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	matchesTotal      *prometheus.CounterVec
	matchDuration     prometheus.Histogram
	analyzerFallbacks prometheus.Counter
	creditsSpent      prometheus.Counter
	creditsPurchased  *prometheus.CounterVec
	purchasesExpired  prometheus.Counter
	messagesSent      prometheus.Counter
	websocketClients  prometheus.Gauge
	httpDuration      *prometheus.HistogramVec
}

// New creates unregistered collectors; call Register to expose them.
func New() *Metrics {
	return &Metrics{
		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricMatchesTotal, Help: "Matching runs by analysis source"},
			[]string{"source"},
		),
		matchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricMatchDuration,
			Help:    "Time spent analyzing and ranking a brief",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}),
		analyzerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAnalyzerFallbacks,
			Help: "Briefs analyzed by the keyword fallback after the model failed",
		}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCreditsSpent,
			Help: "Credits spent on contact unlocks",
		}),
		creditsPurchased: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricCreditsPurchased, Help: "Credits granted by completed purchases"},
			[]string{"package"},
		),
		purchasesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPurchasesExpired,
			Help: "Pending purchases expired by the reaper",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMessagesSent,
			Help: "Chat messages persisted",
		}),
		websocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricWebsocketClients,
			Help: "Open chat websocket connections",
		}),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.matchesTotal, m.matchDuration, m.analyzerFallbacks,
		m.creditsSpent, m.creditsPurchased, m.purchasesExpired,
		m.messagesSent, m.websocketClients, m.httpDuration,
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveMatch(source string, seconds float64) {
	if m == nil {
		return
	}
	m.matchesTotal.WithLabelValues(source).Inc()
	m.matchDuration.Observe(seconds)
}

func (m *Metrics) IncAnalyzerFallback() {
	if m == nil {
		return
	}
	m.analyzerFallbacks.Inc()
}

func (m *Metrics) AddCreditsSpent(n int) {
	if m == nil {
		return
	}
	m.creditsSpent.Add(float64(n))
}

func (m *Metrics) AddCreditsPurchased(packageID string, n int) {
	if m == nil {
		return
	}
	m.creditsPurchased.WithLabelValues(packageID).Add(float64(n))
}

func (m *Metrics) AddPurchasesExpired(n int) {
	if m == nil {
		return
	}
	m.purchasesExpired.Add(float64(n))
}

func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) WebsocketConnected() {
	if m == nil {
		return
	}
	m.websocketClients.Inc()
}

func (m *Metrics) WebsocketDisconnected() {
	if m == nil {
		return
	}
	m.websocketClients.Dec()
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}
