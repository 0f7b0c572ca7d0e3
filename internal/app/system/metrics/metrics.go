// internal/app/system/metrics/metrics.go

// Package metrics records auth flow counters and exposes them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OK      = "ok"
	Failed  = "failed"
	Blocked = "blocked"
)

// Recorder is the set of events the auth flow reports.
type Recorder interface {
	// RecordSignIn counts a sign-in attempt by method ("password", "google", ...)
	// and auth code ("" on success).
	RecordSignIn(method, code string)
	RecordSessionMint(outcome string)
	RecordGuardDecision(kind, action string)
	RecordRateLimited(route string)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	signIns     *prometheus.CounterVec
	sessionMint *prometheus.CounterVec
	guard       *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venturecamp_signin_total",
			Help: "Sign-in attempts by method and result code.",
		}, []string{"method", "code"}),
		sessionMint: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venturecamp_session_mint_total",
			Help: "Session cookie mint requests by outcome.",
		}, []string{"outcome"}),
		guard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venturecamp_guard_decisions_total",
			Help: "Route guard decisions by route kind and action.",
		}, []string{"kind", "action"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "venturecamp_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(c.signIns, c.sessionMint, c.guard, c.rateLimited)
	return c
}

func (c *Collector) RecordSignIn(method, code string) {
	if code == "" {
		code = OK
	}
	c.signIns.WithLabelValues(method, code).Inc()
}

func (c *Collector) RecordSessionMint(outcome string) {
	c.sessionMint.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordGuardDecision(kind, action string) {
	c.guard.WithLabelValues(kind, action).Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSignIn(string, string)        {}
func (Nop) RecordSessionMint(string)           {}
func (Nop) RecordGuardDecision(string, string) {}
func (Nop) RecordRateLimited(string)           {}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
