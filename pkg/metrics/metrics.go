// Package metrics exports provider call, token, analysis and spend counters
// in the Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
)

const namespace = "readq"

// Auditor receives one entry per dispatched provider call.
type Auditor interface {
	Log(ctx context.Context, e models.AuditEntry) error
}

// Collector owns the readq metric families.
type Collector struct {
	calls    *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	analyses *prometheus.CounterVec
	spend    prometheus.Gauge
	limit    prometheus.Gauge
	gatherer prometheus.Gatherer
}

// New registers the metric families on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Provider calls by outcome (ok, cached, failed)",
		}, []string{"provider", "model", "status"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "tokens_total",
			Help:      "Tokens reported by providers",
		}, []string{"provider", "model"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Provider call latency including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "URL analysis pipeline runs by event",
		}, []string{"event"}),
		spend: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cost",
			Name:      "total_spend_usd",
			Help:      "Total tracked spend in USD",
		}),
		limit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cost",
			Name:      "budget_limit_usd",
			Help:      "Configured budget limit in USD, 0 when unset",
		}),
		gatherer: reg,
	}
}

// Observe records one provider call.
func (c *Collector) Observe(e models.AuditEntry) {
	status := "ok"
	switch {
	case !e.Success:
		status = "failed"
	case e.Cached:
		status = "cached"
	}
	c.calls.WithLabelValues(e.Provider, e.Model, status).Inc()
	if e.TotalTokens > 0 {
		c.tokens.WithLabelValues(e.Provider, e.Model).Add(float64(e.TotalTokens))
	}
	if !e.Cached {
		c.latency.WithLabelValues(e.Provider).Observe(float64(e.LatencyMs) / 1000)
	}
}

// Auditor returns an Auditor that observes each entry and then forwards it
// to next. next may be nil.
func (c *Collector) Auditor(next Auditor) Auditor {
	return &observingAuditor{c: c, next: next}
}

type observingAuditor struct {
	c    *Collector
	next Auditor
}

func (a *observingAuditor) Log(ctx context.Context, e models.AuditEntry) error {
	a.c.Observe(e)
	if a.next == nil {
		return nil
	}
	return a.next.Log(ctx, e)
}

// Attach subscribes the collector to analysis and cost events. The returned
// function detaches it.
func (c *Collector) Attach(e *events.Emitter) func() {
	offs := []func(){
		events.Subscribe(e, func(events.AnalysisStarted) {
			c.analyses.WithLabelValues("started").Inc()
		}),
		events.Subscribe(e, func(events.AnalysisCompleted) {
			c.analyses.WithLabelValues("completed").Inc()
		}),
		events.Subscribe(e, func(events.AnalysisFailed) {
			c.analyses.WithLabelValues("failed").Inc()
		}),
		events.Subscribe(e, func(p events.CostUpdated) {
			c.SetSpend(p.TotalSpend, p.BudgetLimit)
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// SetSpend sets the spend and limit gauges.
func (c *Collector) SetSpend(total float64, limit *float64) {
	c.spend.Set(total)
	if limit != nil {
		c.limit.Set(*limit)
	} else {
		c.limit.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
