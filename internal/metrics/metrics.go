package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName groups pushed series in the Pushgateway.
const JobName = "propel_billing"

// Metrics holds the billing run metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InvoicesTotal     *prometheus.CounterVec
	EmailsTotal       *prometheus.CounterVec
	PayrollsTotal     *prometheus.CounterVec
	BilledCentsTotal  prometheus.Counter
	StageDuration     *prometheus.HistogramVec
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates and registers all billing metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		InvoicesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propel_invoices_total",
				Help: "Invoices processed, by outcome",
			},
			[]string{"outcome"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propel_invoice_emails_total",
				Help: "Invoice emails attempted, by body kind and status",
			},
			[]string{"kind", "status"},
		),
		PayrollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "propel_payrolls_total",
				Help: "Payroll runs, by outcome",
			},
			[]string{"outcome"},
		),
		BilledCentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "propel_billed_cents_total",
				Help: "Session totals invoiced, in cents",
			},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "propel_stage_duration_seconds",
				Help:    "Billing cycle stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		LastSuccessfulRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "propel_last_successful_run_timestamp_seconds",
				Help: "Unix time of the last billing cycle that completed without fatal error",
			},
		),
	}

	registry.MustRegister(
		m.InvoicesTotal,
		m.EmailsTotal,
		m.PayrollsTotal,
		m.BilledCentsTotal,
		m.StageDuration,
		m.LastSuccessfulRun,
	)
	return m
}

func (m *Metrics) RecordInvoice(outcome string, billedCents int64) {
	if m == nil {
		return
	}
	m.InvoicesTotal.WithLabelValues(outcome).Inc()
	if billedCents > 0 {
		m.BilledCentsTotal.Add(float64(billedCents))
	}
}

func (m *Metrics) RecordEmail(kind, status string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordPayroll(outcome string) {
	if m == nil {
		return
	}
	m.PayrollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessfulRun.Set(float64(at.Unix()))
}

// Push sends every registered series to the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, JobName).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
