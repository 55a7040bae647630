package runtimestate

import "github.com/prometheus/client_golang/prometheus"

// prometheusMetrics mirrors the same Golden Signals the JSON
// /ops/metrics endpoint reports into a Prometheus registry, so a real
// scraper can consume them on /ops/prometheus. Names follow the
// reference runtime's OTEL instrument names with dots folded to
// underscores, the idiomatic Prometheus naming convention.
type prometheusMetrics struct {
	webhooksReceived  prometheus.Counter
	webhooksProcessed prometheus.Counter
	webhooksIgnored   prometheus.Counter
	webhooksFailed    prometheus.Counter

	agentRunsCompleted prometheus.Counter
	agentRunsFailed    prometheus.Counter
	runDuration        prometheus.Histogram

	incidentsActive prometheus.Gauge

	tokensInput  prometheus.Counter
	tokensOutput prometheus.Counter
	tokensPerRun prometheus.Histogram

	alertsDeduplicated prometheus.Counter
	alertsQueued       prometheus.Counter
	alertsExpired      prometheus.Counter
	queueDepth         prometheus.Gauge
}

func newPrometheusMetrics(reg prometheus.Registerer) *prometheusMetrics {
	m := &prometheusMetrics{
		webhooksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_webhooks_received_total",
			Help: "Total webhooks received",
		}),
		webhooksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_webhooks_processed_total",
			Help: "Total webhooks processed (accepted for agent triage)",
		}),
		webhooksIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_webhooks_ignored_total",
			Help: "Total webhooks ignored (non-incident events)",
		}),
		webhooksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_webhooks_failed_total",
			Help: "Total webhooks that failed (auth, parse, or processing errors)",
		}),
		agentRunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_runs_completed_total",
			Help: "Total agent runs completed successfully",
		}),
		agentRunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_runs_failed_total",
			Help: "Total agent runs that failed",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sre_agent_run_duration_seconds",
			Help:    "Agent run duration",
			Buckets: prometheus.DefBuckets,
		}),
		incidentsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sre_agent_incidents_active",
			Help: "Currently active incidents being processed",
		}),
		tokensInput: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_tokens_input_total",
			Help: "Total input tokens sent to the LLM API",
		}),
		tokensOutput: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_tokens_output_total",
			Help: "Total output tokens received from the LLM API",
		}),
		tokensPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sre_agent_tokens_per_run",
			Help:    "Total tokens consumed per agent run",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}),
		alertsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_intake_deduplicated_total",
			Help: "Alerts skipped due to incident-level deduplication",
		}),
		alertsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_intake_queued_total",
			Help: "Alerts queued (service busy or concurrency limit reached)",
		}),
		alertsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sre_agent_intake_expired_total",
			Help: "Queued alerts expired past TTL without processing",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sre_agent_intake_queue_depth",
			Help: "Current number of alerts waiting in the intake queue",
		}),
	}

	reg.MustRegister(
		m.webhooksReceived, m.webhooksProcessed, m.webhooksIgnored, m.webhooksFailed,
		m.agentRunsCompleted, m.agentRunsFailed, m.runDuration, m.incidentsActive,
		m.tokensInput, m.tokensOutput, m.tokensPerRun,
		m.alertsDeduplicated, m.alertsQueued, m.alertsExpired, m.queueDepth,
	)
	return m
}
