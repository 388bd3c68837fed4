package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	turnTotal       *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	checkpointTotal *prometheus.CounterVec
	activeStates    prometheus.Gauge
	persistFailures prometheus.Counter

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	generationTotal    *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	providerCooldown   *prometheus.GaugeVec

	jobSearchTotal   *prometheus.CounterVec
	jobSearchResults prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "ikigai_lane_queue_size",
					Help: "Pending turns per session lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_lane_enqueue_total",
					Help: "Turns enqueued by lane status.",
				},
				[]string{"status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ikigai_lane_task_duration_seconds",
					Help:    "Time spent running a queued turn.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"status"},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_turn_total",
					Help: "Interview turns by path and outcome.",
				},
				[]string{"path", "outcome"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ikigai_turn_duration_seconds",
					Help:    "Interview turn latency by path.",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"path"},
			),
			checkpointTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_checkpoint_total",
					Help: "Checkpoint syntheses by kind and whether the fallback was used.",
				},
				[]string{"kind", "fallback"},
			),
			activeStates: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "ikigai_active_interview_states",
					Help: "Interview states currently held by the state store.",
				},
			),
			persistFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "ikigai_persist_failures_total",
					Help: "Best-effort history writes that failed.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_tool_execution_total",
					Help: "Tool gateway executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ikigai_tool_execution_duration_seconds",
					Help:    "Tool gateway execution duration by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			generationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_generation_total",
					Help: "Language generation calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			generationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ikigai_generation_duration_seconds",
					Help:    "Language generation latency by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			providerCooldown: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "ikigai_provider_cooldown_active",
					Help: "Provider profile cooldown (1 active, 0 inactive).",
				},
				[]string{"profile"},
			),
			jobSearchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ikigai_job_search_total",
					Help: "Job searches by country and outcome.",
				},
				[]string{"country", "outcome"},
			),
			jobSearchResults: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "ikigai_job_search_results",
					Help:    "Postings returned per search.",
					Buckets: []float64{0, 1, 5, 10, 20, 50},
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.taskDuration,
			m.turnTotal,
			m.turnDuration,
			m.checkpointTotal,
			m.activeStates,
			m.persistFailures,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.generationTotal,
			m.generationDuration,
			m.providerCooldown,
			m.jobSearchTotal,
			m.jobSearchResults,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues("enqueued").Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

// RecordQueueCompletion records a finished lane task. Lanes are per session,
// so the queue gauge is dropped once the lane drains.
func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	m.taskDuration.WithLabelValues(statusLabel(success)).Observe(duration.Seconds())
	if queueSize == 0 {
		m.queueSize.DeleteLabelValues(lane)
		return
	}
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordTurn(path, outcome string, duration time.Duration) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(path, outcome).Inc()
	m.turnDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func RecordCheckpoint(kind string, fallback bool) {
	m := getMetrics()
	label := "false"
	if fallback {
		label = "true"
	}
	m.checkpointTotal.WithLabelValues(kind, label).Inc()
}

func SetActiveStates(count int) {
	getMetrics().activeStates.Set(float64(count))
}

func RecordPersistFailure() {
	getMetrics().persistFailures.Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordGeneration(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.generationTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetProviderCooldown(profile string, active bool) {
	value := 0.0
	if active {
		value = 1.0
	}
	getMetrics().providerCooldown.WithLabelValues(profile).Set(value)
}

func RecordJobSearch(country, outcome string, results int) {
	m := getMetrics()
	m.jobSearchTotal.WithLabelValues(country, outcome).Inc()
	m.jobSearchResults.Observe(float64(results))
}
