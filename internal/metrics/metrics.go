package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Maintenance agent metrics for production monitoring
var (
	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"workflow", "status"}, // status: persisted/failed/skipped
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maintenance_agent_pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
		},
		[]string{"workflow"},
	)

	PipelineStageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_pipeline_stage_failures_total",
			Help: "Total number of runs that failed, by stage reached",
		},
		[]string{"workflow", "stage"},
	)

	// Degradation metrics
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_fallbacks_total",
			Help: "Total number of reads served with empty or synthetic data",
		},
		[]string{"source"}, // history/windows/inventory/suppliers
	)

	TranscriptErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_transcript_errors_total",
			Help: "Total number of transcript load/save failures",
		},
		[]string{"op"}, // load/save
	)

	// Extraction metrics
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_extraction_failures_total",
			Help: "Total number of unusable model responses by error kind",
		},
		[]string{"kind"}, // extraction/malformed_json/schema
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: input/output
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maintenance_agent_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
		},
		[]string{"provider", "model"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_agent_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "code"},
	)
)
