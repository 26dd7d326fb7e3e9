// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidecar_api_request_duration_seconds",
			Help:    "Total time taken for requests in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 50, 75, 100, 150, 200, 350, 600},
		},
		[]string{"service", "stream"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sidecar_api_backend_duration_seconds",
			Help:    "Time spent waiting on a backend call before the first byte is sent",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 50, 75, 100, 150, 200, 350, 600},
		},
		[]string{"service"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_request_count_total",
			Help: "Total number of requests processed",
		},
		[]string{"service", "status"},
	)

	StreamFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_stream_frames_total",
			Help: "Total number of SSE frames relayed",
		},
		[]string{"service"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_error_count",
			Help: "Error count",
		},
		[]string{"service", "code"},
	)

	EmbeddingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_embedding_cache_total",
			Help: "Embedding cache lookups",
		},
		[]string{"result"},
	)

	PipelineLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_pipeline_loads_total",
			Help: "Heavy pipeline initialization attempts",
		},
		[]string{"service", "status"},
	)

	VideoJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_video_jobs_total",
			Help: "Video generation jobs by final state",
		},
		[]string{"state"},
	)

	VideoJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sidecar_api_video_job_duration_seconds",
			Help:    "Wall time of the video generation process",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 900, 1200, 1800, 3600},
		},
	)

	InflightJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sidecar_api_inflight_video_jobs",
			Help: "Current running video generation processes",
		},
	)

	SweptOutputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sidecar_api_swept_video_outputs_total",
			Help: "Orphaned video outputs removed by the sweeper",
		},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sidecar_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
