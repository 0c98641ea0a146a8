// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ai_codegen"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 代码生成
	CodeGenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codegen",
			Name:      "generation_total",
			Help:      "Total number of code generations",
		},
		[]string{"gen_type", "status"},
	)

	CodeGenDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "codegen",
			Name:      "generation_duration_seconds",
			Help:      "Code generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"gen_type"},
	)

	StreamChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codegen",
			Name:      "stream_chunks_total",
			Help:      "Total number of streamed chunks forwarded to callers",
		},
		[]string{"gen_type"},
	)

	StreamAbortedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codegen",
			Name:      "stream_aborted_total",
			Help:      "Total number of streams aborted before completion",
		},
		[]string{"gen_type", "reason"}, // reason: cancelled/model_error
	)

	// 路由回退指标：路由失败被静默降级为 html，必须可观测
	RouterFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "codegen",
			Name:      "router_fallback_total",
			Help:      "Total number of routing calls that fell back to the html type",
		},
	)

	// 客户端缓存指标
	ClientCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client_cache",
			Name:      "entries",
			Help:      "Current number of cached AI client entries",
		},
	)

	ClientCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client_cache",
			Name:      "evictions_total",
			Help:      "Total number of cache entry evictions",
		},
		[]string{"reason"}, // reason: write_ttl/access_ttl/capacity
	)

	ClientCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client_cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups",
		},
		[]string{"result"}, // result: hit/miss
	)

	// LLM 指标
	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total tokens used for LLM calls",
		},
		[]string{"provider", "model", "type"}, // type: prompt/completion
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	LLMCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total number of LLM calls",
		},
		[]string{"provider", "model", "status"},
	)

	GuardrailRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "guardrail_retries_total",
			Help:      "Total number of output-guardrail retries",
		},
	)

	GuardrailRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "guardrail_rejections_total",
			Help:      "Total number of prompts rejected by the input guardrail",
		},
	)

	// 工作流指标
	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of agent workflow runs",
		},
		[]string{"status"},
	)

	WorkflowFixRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "fix_rounds",
			Help:      "Quality-fix rounds spent per workflow run",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// 质检回退指标：质检异常被降级为通过，必须可观测
	QualityCheckFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "quality_check_fallback_total",
			Help:      "Total number of quality checks that passed due to checker failure",
		},
	)

	ImagesCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "images_collected_total",
			Help:      "Total number of images collected for generated apps",
		},
		[]string{"kind"}, // kind: content/illustration/logo/diagram
	)

	// 截图任务指标
	ScreenshotJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "screenshot",
			Name:      "jobs_total",
			Help:      "Total number of screenshot jobs processed",
		},
		[]string{"status"},
	)
)
