// Package metrics records Prometheus metrics for agent runs, model calls and
// HTTP requests.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/martinemde/chatagent/agentloop"
	"github.com/martinemde/chatagent/unifiedllm"
)

const namespace = "chatagent"

// Observer counts model and tool activity. It implements agentloop.Observer.
type Observer struct {
	modelCalls      *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	toolCalls       *prometheus.CounterVec
	toolErrors      prometheus.Counter
	toolResultChars prometheus.Histogram
	retries         prometheus.Counter
	llmDuration     *prometheus.HistogramVec
}

var _ agentloop.Observer = (*Observer)(nil)

// NewObserver registers the agent metrics on reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model calls started by the agent loop, by model display name.",
		}, []string{"model"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by providers, by type (prompt or completion).",
		}, []string{"type"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations, by tool name.",
		}, []string{"tool"}),
		toolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_errors_total",
			Help:      "Tool invocations that failed.",
		}),
		toolResultChars: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_result_chars",
			Help:      "Length of tool results in characters.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Runs restarted because the model called an undeclared tool.",
		}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of provider completions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "model", "status"}),
	}
}

func (o *Observer) ModelStart(_ context.Context, model string, _ int) {
	o.modelCalls.WithLabelValues(model).Inc()
}

func (o *Observer) ModelEnd(_ context.Context, usage *unifiedllm.Usage) {
	if usage == nil {
		return
	}
	o.tokens.WithLabelValues("prompt").Add(float64(usage.InputTokens))
	o.tokens.WithLabelValues("completion").Add(float64(usage.OutputTokens))
}

func (o *Observer) ToolStart(_ context.Context, tool, _ string) {
	o.toolCalls.WithLabelValues(tool).Inc()
}

func (o *Observer) ToolEnd(_ context.Context, resultChars int, _ string) {
	o.toolResultChars.Observe(float64(resultChars))
}

func (o *Observer) ToolError(context.Context, error) {
	o.toolErrors.Inc()
}

// ObserveRetry counts a restart. Its signature matches agentloop.WithRetryListener.
func (o *Observer) ObserveRetry(error, int) {
	o.retries.Inc()
}

// Middleware times each provider completion.
func (o *Observer) Middleware() unifiedllm.Middleware {
	return func(ctx context.Context, req unifiedllm.Request, next func(context.Context, unifiedllm.Request) (*unifiedllm.Response, error)) (*unifiedllm.Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.llmDuration.WithLabelValues(req.Provider, req.Model, status).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// HTTPRecorder counts and times HTTP requests.
type HTTPRecorder struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPRecorder registers the HTTP metrics on reg.
func NewHTTPRecorder(reg prometheus.Registerer) *HTTPRecorder {
	f := promauto.With(reg)
	return &HTTPRecorder{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"path", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// ObserveRequest records one finished request. path should be the route
// pattern, not the raw URL, to bound label cardinality.
func (r *HTTPRecorder) ObserveRequest(path string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}
