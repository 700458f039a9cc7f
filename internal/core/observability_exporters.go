package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var expvarSeq uint64

// PrometheusMetricsRecorder exports operation latency and outcome counters.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the voltschool operation collectors
// with reg. A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voltschool",
			Name:      "operation_duration_seconds",
			Help:      "Latency of service operations including remote writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voltschool",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{rec.durations, rec.results} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return rec, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// MultiMetricsRecorder fans each observation out to every recorder.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}

var expvarMu sync.Mutex

// ExpvarMetricsRecorder keeps per-operation counters in an expvar map.
// Keys are "<operation>.success", "<operation>.error" and "<operation>.ms".
type ExpvarMetricsRecorder struct {
	name string
	vars *expvar.Map
}

// NewExpvarMetricsRecorder publishes a map under name, or under a generated
// name when empty. Recorders created with the same name share one map. A name
// already published as another expvar type is rejected.
func NewExpvarMetricsRecorder(name string) (*ExpvarMetricsRecorder, error) {
	expvarMu.Lock()
	defer expvarMu.Unlock()
	if name == "" {
		name = fmt.Sprintf("voltschool_operations_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	switch v := expvar.Get(name).(type) {
	case nil:
		return &ExpvarMetricsRecorder{name: name, vars: expvar.NewMap(name)}, nil
	case *expvar.Map:
		return &ExpvarMetricsRecorder{name: name, vars: v}, nil
	default:
		return nil, fmt.Errorf("expvar %q already published as %T", name, v)
	}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.Add(outcomeKey(operation, success), 1)
	r.vars.AddFloat(operation+".ms", float64(duration)/float64(time.Millisecond))
}

// Count returns how many times operation finished with the given outcome.
func (r *ExpvarMetricsRecorder) Count(operation string, success bool) int64 {
	if v, ok := r.vars.Get(outcomeKey(operation, success)).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// Millis returns the accumulated latency of operation in milliseconds.
func (r *ExpvarMetricsRecorder) Millis(operation string) float64 {
	if v, ok := r.vars.Get(operation + ".ms").(*expvar.Float); ok {
		return v.Value()
	}
	return 0
}

func outcomeKey(operation string, success bool) string {
	if success {
		return operation + ".success"
	}
	return operation + ".error"
}

// Span is one finished service operation as written by JSONTracer.
type Span struct {
	Operation string    `json:"op"`
	OK        bool      `json:"ok"`
	Millis    float64   `json:"ms"`
	Error     string    `json:"error,omitempty"`
	Started   time.Time `json:"started"`
}

// JSONTracer appends one JSON line per finished span to w and keeps the
// spans in memory.
type JSONTracer struct {
	mu    sync.Mutex
	spans []Span
	w     io.Writer
}

// NewJSONTracer returns a tracer writing to w. A nil writer only keeps spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return &JSONTracer{w: w}
}

// Spans returns the finished spans in completion order.
func (t *JSONTracer) Spans() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Span(nil), t.spans...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, span: Span{Operation: operation, Started: time.Now().UTC()}}
}

func (t *JSONTracer) finish(s Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, s)
	if t.w == nil {
		return
	}
	line, err := json.Marshal(s)
	if err != nil {
		return
	}
	_, _ = t.w.Write(append(line, '\n'))
}

type jsonSpan struct {
	tracer *JSONTracer
	span   Span
}

func (s *jsonSpan) End(err error) {
	span := s.span
	span.Millis = float64(time.Since(span.Started)) / float64(time.Millisecond)
	span.OK = err == nil
	if err != nil {
		span.Error = err.Error()
	}
	s.tracer.finish(span)
}

// LogAuditRecorder writes audit entries to a Logger, failures at warn level.
type LogAuditRecorder struct {
	logger Logger
}

// NewLogAuditRecorder returns a recorder writing to logger.
func NewLogAuditRecorder(logger Logger) *LogAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogAuditRecorder{logger: logger}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"id", entry.EntityID,
		"status", string(entry.Status),
		"duration", entry.Duration,
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("audit", append(args, "error", entry.Error)...)
		return
	}
	r.logger.Info("audit", args...)
}
