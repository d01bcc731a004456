package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/journeylens-backend/internal/logger"
)

// Metrics is the pipeline's fire-and-forget metrics sink, exposed in
// Prometheus text format. All methods are nil-safe so instrumentation can be
// left wired when metrics are disabled.
type Metrics struct {
	eventsProcessed     *CounterVec
	strugglesDetected   *CounterVec
	highVideoEngagement *Counter
	modelPredictions    *Counter
	aiServiceErrors     *CounterVec
	interventions       *CounterVec
	archiveFailures     *Counter
	publishFailures     *Counter
	trackedUsers        *Gauge
	processingDuration  *HistogramVec
}

func NewMetrics(log *logger.Logger) *Metrics {
	m := &Metrics{
		eventsProcessed:     NewCounterVec("uj_events_processed_total", "Events processed by type.", []string{"event_type"}),
		strugglesDetected:   NewCounterVec("uj_struggle_signals_detected_total", "Struggle signals detected by feature.", []string{"feature"}),
		highVideoEngagement: NewCounter("uj_high_video_engagement_total", "Video engagement events with completion rate above 80 percent."),
		modelPredictions:    NewCounter("uj_model_predictions_total", "Exit-risk model invocations issued."),
		aiServiceErrors:     NewCounterVec("uj_ai_service_errors_total", "AI collaborator failures by service and kind.", []string{"service", "kind"}),
		interventions:       NewCounterVec("uj_interventions_executed_total", "Interventions executed by kind.", []string{"kind"}),
		archiveFailures:     NewCounter("uj_event_archive_failures_total", "Durable archive writes that failed."),
		publishFailures:     NewCounter("uj_stream_publish_failures_total", "Stream publishes that failed."),
		trackedUsers:        NewGauge("uj_tracked_users", "Distinct users with retained history."),
		processingDuration: NewHistogramVec(
			"uj_event_processing_duration_seconds",
			"Event processing duration in seconds.",
			[]string{"status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		),
	}
	if log != nil {
		log.Info("Observability metrics enabled")
	}
	return m
}

func (m *Metrics) IncEventProcessed(eventType string) {
	if m == nil {
		return
	}
	m.eventsProcessed.Inc(eventType)
}

func (m *Metrics) IncStruggleDetected(feature string) {
	if m == nil {
		return
	}
	m.strugglesDetected.Inc(feature)
}

func (m *Metrics) IncHighVideoEngagement() {
	if m == nil {
		return
	}
	m.highVideoEngagement.Inc()
}

func (m *Metrics) IncModelPrediction() {
	if m == nil {
		return
	}
	m.modelPredictions.Inc()
}

func (m *Metrics) IncAIServiceError(service, kind string) {
	if m == nil {
		return
	}
	m.aiServiceErrors.Inc(service, kind)
}

func (m *Metrics) IncInterventionExecuted(kind string) {
	if m == nil {
		return
	}
	m.interventions.Inc(kind)
}

func (m *Metrics) IncArchiveFailure() {
	if m == nil {
		return
	}
	m.archiveFailures.Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) SetTrackedUsers(n int) {
	if m == nil {
		return
	}
	m.trackedUsers.Set(float64(n))
}

func (m *Metrics) ObserveProcessing(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.processingDuration.Observe(dur.Seconds(), status)
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.eventsProcessed,
		m.strugglesDetected,
		m.highVideoEngagement,
		m.modelPredictions,
		m.aiServiceErrors,
		m.interventions,
		m.archiveFailures,
		m.publishFailures,
		m.trackedUsers,
		m.processingDuration,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for i, name := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Value(values ...string) float64 {
	if c == nil {
		return 0
	}
	lbl := labelString(c.labelNames, values)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[lbl]
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	counts     map[string][]float64
	sums       map[string]float64
	totals     map[string]float64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	return &HistogramVec{
		name:       name,
		help:       help,
		labelNames: labels,
		buckets:    buckets,
		counts:     map[string][]float64{},
		sums:       map[string]float64{},
		totals:     map[string]float64{},
	}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	counts, ok := h.counts[lbl]
	if !ok {
		counts = make([]float64, len(h.buckets))
		h.counts[lbl] = counts
	}
	for i, upper := range h.buckets {
		if v <= upper {
			counts[i]++
		}
	}
	h.sums[lbl] += v
	h.totals[lbl]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.totals))
	for k := range h.totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, lbl := range keys {
		inner := strings.TrimSuffix(strings.TrimPrefix(lbl, "{"), "}")
		for i, upper := range h.buckets {
			bucketLbl := fmt.Sprintf("le=%q", fmt.Sprintf("%g", upper))
			if inner != "" {
				bucketLbl = inner + "," + bucketLbl
			}
			if _, err := fmt.Fprintf(w, "%s_bucket{%s} %f\n", h.name, bucketLbl, h.counts[lbl][i]); err != nil {
				return err
			}
		}
		infLbl := `le="+Inf"`
		if inner != "" {
			infLbl = inner + "," + infLbl
		}
		if _, err := fmt.Fprintf(w, "%s_bucket{%s} %f\n", h.name, infLbl, h.totals[lbl]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, lbl, h.sums[lbl]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %f\n", h.name, lbl, h.totals[lbl]); err != nil {
			return err
		}
	}
	return nil
}
