package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobSubmittedTotal atomic.Uint64
	jobCompletedTotal atomic.Uint64
	jobFailedTotal    atomic.Uint64
	jobCancelledTotal atomic.Uint64

	unitCompletedTotal atomic.Uint64
	unitFailedTotal    atomic.Uint64

	itemEvaluatedTotal atomic.Uint64
	itemErroredTotal   atomic.Uint64

	jobDuration = newHistogram([]float64{250, 1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncJobSubmitted increments the submitted job counter.
func IncJobSubmitted() {
	jobSubmittedTotal.Add(1)
}

// IncJobCompleted increments the completed job counter.
func IncJobCompleted() {
	jobCompletedTotal.Add(1)
}

// IncJobFailed increments the failed job counter.
func IncJobFailed() {
	jobFailedTotal.Add(1)
}

// IncJobCancelled increments the cancelled job counter.
func IncJobCancelled() {
	jobCancelledTotal.Add(1)
}

// IncUnitCompleted increments the completed unit counter.
func IncUnitCompleted() {
	unitCompletedTotal.Add(1)
}

// IncUnitFailed increments the failed unit counter.
func IncUnitFailed() {
	unitFailedTotal.Add(1)
}

// IncItemEvaluated increments the evaluated checklist item counter.
func IncItemEvaluated() {
	itemEvaluatedTotal.Add(1)
}

// IncItemErrored increments the errored checklist item counter.
func IncItemErrored() {
	itemErroredTotal.Add(1)
}

// ObserveJobDurationMs records a job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_job_submitted_total", "Total analysis jobs submitted", jobSubmittedTotal.Load())
	writeCounter(&buf, "analysis_job_completed_total", "Total analysis jobs completed", jobCompletedTotal.Load())
	writeCounter(&buf, "analysis_job_failed_total", "Total analysis jobs failed", jobFailedTotal.Load())
	writeCounter(&buf, "analysis_job_cancelled_total", "Total analysis jobs cancelled", jobCancelledTotal.Load())
	writeCounter(&buf, "analysis_unit_completed_total", "Total document units completed", unitCompletedTotal.Load())
	writeCounter(&buf, "analysis_unit_failed_total", "Total document units failed", unitFailedTotal.Load())
	writeCounter(&buf, "checklist_item_evaluated_total", "Total checklist items evaluated", itemEvaluatedTotal.Load())
	writeCounter(&buf, "checklist_item_errored_total", "Total checklist item evaluations that errored", itemErroredTotal.Load())
	writeHistogram(&buf, "analysis_job_duration_ms", "Analysis job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
