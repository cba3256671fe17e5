package metricscore

import (
	"testing"
	"time"
)

func TestHistogramBucketing(t *testing.T) {
	h := NewHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	counts := h.BucketCounts()
	if counts[0] != 1 || counts[1] != 1 || counts[2] != 1 {
		t.Fatalf("unexpected bucket distribution: %v", counts)
	}
	if h.Total() != 3 {
		t.Fatalf("expected 3 total observations, got %d", h.Total())
	}
}

func TestPercentile(t *testing.T) {
	samples := []float64{10, 20, 30, 40, 50}
	if p := Percentile(samples, 50); p != 30 {
		t.Fatalf("expected median 30, got %v", p)
	}
	if p := Percentile(samples, 0); p != 10 {
		t.Fatalf("expected min 10, got %v", p)
	}
	if p := Percentile(samples, 100); p != 50 {
		t.Fatalf("expected max 50, got %v", p)
	}
}

func TestCollectorTracksQueueDepthAndWorkerStats(t *testing.T) {
	c := New(nil, time.Minute)
	c.RecordTaskEnqueued()
	c.RecordTaskEnqueued()
	c.RecordTaskDequeued(5 * time.Millisecond)
	c.RecordTaskSettled(0, 20*time.Millisecond, true, "")

	snap := c.Snapshot()
	if snap.Queue.Depth != 1 {
		t.Fatalf("expected queue depth 1, got %d", snap.Queue.Depth)
	}
	if snap.Queue.PeakDepth != 2 {
		t.Fatalf("expected peak depth 2, got %d", snap.Queue.PeakDepth)
	}
	w, ok := snap.Workers[0]
	if !ok || w.TasksCompleted != 1 {
		t.Fatalf("expected worker 0 to have 1 completed task, got %+v", w)
	}
}

func TestCollectorRecordsErrors(t *testing.T) {
	c := New(nil, time.Minute)
	c.RecordTaskSettled(1, time.Millisecond, false, "TimeoutError")

	snap := c.Snapshot()
	if snap.ErrorsTotal != 1 || snap.ErrorsPerKind["TimeoutError"] != 1 {
		t.Fatalf("expected one TimeoutError recorded, got %+v", snap.ErrorsPerKind)
	}
}
