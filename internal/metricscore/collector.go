package metricscore

import (
	"sync"
	"time"

	"gopool/internal/queue"
)

const defaultWindow = 60 * time.Second
const defaultRingCapacity = 4096

// WorkerStats accumulates per-worker metrics (§4.6).
type WorkerStats struct {
	BusyNanos        int64
	TasksCompleted   int64
	TasksFailed      int64
	DurationEWMA     float64 // milliseconds, alpha=0.2
}

func (w *WorkerStats) observe(d time.Duration, success bool) {
	w.BusyNanos += d.Nanoseconds()
	if success {
		w.TasksCompleted++
	} else {
		w.TasksFailed++
	}
	ms := float64(d.Milliseconds())
	if w.TasksCompleted+w.TasksFailed == 1 {
		w.DurationEWMA = ms
	} else {
		w.DurationEWMA = 0.2*ms + 0.8*w.DurationEWMA
	}
}

// QueueStats accumulates queue-depth metrics (§4.6).
type QueueStats struct {
	Depth           int64
	PeakDepth       int64
	TotalEnqueued   int64
	TotalDequeued   int64
	totalWaitMs     float64
	waitSamples     int64
}

func (q *QueueStats) AvgWaitMs() float64 {
	if q.waitSamples == 0 {
		return 0
	}
	return q.totalWaitMs / float64(q.waitSamples)
}

// ErrorStats accumulates error counters and a recent-N ring (§4.6).
type ErrorStats struct {
	Total    int64
	PerKind  map[string]int64
	RecentN  []string
	ringCap  int
}

func newErrorStats(ringCap int) *ErrorStats {
	return &ErrorStats{PerKind: make(map[string]int64), ringCap: ringCap}
}

func (e *ErrorStats) record(kind string) {
	e.Total++
	e.PerKind[kind]++
	e.RecentN = append(e.RecentN, kind)
	if len(e.RecentN) > e.ringCap {
		e.RecentN = e.RecentN[len(e.RecentN)-e.ringCap:]
	}
}

// Collector is the MetricsCollector of §4.6, owned exclusively by the
// orchestrator (§5) but made safe for concurrent reads since exporters and
// the admin HTTP surface poll it from another goroutine.
type Collector struct {
	mu sync.Mutex

	latency      *Histogram
	window       *queue.TimeWindow
	windowDur    time.Duration

	workers map[int]*WorkerStats
	queueStats QueueStats
	errors  *ErrorStats

	exportInterval time.Duration
	onExport       func(Snapshot)
	stopExport     chan struct{}
}

// Snapshot is a point-in-time read of the collector, safe to hand to
// exporters without holding the collector's lock.
type Snapshot struct {
	LatencyMean   float64
	LatencyP50    float64
	LatencyP95    float64
	LatencyP99    float64
	BucketCounts  []int64
	Workers       map[int]WorkerStats
	Queue         QueueStats
	ErrorsTotal   int64
	ErrorsPerKind map[string]int64
}

func New(buckets []float64, window time.Duration) *Collector {
	if window <= 0 {
		window = defaultWindow
	}
	return &Collector{
		latency: NewHistogram(buckets),
		window:  queue.NewTimeWindow(window, defaultRingCapacity),
		windowDur: window,
		workers: make(map[int]*WorkerStats),
		errors:  newErrorStats(100),
	}
}

func (c *Collector) RecordTaskEnqueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueStats.Depth++
	c.queueStats.TotalEnqueued++
	if c.queueStats.Depth > c.queueStats.PeakDepth {
		c.queueStats.PeakDepth = c.queueStats.Depth
	}
}

func (c *Collector) RecordTaskDequeued(waitTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queueStats.Depth > 0 {
		c.queueStats.Depth--
	}
	c.queueStats.TotalDequeued++
	c.queueStats.totalWaitMs += float64(waitTime.Milliseconds())
	c.queueStats.waitSamples++
}

func (c *Collector) RecordTaskSettled(workerIndex int, d time.Duration, success bool, errKind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latency.Observe(float64(d.Milliseconds()))
	c.window.Add(float64(d.Milliseconds()))

	w, ok := c.workers[workerIndex]
	if !ok {
		w = &WorkerStats{}
		c.workers[workerIndex] = w
	}
	w.observe(d, success)

	if !success {
		c.errors.record(errKind)
	}
}

func (c *Collector) DropWorker(workerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.workers, workerIndex)
}

// Snapshot returns a consistent read of all accumulators.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	samples := c.window.Snapshot()
	workers := make(map[int]WorkerStats, len(c.workers))
	for idx, w := range c.workers {
		workers[idx] = *w
	}
	perKind := make(map[string]int64, len(c.errors.PerKind))
	for k, v := range c.errors.PerKind {
		perKind[k] = v
	}

	return Snapshot{
		LatencyMean:   c.latency.Mean(),
		LatencyP50:    Percentile(samples, 50),
		LatencyP95:    Percentile(samples, 95),
		LatencyP99:    Percentile(samples, 99),
		BucketCounts:  c.latency.BucketCounts(),
		Workers:       workers,
		Queue:         c.queueStats,
		ErrorsTotal:   c.errors.Total,
		ErrorsPerKind: perKind,
	}
}

// StartExport triggers onExport every interval until StopExport is called,
// matching the configurable export interval of §4.6.
func (c *Collector) StartExport(interval time.Duration, onExport func(Snapshot)) {
	c.mu.Lock()
	if c.stopExport != nil {
		close(c.stopExport)
	}
	c.exportInterval = interval
	c.onExport = onExport
	stop := make(chan struct{})
	c.stopExport = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				onExport(c.Snapshot())
			}
		}
	}()
}

func (c *Collector) StopExport() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopExport != nil {
		close(c.stopExport)
		c.stopExport = nil
	}
}
