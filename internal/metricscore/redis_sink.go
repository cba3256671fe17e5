package metricscore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes metrics snapshots to a Redis key so external
// dashboards (outside this process) can poll pool health without scraping
// Prometheus — an additional export target alongside OTelExporter, grounded
// on the teacher's use of go-redis pipelines in internal/rate/limiter.go.
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSink(client *redis.Client, poolName string, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{
		client: client,
		key:    fmt.Sprintf("gopool:metrics:%s", poolName),
		ttl:    5 * time.Minute,
		logger: logger,
	}
}

// Push serializes the snapshot as JSON and stores it with a TTL so a dead
// pool's last snapshot expires rather than lying around forever.
func (s *RedisSink) Push(ctx context.Context, snap Snapshot) {
	data, err := json.Marshal(redisSnapshot{
		LatencyMean: snap.LatencyMean,
		LatencyP50:  snap.LatencyP50,
		LatencyP95:  snap.LatencyP95,
		LatencyP99:  snap.LatencyP99,
		QueueDepth:  snap.Queue.Depth,
		PeakDepth:   snap.Queue.PeakDepth,
		ErrorsTotal: snap.ErrorsTotal,
		Workers:     len(snap.Workers),
		At:          time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to marshal metrics snapshot", zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to publish metrics snapshot to redis", zap.Error(err))
	}
}

type redisSnapshot struct {
	LatencyMean float64   `json:"latency_mean_ms"`
	LatencyP50  float64   `json:"latency_p50_ms"`
	LatencyP95  float64   `json:"latency_p95_ms"`
	LatencyP99  float64   `json:"latency_p99_ms"`
	QueueDepth  int64     `json:"queue_depth"`
	PeakDepth   int64     `json:"queue_peak_depth"`
	ErrorsTotal int64     `json:"errors_total"`
	Workers     int       `json:"workers"`
	At          time.Time `json:"at"`
}
