package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hugwawi/hugwawi-admin/internal/contacttypes"
	jobmetrics "github.com/hugwawi/hugwawi-admin/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ContactTypesWarmupJob refreshes the Redis-cached contact-type
// catalogue ahead of its TTL, so the search screen never waits for a
// cold fetch.
type ContactTypesWarmupJob struct {
	Cache   *contacttypes.Cache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewContactTypesWarmupJob wires dependencies for the warmup handler.
func NewContactTypesWarmupJob(cache *contacttypes.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *ContactTypesWarmupJob {
	return &ContactTypesWarmupJob{
		Cache:   cache,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes contact-type warmup tasks.
func (j *ContactTypesWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("contact types warmup: handler not configured")
	}
	var payload ContactTypesWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(TaskContactTypesWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := j.now()

	refreshCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := j.Cache.Refresh(refreshCtx); err != nil {
		resultErr = err
		logger.Error("refresh contact types", slog.Any("error", err))
		return resultErr
	}

	logger.Info("refreshed contact types", slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ContactTypesWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ContactTypesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ContactTypesWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
