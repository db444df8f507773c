package periods

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gridlog/gridlog/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Job processes scheduler-triggered period lifecycle tasks. Failures are
// logged and surfaced to asynq; the next tick retries safely because both
// operations are idempotent.
type Job struct {
	service *Service
	logger  *slog.Logger
}

// NewJob constructs a job handler.
func NewJob(service *Service, logger *slog.Logger) *Job {
	return &Job{service: service, logger: logger}
}

// HandleRollover fulfils the asynq.HandlerFunc contract for weekly rollover.
func (j *Job) HandleRollover(ctx context.Context, _ *asynq.Task) error {
	tracker := defaultJobMetrics.Track("periods.rollover")
	result, err := j.service.Rollover(ctx)
	if err != nil {
		j.logger.Error("period rollover", slog.Any("error", err))
		return tracker.End(err)
	}
	attrs := []any{slog.Int("closed", len(result.ClosedPeriods))}
	if result.Created != nil {
		attrs = append(attrs, slog.Int64("created_period", result.Created.ID))
	}
	j.logger.Info("period rollover complete", attrs...)
	return tracker.End(nil)
}

// HandleAutoClose fulfils the asynq.HandlerFunc contract for scheduled
// period auto-close.
func (j *Job) HandleAutoClose(ctx context.Context, _ *asynq.Task) error {
	tracker := defaultJobMetrics.Track("periods.autoclose")
	closed, err := j.service.AutoCloseExpired(ctx)
	if err != nil {
		j.logger.Error("period auto-close", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(closed) > 0 {
		j.logger.Info("periods auto-closed", slog.Any("ids", closed))
	}
	return tracker.End(nil)
}
