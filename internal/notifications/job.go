package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gridlog/gridlog/internal/jobs"
	"github.com/gridlog/gridlog/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Job adapts the dispatcher and broadcast operations to asynq handlers.
type Job struct {
	service *Service
	logger  *slog.Logger
}

// NewJob constructs a job handler.
func NewJob(service *Service, logger *slog.Logger) *Job {
	return &Job{service: service, logger: logger}
}

// HandleDispatch processes one deferred event. The report may have been
// deleted between commit and dispatch; that is terminal, not retryable.
func (j *Job) HandleDispatch(ctx context.Context, task *asynq.Task) error {
	tracker := defaultJobMetrics.Track("notify.dispatch")
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	if err := j.service.Dispatch(ctx, event); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			j.logger.Warn("dispatch target vanished",
				slog.String("event_id", event.ID.String()),
				slog.Int64("report_id", event.ReportID))
			return tracker.End(asynq.SkipRetry)
		}
		j.logger.Error("dispatch event",
			slog.String("kind", string(event.Kind)),
			slog.Int64("report_id", event.ReportID),
			slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

// HandleWeeklyReminder runs the weekly reminder broadcast.
func (j *Job) HandleWeeklyReminder(ctx context.Context, _ *asynq.Task) error {
	tracker := defaultJobMetrics.Track("notify.weekly_reminder")
	count, err := j.service.WeeklyReminder(ctx)
	if err != nil {
		j.logger.Error("weekly reminder", slog.Any("error", err))
		return tracker.End(err)
	}
	defaultJobMetrics.AddDeliveries(string(TypeWeeklyReminder), count)
	j.logger.Info("weekly reminders sent", slog.Int("count", count))
	return tracker.End(nil)
}

// HandleDeadlineApproaching runs the deadline-day broadcast.
func (j *Job) HandleDeadlineApproaching(ctx context.Context, _ *asynq.Task) error {
	tracker := defaultJobMetrics.Track("notify.deadline_approaching")
	count, err := j.service.DeadlineApproaching(ctx)
	if err != nil {
		j.logger.Error("deadline approaching", slog.Any("error", err))
		return tracker.End(err)
	}
	if count > 0 {
		defaultJobMetrics.AddDeliveries(string(TypeDeadlineApproaching), count)
		j.logger.Info("deadline notifications sent", slog.Int("count", count))
	}
	return tracker.End(nil)
}

// HandleOverdueSummary runs the supervisor overdue summary broadcast.
func (j *Job) HandleOverdueSummary(ctx context.Context, _ *asynq.Task) error {
	tracker := defaultJobMetrics.Track("notify.overdue_summary")
	count, err := j.service.OverdueSummary(ctx)
	if err != nil {
		j.logger.Error("overdue summary", slog.Any("error", err))
		return tracker.End(err)
	}
	defaultJobMetrics.AddDeliveries(string(TypeOverdueSummary), count)
	j.logger.Info("overdue summaries sent", slog.Int("count", count))
	return tracker.End(nil)
}
