package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/gridlog/gridlog/internal/notifications"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskNotifyDispatch delivers one workflow event to its recipient.
	TaskNotifyDispatch = "notify:dispatch"
	// TaskPeriodRollover opens the current reporting window and closes stale ones.
	TaskPeriodRollover = "periods:rollover"
	// TaskPeriodAutoClose closes periods whose scheduled close time passed.
	TaskPeriodAutoClose = "periods:autoclose"
	// TaskWeeklyReminder nudges employees who have not submitted yet.
	TaskWeeklyReminder = "notify:weekly_reminder"
	// TaskDeadlineApproaching warns pending employees on deadline day.
	TaskDeadlineApproaching = "notify:deadline_approaching"
	// TaskOverdueSummary tells supervisors how many reports are overdue.
	TaskOverdueSummary = "notify:overdue_summary"
)

// NewDispatchTask wraps a workflow event for deferred delivery. The event id
// doubles as the task id so a retried publish cannot enqueue a duplicate.
func NewDispatchTask(event notifications.Event) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.TaskID("notify:dispatch:" + event.ID.String()),
		asynq.MaxRetry(5),
	}
	return asynq.NewTask(TaskNotifyDispatch, data), opts, nil
}
