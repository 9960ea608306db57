package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeRecurringSweep advances recurring invoice series.
	TaskTypeRecurringSweep = "invoice:recurring-sweep"
	// TaskTypeDueStatusSweep reclassifies open invoices as due or overdue.
	TaskTypeDueStatusSweep = "invoice:due-status-sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewRecurringSweepTask constructs the recurring sweep task. The sweep carries
// no payload; it always processes everything due as of its run time.
func NewRecurringSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRecurringSweep, nil)
}

// NewDueStatusSweepTask constructs the due-status sweep task.
func NewDueStatusSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDueStatusSweep, nil)
}
