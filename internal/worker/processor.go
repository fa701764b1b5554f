package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/metrics"
	"repair-job-service/internal/service"
)

type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

type ActivityReader interface {
	GetActivity(ctx context.Context, jobID uuid.UUID, id int64) (*entity.ActivityLog, error)
}

// Notification is one message about a job for its customer or technician.
type Notification struct {
	JobID     uuid.UUID
	JobNumber string
	Event     string
	Status    entity.JobStatus
	Priority  entity.Priority
	Recipient *uuid.UUID
	Message   string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. It stands in for a mail or
// SMS gateway.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("job_id", n.JobID.String()),
		zap.String("job_number", n.JobNumber),
		zap.String("event", n.Event),
		zap.String("status", string(n.Status)),
		zap.Stringer("priority", n.Priority),
	}
	if n.Recipient != nil {
		fields = append(fields, zap.String("recipient", n.Recipient.String()))
	}
	s.log.Info(n.Message, fields...)
	return nil
}

// customer-facing statuses
var notifyStatuses = map[entity.JobStatus]string{
	entity.StatusWaitingApproval: "Quotation for %s is waiting for your approval",
	entity.StatusWaitingParts:    "Repair %s is waiting for parts",
	entity.StatusReadyForPickup:  "Repair %s is ready for pickup",
	entity.StatusCompleted:       "Repair %s is completed",
}

type Processor struct {
	jobs     JobReader
	activity ActivityReader
	sender   Sender
	log      *zap.Logger
}

func NewProcessor(jobs JobReader, activity ActivityReader, sender Sender, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{jobs: jobs, activity: activity, sender: sender, log: log}
}

// Process sends the notification for one queued notice, built from the
// change the notice names rather than the job's current state. Notices whose
// job or activity entry is gone are skipped.
func (p *Processor) Process(ctx context.Context, item string) error {
	start := time.Now()

	notice, err := service.ParseNotice(item)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("invalid").Inc()
		return err
	}
	jobID := notice.JobID.String()

	job, err := p.jobs.GetJob(ctx, notice.JobID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		p.log.Debug("job gone before notification", zap.String("job_id", jobID))
		return nil
	}
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("load job: %w", err)
	}

	entry, err := p.activity.GetActivity(ctx, notice.JobID, notice.ActivityID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		p.log.Debug("activity gone before notification",
			zap.String("job_id", jobID),
			zap.Int64("activity_id", notice.ActivityID),
		)
		return nil
	}
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("load activity: %w", err)
	}
	if entry.Action != notice.Action {
		metrics.NotificationsSent.WithLabelValues("invalid").Inc()
		return fmt.Errorf("notice %s: activity %d is %s", item, entry.ID, entry.Action)
	}

	n, ok := notificationFor(job, notice)
	if !ok {
		metrics.NotificationsSent.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := p.sender.Send(ctx, n); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return fmt.Errorf("send %s: %w", n.Event, err)
	}

	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	p.log.Debug("notification sent",
		zap.String("job_id", jobID),
		zap.Int64("activity_id", notice.ActivityID),
		zap.String("event", n.Event),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func notificationFor(job *entity.Job, notice service.Notice) (Notification, bool) {
	n := Notification{
		JobID:     job.ID,
		JobNumber: job.JobNumber,
		Priority:  job.Priority,
	}

	switch notice.Action {
	case entity.ActionAssignTechnician:
		techID, err := uuid.Parse(notice.Subject)
		if err != nil {
			return n, false
		}
		n.Event = "technician_assigned"
		n.Status = job.Status
		n.Recipient = &techID
		n.Message = fmt.Sprintf("You have been assigned to %s (%s priority)", job.JobNumber, job.Priority)
		return n, true
	case entity.ActionChangeStatus:
		status := entity.JobStatus(notice.Subject)
		format, ok := notifyStatuses[status]
		if !ok {
			return n, false
		}
		n.Event = "status_" + string(status)
		n.Status = status
		n.Message = fmt.Sprintf(format, job.JobNumber)
		return n, true
	}
	return n, false
}
