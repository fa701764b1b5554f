package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/authz"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/metrics"
	"repair-job-service/internal/sequence"
)

const notifyTimeout = 3 * time.Second

// JobService is the job state machine. Every mutation is checked against the
// authorization gate first, then applied together with its activity entry
// in a single transaction.
type JobService struct {
	store       Store
	queue       JobQueue
	gate        *authz.Gate
	seq         *sequence.Generator
	transitions TransitionTable
	now         func() time.Time
	log         *zap.Logger

	restoreStockOnDelete bool
	maxCreateAttempts    int
}

func NewJobService(store Store, queue JobQueue, opts Options) *JobService {
	opts = opts.withDefaults()
	if queue == nil {
		queue = noopQueue{}
	}
	return &JobService{
		store:                store,
		queue:                queue,
		gate:                 opts.Gate,
		seq:                  sequence.NewGenerator(opts.Clock),
		transitions:          opts.Transitions,
		now:                  opts.Clock,
		log:                  opts.Logger,
		restoreStockOnDelete: opts.RestoreStockOnDelete,
		maxCreateAttempts:    opts.MaxCreateAttempts,
	}
}

type CreateJobRequest struct {
	CustomerID         uuid.UUID
	MinerModelID       uuid.UUID
	ProblemDescription string
	Priority           entity.Priority
	SerialNumber       string
	TechnicianID       *uuid.UUID
	WarrantyProfileID  *uuid.UUID
	ReceivedDate       *time.Time
	EstimatedDoneDate  *time.Time
}

func (r *CreateJobRequest) normalize() error {
	r.ProblemDescription = strings.TrimSpace(r.ProblemDescription)
	r.SerialNumber = strings.TrimSpace(r.SerialNumber)

	if r.ProblemDescription == "" {
		return apperr.Validation("problem description is required")
	}
	if r.CustomerID == uuid.Nil {
		return apperr.Validation("customer is required")
	}
	if r.MinerModelID == uuid.Nil {
		return apperr.Validation("miner model is required")
	}
	if !r.Priority.Valid() {
		return apperr.Validation("priority must be 0 (normal), 1 (urgent) or 2 (critical)")
	}
	if r.ReceivedDate != nil && r.EstimatedDoneDate != nil && r.EstimatedDoneDate.Before(*r.ReceivedDate) {
		return apperr.Validation("estimated done date is before the received date")
	}
	return nil
}

func (s *JobService) CreateJob(ctx context.Context, actor entity.Actor, req CreateJobRequest) (*entity.Job, error) {
	if err := s.gate.Check(actor, authz.ActionCreateJob); err != nil {
		return nil, err
	}
	// pre-assigning a technician needs the same capability as AssignTechnician
	if req.TechnicianID != nil {
		if err := s.gate.Check(actor, authz.ActionAssignTechnician); err != nil {
			return nil, err
		}
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var (
		job    *entity.Job
		notice Notice
		err    error
	)
	for attempt := 1; ; attempt++ {
		job, notice, err = s.createOnce(ctx, actor, req)
		if err == nil || !apperr.IsRetryable(err) || attempt >= s.maxCreateAttempts || ctx.Err() != nil {
			break
		}
		metrics.TxRetries.Inc()
		s.log.Debug("retrying job creation", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		countConflict(err)
		return nil, err
	}

	metrics.JobsCreated.Inc()
	s.log.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.String("job_number", job.JobNumber),
		zap.Stringer("priority", job.Priority),
	)
	s.notify(ctx, job, notice)
	return job, nil
}

func (s *JobService) createOnce(ctx context.Context, actor entity.Actor, req CreateJobRequest) (*entity.Job, Notice, error) {
	now := s.now()
	job := &entity.Job{
		ID:                 uuid.New(),
		CustomerID:         req.CustomerID,
		MinerModelID:       req.MinerModelID,
		SerialNumber:       req.SerialNumber,
		ProblemDescription: req.ProblemDescription,
		Status:             entity.StatusReceived,
		Priority:           req.Priority,
		TechnicianID:       req.TechnicianID,
		WarrantyProfileID:  req.WarrantyProfileID,
		ReceivedDate:       now,
		EstimatedDoneDate:  req.EstimatedDoneDate,
		CreatedByID:        actor.UserID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.ReceivedDate != nil {
		job.ReceivedDate = *req.ReceivedDate
	}

	var notice Notice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		ok, err := tx.CustomerExists(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("customer %s does not exist", req.CustomerID)
		}
		if ok, err = tx.MinerModelExists(ctx, req.MinerModelID); err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("miner model %s does not exist", req.MinerModelID)
		}
		if req.TechnicianID != nil {
			if _, err := lookupTechnician(ctx, tx, *req.TechnicianID); err != nil {
				return err
			}
		}

		number, err := s.seq.Next(ctx, tx)
		if err != nil {
			return fmt.Errorf("next job number: %w", err)
		}
		job.JobNumber = number

		if err := tx.InsertJob(ctx, job); err != nil {
			return err
		}
		desc := fmt.Sprintf("Job %s received (priority %s)", number, job.Priority)
		entry, err := recordEntry(ctx, tx, now, job.ID, actor, entity.ActionCreateJob, desc)
		if err != nil {
			return err
		}
		notice = Notice{JobID: job.ID, ActivityID: entry.ID, Action: entry.Action, Subject: string(job.Status)}
		return nil
	})
	if err != nil {
		return nil, Notice{}, err
	}
	return job, notice, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.GetJob(ctx, id)
		job = j
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) ChangeStatus(ctx context.Context, actor entity.Actor, jobID uuid.UUID, status entity.JobStatus, note string) (*entity.Job, error) {
	if err := s.gate.Check(actor, authz.ActionChangeStatus); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}

	var (
		job    *entity.Job
		from   entity.JobStatus
		notice Notice
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		from = j.Status
		if err := s.transitions.check(from, status); err != nil {
			return err
		}

		now := s.now()
		j.Status = status
		if status == entity.StatusCompleted && j.CompletedDate == nil {
			j.CompletedDate = &now
		}
		j.UpdatedAt = now
		if err := j.CheckInvariants(); err != nil {
			return err
		}
		if err := tx.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		desc := withNote(fmt.Sprintf("Status changed %s → %s", from, status), note)
		entry, err := recordEntry(ctx, tx, now, j.ID, actor, entity.ActionChangeStatus, desc)
		if err != nil {
			return err
		}
		notice = Notice{JobID: j.ID, ActivityID: entry.ID, Action: entry.Action, Subject: string(status)}
		return nil
	})
	if err != nil {
		countConflict(err)
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(from), string(status)).Inc()
	s.log.Info("job status changed",
		zap.String("job_id", job.ID.String()),
		zap.String("job_number", job.JobNumber),
		zap.String("from", string(from)),
		zap.String("status", string(status)),
	)
	s.notify(ctx, job, notice)
	return job, nil
}

func (s *JobService) AssignTechnician(ctx context.Context, actor entity.Actor, jobID, technicianID uuid.UUID, note string) (*entity.Job, error) {
	if err := s.gate.Check(actor, authz.ActionAssignTechnician); err != nil {
		return nil, err
	}

	var (
		job    *entity.Job
		notice Notice
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		tech, err := lookupTechnician(ctx, tx, technicianID)
		if err != nil {
			return err
		}

		desc := fmt.Sprintf("Technician %s assigned", tech.Name)
		if j.TechnicianID != nil {
			prev := j.TechnicianID.String()
			if u, err := tx.GetUser(ctx, *j.TechnicianID); err == nil {
				prev = u.Name
			} else if apperr.KindOf(err) != apperr.KindNotFound {
				return err
			}
			desc = fmt.Sprintf("Technician changed from %s to %s", prev, tech.Name)
		}

		now := s.now()
		j.TechnicianID = &tech.ID
		j.UpdatedAt = now
		if err := tx.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		entry, err := recordEntry(ctx, tx, now, j.ID, actor, entity.ActionAssignTechnician, withNote(desc, note))
		if err != nil {
			return err
		}
		notice = Notice{JobID: j.ID, ActivityID: entry.ID, Action: entry.Action, Subject: tech.ID.String()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("technician assigned",
		zap.String("job_id", job.ID.String()),
		zap.String("job_number", job.JobNumber),
		zap.String("technician_id", technicianID.String()),
	)
	s.notify(ctx, job, notice)
	return job, nil
}

type UpdateJobRequest struct {
	Priority           *entity.Priority
	EstimatedDoneDate  *time.Time
	ProblemDescription *string
}

func (s *JobService) UpdateJob(ctx context.Context, actor entity.Actor, jobID uuid.UUID, req UpdateJobRequest) (*entity.Job, error) {
	if err := s.gate.Check(actor, authz.ActionUpdateJob); err != nil {
		return nil, err
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, apperr.Validation("priority must be 0 (normal), 1 (urgent) or 2 (critical)")
	}
	if req.ProblemDescription != nil {
		trimmed := strings.TrimSpace(*req.ProblemDescription)
		if trimmed == "" {
			return nil, apperr.Validation("problem description must not be empty")
		}
		req.ProblemDescription = &trimmed
	}

	var job *entity.Job
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}

		var changes []string
		if req.Priority != nil && *req.Priority != j.Priority {
			changes = append(changes, fmt.Sprintf("priority %s → %s", j.Priority, *req.Priority))
			j.Priority = *req.Priority
		}
		if req.EstimatedDoneDate != nil && !sameTime(j.EstimatedDoneDate, req.EstimatedDoneDate) {
			if req.EstimatedDoneDate.Before(j.ReceivedDate) {
				return apperr.Validation("estimated done date is before the received date")
			}
			changes = append(changes, "estimated done date "+req.EstimatedDoneDate.Format(time.DateOnly))
			j.EstimatedDoneDate = req.EstimatedDoneDate
		}
		if req.ProblemDescription != nil && *req.ProblemDescription != j.ProblemDescription {
			changes = append(changes, "problem description")
			j.ProblemDescription = *req.ProblemDescription
		}
		if len(changes) == 0 {
			return apperr.Validation("nothing to update")
		}

		now := s.now()
		j.UpdatedAt = now
		if err := tx.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		return record(ctx, tx, now, j.ID, actor, entity.ActionUpdateJob, "Updated "+strings.Join(changes, ", "))
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job with its parts, activity, repair records and
// images. Jobs with quotations or payments are kept.
func (s *JobService) DeleteJob(ctx context.Context, actor entity.Actor, jobID uuid.UUID) error {
	if err := s.gate.Check(actor, authz.ActionDeleteJob); err != nil {
		return err
	}

	var (
		number   string
		restored int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return err
		}
		number = j.JobNumber

		quotations, payments, err := tx.CountJobDependents(ctx, jobID)
		if err != nil {
			return err
		}
		if quotations+payments > 0 {
			return apperr.Conflict(apperr.ReasonHasDependents,
				"job %s has %d quotation(s) and %d payment(s)", j.JobNumber, quotations, payments)
		}

		if s.restoreStockOnDelete {
			parts, err := tx.ListJobParts(ctx, jobID)
			if err != nil {
				return err
			}
			for _, jp := range parts {
				if _, err := tx.LockPart(ctx, jp.PartID); err != nil {
					return err
				}
				if _, err := tx.AdjustPartStock(ctx, jp.PartID, jp.Quantity); err != nil {
					return err
				}
				restored += jp.Quantity
			}
		}
		return tx.DeleteJob(ctx, jobID)
	})
	if err != nil {
		countConflict(err)
		return err
	}

	if restored > 0 {
		metrics.PartMovements.WithLabelValues("restore").Add(float64(restored))
	}
	s.log.Info("job deleted",
		zap.String("job_id", jobID.String()),
		zap.String("job_number", number),
		zap.String("actor_id", actor.UserID.String()),
		zap.Int("restored_qty", restored),
	)
	return nil
}

func (s *JobService) AddRepairRecord(ctx context.Context, actor entity.Actor, jobID uuid.UUID, description string) (*entity.RepairRecord, error) {
	if err := s.gate.Check(actor, authz.ActionAddRepairRecord); err != nil {
		return nil, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.Validation("repair description is required")
	}

	var rec *entity.RepairRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockJob(ctx, jobID); err != nil {
			return err
		}
		now := s.now()
		r := &entity.RepairRecord{
			ID:           uuid.New(),
			JobID:        jobID,
			TechnicianID: actor.UserID,
			Description:  description,
			CreatedAt:    now,
		}
		if err := tx.InsertRepairRecord(ctx, r); err != nil {
			return err
		}
		rec = r
		return record(ctx, tx, now, jobID, actor, entity.ActionAddRepairRecord, "Repair record added: "+truncate(description, 120))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AttachImage records an image already placed in file storage under
// storageKey.
func (s *JobService) AttachImage(ctx context.Context, actor entity.Actor, jobID uuid.UUID, storageKey, caption string) (*entity.JobImage, error) {
	if err := s.gate.Check(actor, authz.ActionUploadImage); err != nil {
		return nil, err
	}
	storageKey = strings.TrimSpace(storageKey)
	if storageKey == "" {
		return nil, apperr.Validation("storage key is required")
	}

	var img *entity.JobImage
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockJob(ctx, jobID); err != nil {
			return err
		}
		now := s.now()
		i := &entity.JobImage{
			ID:         uuid.New(),
			JobID:      jobID,
			StorageKey: storageKey,
			Caption:    strings.TrimSpace(caption),
			UploadedBy: actor.UserID,
			CreatedAt:  now,
		}
		if err := tx.InsertJobImage(ctx, i); err != nil {
			return err
		}
		img = i
		return record(ctx, tx, now, jobID, actor, entity.ActionUploadImage, withNote("Image uploaded "+storageKey, i.Caption))
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *JobService) DeleteImage(ctx context.Context, actor entity.Actor, jobID, imageID uuid.UUID) error {
	if err := s.gate.Check(actor, authz.ActionDeleteImage); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockJob(ctx, jobID); err != nil {
			return err
		}
		img, err := tx.GetJobImage(ctx, jobID, imageID)
		if err != nil {
			return err
		}
		if err := tx.DeleteJobImage(ctx, img.ID); err != nil {
			return err
		}
		return record(ctx, tx, s.now(), jobID, actor, entity.ActionDeleteImage, "Image deleted "+img.StorageKey)
	})
}

// notify queues the committed change on the job's priority lane. Failures
// are logged only; the change is already durable.
func (s *JobService) notify(ctx context.Context, job *entity.Job, n Notice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, n.String(), int(job.Priority)); err != nil {
		s.log.Warn("enqueue job notification",
			zap.String("job_id", job.ID.String()),
			zap.Int64("activity_id", n.ActivityID),
			zap.Error(err),
		)
	}
}

func lookupTechnician(ctx context.Context, tx Tx, id uuid.UUID) (*entity.User, error) {
	u, err := tx.GetUser(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("technician", id)
		}
		return nil, err
	}
	if u.Role != entity.RoleTechnician {
		return nil, apperr.Validation("user %s is a %s, not a technician", u.Name, u.Role)
	}
	if !u.Active {
		return nil, apperr.Validation("technician %s is inactive", u.Name)
	}
	return u, nil
}

func countConflict(err error) {
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindConflict && e.Reason != "" {
		metrics.Conflicts.WithLabelValues(e.Reason).Inc()
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
