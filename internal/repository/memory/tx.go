package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/sequence"
	"repair-job-service/internal/service"
)

var _ service.Tx = (*tx)(nil)

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// jobs

func (t *tx) InsertJob(ctx context.Context, job *entity.Job) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.jobNumbers[job.JobNumber]; ok {
		return apperr.RetryableConflict(apperr.ReasonJobNumberCollision, nil, "job number %s already issued", job.JobNumber)
	}
	if _, ok := t.st.jobs[job.ID]; ok {
		return fmt.Errorf("memory: duplicate job id %s", job.ID)
	}
	t.st.jobs[job.ID] = *job
	t.st.jobNumbers[job.JobNumber] = job.ID
	return nil
}

func (t *tx) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	j, ok := t.st.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job", id)
	}
	return &j, nil
}

// LockJob is GetJob: transactions already run one at a time.
func (t *tx) LockJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return t.GetJob(ctx, id)
}

func (t *tx) UpdateJob(ctx context.Context, job *entity.Job) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.st.jobs[job.ID]
	if !ok {
		return apperr.NotFound("job", job.ID)
	}
	// number, creator and intake fields are immutable
	job.JobNumber = cur.JobNumber
	job.CreatedByID = cur.CreatedByID
	job.CreatedAt = cur.CreatedAt
	t.st.jobs[job.ID] = *job
	return nil
}

func (t *tx) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if err := t.writable(); err != nil {
		return err
	}
	j, ok := t.st.jobs[id]
	if !ok {
		return apperr.NotFound("job", id)
	}
	delete(t.st.jobs, id)
	delete(t.st.jobNumbers, j.JobNumber)

	for k, jp := range t.st.jobParts {
		if jp.JobID == id {
			delete(t.st.jobParts, k)
		}
	}
	for k, r := range t.st.records {
		if r.JobID == id {
			delete(t.st.records, k)
		}
	}
	for k, img := range t.st.images {
		if img.JobID == id {
			delete(t.st.images, k)
		}
	}
	t.st.activity = slices.DeleteFunc(t.st.activity, func(a entity.ActivityLog) bool {
		return a.JobID == id
	})
	return nil
}

func (t *tx) CountJobDependents(ctx context.Context, id uuid.UUID) (int, int, error) {
	var quotations, payments int
	for _, jobID := range t.st.quotations {
		if jobID == id {
			quotations++
		}
	}
	for _, jobID := range t.st.payments {
		if jobID == id {
			payments++
		}
	}
	return quotations, payments, nil
}

func (t *tx) InsertRepairRecord(ctx context.Context, rec *entity.RepairRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.records[rec.ID] = *rec
	return nil
}

func (t *tx) InsertJobImage(ctx context.Context, img *entity.JobImage) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.images[img.ID] = *img
	return nil
}

func (t *tx) GetJobImage(ctx context.Context, jobID, imageID uuid.UUID) (*entity.JobImage, error) {
	img, ok := t.st.images[imageID]
	if !ok || img.JobID != jobID {
		return nil, apperr.NotFound("image", imageID)
	}
	return &img, nil
}

func (t *tx) DeleteJobImage(ctx context.Context, id uuid.UUID) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.st.images, id)
	return nil
}

// parts

func (t *tx) LockPart(ctx context.Context, id uuid.UUID) (*entity.Part, error) {
	p, ok := t.st.parts[id]
	if !ok {
		return nil, apperr.NotFound("part", id)
	}
	return &p, nil
}

func (t *tx) AdjustPartStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	p, ok := t.st.parts[id]
	if !ok {
		return 0, apperr.NotFound("part", id)
	}
	if p.StockQty+delta < 0 {
		return 0, apperr.Conflict(apperr.ReasonInsufficientStock, "only %d of %s in stock", p.StockQty, p.PartNumber)
	}
	p.StockQty += delta
	t.st.parts[id] = p
	return p.StockQty, nil
}

func (t *tx) InsertJobPart(ctx context.Context, jp *entity.JobPart) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.jobs[jp.JobID]; !ok {
		return apperr.NotFound("job", jp.JobID)
	}
	if _, ok := t.st.parts[jp.PartID]; !ok {
		return apperr.NotFound("part", jp.PartID)
	}
	t.st.jobParts[jp.ID] = *jp
	return nil
}

func (t *tx) GetJobPart(ctx context.Context, jobID, jobPartID uuid.UUID) (*entity.JobPart, error) {
	jp, ok := t.st.jobParts[jobPartID]
	if !ok || jp.JobID != jobID {
		return nil, apperr.NotFound("job part", jobPartID)
	}
	return &jp, nil
}

func (t *tx) DeleteJobPart(ctx context.Context, id uuid.UUID) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.st.jobParts, id)
	return nil
}

func (t *tx) ListJobParts(ctx context.Context, jobID uuid.UUID) ([]entity.JobPart, error) {
	var out []entity.JobPart
	for _, jp := range t.st.jobParts {
		if jp.JobID == jobID {
			out = append(out, jp)
		}
	}
	slices.SortFunc(out, func(a, b entity.JobPart) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// activity

func (t *tx) AppendActivity(ctx context.Context, log *entity.ActivityLog) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.jobs[log.JobID]; !ok {
		return apperr.NotFound("job", log.JobID)
	}
	t.st.nextActivityID++
	log.ID = t.st.nextActivityID
	t.st.activity = append(t.st.activity, *log)
	return nil
}

func (t *tx) GetActivity(ctx context.Context, jobID uuid.UUID, id int64) (*entity.ActivityLog, error) {
	for _, a := range t.st.activity {
		if a.ID == id && a.JobID == jobID {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("activity", id)
}

func (t *tx) ListActivity(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]entity.ActivityLog, error) {
	var all []entity.ActivityLog
	for _, a := range t.st.activity {
		if a.JobID == jobID {
			all = append(all, a)
		}
	}
	slices.SortFunc(all, func(a, b entity.ActivityLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if offset >= len(all) {
		return []entity.ActivityLog{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// directory

func (t *tx) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := t.st.customers[id]
	return ok, nil
}

func (t *tx) MinerModelExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := t.st.models[id]
	return ok, nil
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

// sequence

// NextJobSequence advances the year's counter past both its last value and
// the highest number already stored for the year.
func (t *tx) NextJobSequence(ctx context.Context, year int) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	numbers := make([]string, 0, len(t.st.jobNumbers))
	for n := range t.st.jobNumbers {
		numbers = append(numbers, n)
	}
	cur := max(t.st.counters[year], sequence.MaxForYear(numbers, year)) + 1
	t.st.counters[year] = cur
	return cur, nil
}
