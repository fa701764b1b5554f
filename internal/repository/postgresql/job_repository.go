package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/service"
)

var _ service.Tx = (*pgTx)(nil)

// pgTx implements service.Tx on one open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

const jobColumns = `
id, job_number, customer_id, miner_model_id, serial_number, problem_description,
status, priority, technician_id, warranty_profile_id, received_date,
estimated_done_date, completed_date, created_by_id, created_at, updated_at`

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		statusText string
		priority   int16
	)
	if err := row.Scan(
		&job.ID,
		&job.JobNumber,
		&job.CustomerID,
		&job.MinerModelID,
		&job.SerialNumber,
		&job.ProblemDescription,
		&statusText,
		&priority,
		&job.TechnicianID, // NULL => nil
		&job.WarrantyProfileID,
		&job.ReceivedDate,
		&job.EstimatedDoneDate,
		&job.CompletedDate,
		&job.CreatedByID,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(statusText)
	job.Priority = entity.Priority(priority)
	return &job, nil
}

func (t *pgTx) InsertJob(ctx context.Context, job *entity.Job) error {
	const q = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
`
	_, err := t.tx.Exec(ctx, q,
		job.ID, job.JobNumber, job.CustomerID, job.MinerModelID, job.SerialNumber,
		job.ProblemDescription, string(job.Status), int16(job.Priority), job.TechnicianID,
		job.WarrantyProfileID, job.ReceivedDate, job.EstimatedDoneDate, job.CompletedDate,
		job.CreatedByID, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return wrap("insert job", err)
	}
	return nil
}

func (t *pgTx) getJob(ctx context.Context, id uuid.UUID, lock bool) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	job, err := scanJob(t.tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("job", id)
	}
	if err != nil {
		return nil, wrap("get job", err)
	}
	return job, nil
}

func (t *pgTx) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return t.getJob(ctx, id, false)
}

func (t *pgTx) LockJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return t.getJob(ctx, id, true)
}

// UpdateJob writes the mutable columns. job_number, created_by_id and
// created_at are never rewritten.
func (t *pgTx) UpdateJob(ctx context.Context, job *entity.Job) error {
	const q = `
UPDATE jobs SET
    serial_number = $2,
    problem_description = $3,
    status = $4,
    priority = $5,
    technician_id = $6,
    warranty_profile_id = $7,
    estimated_done_date = $8,
    completed_date = $9,
    updated_at = $10
WHERE id = $1;
`
	tag, err := t.tx.Exec(ctx, q,
		job.ID, job.SerialNumber, job.ProblemDescription, string(job.Status), int16(job.Priority),
		job.TechnicianID, job.WarrantyProfileID, job.EstimatedDoneDate, job.CompletedDate, job.UpdatedAt,
	)
	if err != nil {
		return wrap("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("job", job.ID)
	}
	return nil
}

// DeleteJob relies on ON DELETE CASCADE for job_parts, activity_logs,
// repair_records and job_images.
func (t *pgTx) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return wrap("delete job", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("job", id)
	}
	return nil
}

func (t *pgTx) CountJobDependents(ctx context.Context, id uuid.UUID) (int, int, error) {
	const q = `
SELECT
    (SELECT count(*) FROM quotations WHERE job_id = $1),
    (SELECT count(*) FROM payments WHERE job_id = $1);
`
	var quotations, payments int
	if err := t.tx.QueryRow(ctx, q, id).Scan(&quotations, &payments); err != nil {
		return 0, 0, wrap("count job dependents", err)
	}
	return quotations, payments, nil
}

func (t *pgTx) InsertRepairRecord(ctx context.Context, rec *entity.RepairRecord) error {
	const q = `
INSERT INTO repair_records (id, job_id, technician_id, description, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	if _, err := t.tx.Exec(ctx, q, rec.ID, rec.JobID, rec.TechnicianID, rec.Description, rec.CreatedAt); err != nil {
		return wrap("insert repair record", err)
	}
	return nil
}

func (t *pgTx) InsertJobImage(ctx context.Context, img *entity.JobImage) error {
	const q = `
INSERT INTO job_images (id, job_id, storage_key, caption, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	if _, err := t.tx.Exec(ctx, q, img.ID, img.JobID, img.StorageKey, img.Caption, img.UploadedBy, img.CreatedAt); err != nil {
		return wrap("insert job image", err)
	}
	return nil
}

func (t *pgTx) GetJobImage(ctx context.Context, jobID, imageID uuid.UUID) (*entity.JobImage, error) {
	const q = `
SELECT id, job_id, storage_key, caption, uploaded_by, created_at
FROM job_images
WHERE id = $1 AND job_id = $2;
`
	var img entity.JobImage
	err := t.tx.QueryRow(ctx, q, imageID, jobID).Scan(
		&img.ID, &img.JobID, &img.StorageKey, &img.Caption, &img.UploadedBy, &img.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("image", imageID)
	}
	if err != nil {
		return nil, wrap("get job image", err)
	}
	return &img, nil
}

func (t *pgTx) DeleteJobImage(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM job_images WHERE id = $1;`, id); err != nil {
		return wrap("delete job image", err)
	}
	return nil
}
