package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/sequence"
)

func (t *pgTx) AppendActivity(ctx context.Context, log *entity.ActivityLog) error {
	const q = `
INSERT INTO activity_logs (job_id, user_id, action, description, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;
`
	err := t.tx.QueryRow(ctx, q, log.JobID, log.UserID, string(log.Action), log.Description, log.CreatedAt).Scan(&log.ID)
	if err != nil {
		return wrap("append activity", err)
	}
	return nil
}

func (t *pgTx) GetActivity(ctx context.Context, jobID uuid.UUID, id int64) (*entity.ActivityLog, error) {
	const q = `
SELECT id, job_id, user_id, action, description, created_at
FROM activity_logs
WHERE id = $1 AND job_id = $2;
`
	var (
		a      entity.ActivityLog
		action string
	)
	err := t.tx.QueryRow(ctx, q, id, jobID).Scan(&a.ID, &a.JobID, &a.UserID, &action, &a.Description, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("activity", id)
	}
	if err != nil {
		return nil, wrap("get activity", err)
	}
	a.Action = entity.ActivityAction(action)
	return &a, nil
}

func (t *pgTx) ListActivity(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]entity.ActivityLog, error) {
	const q = `
SELECT id, job_id, user_id, action, description, created_at
FROM activity_logs
WHERE job_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := t.tx.Query(ctx, q, jobID, limit, offset)
	if err != nil {
		return nil, wrap("list activity", err)
	}
	defer rows.Close()

	out := []entity.ActivityLog{}
	for rows.Next() {
		var (
			a      entity.ActivityLog
			action string
		)
		if err := rows.Scan(&a.ID, &a.JobID, &a.UserID, &action, &a.Description, &a.CreatedAt); err != nil {
			return nil, wrap("scan activity", err)
		}
		a.Action = entity.ActivityAction(action)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list activity", err)
	}
	return out, nil
}

func (t *pgTx) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id)
}

func (t *pgTx) MinerModelExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.exists(ctx, `SELECT EXISTS (SELECT 1 FROM miner_models WHERE id = $1)`, id)
}

func (t *pgTx) exists(ctx context.Context, q string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := t.tx.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		return false, wrap("exists", err)
	}
	return ok, nil
}

func (t *pgTx) GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var (
		u    entity.User
		role string
	)
	err := t.tx.QueryRow(ctx, `SELECT id, name, role, active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &role, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	u.Role = entity.Role(role)
	return &u, nil
}

// NextJobSequence advances the year's counter row. Both the first call of a
// year and every later one take the highest number already stored in jobs
// into account, so numbers written by other paths are never reissued.
// Concurrent callers serialise on the counter row until the holder's
// transaction ends.
func (t *pgTx) NextJobSequence(ctx context.Context, year int) (int, error) {
	const q = `
WITH issued AS (
    SELECT COALESCE(MAX(substring(job_number FROM '^RJ[0-9]{4}-([0-9]+)$')::int), 0) AS highest
    FROM jobs
    WHERE job_number LIKE $2
)
INSERT INTO job_number_counters (year, last_seq)
SELECT $1, highest + 1 FROM issued
ON CONFLICT (year) DO UPDATE
SET last_seq = GREATEST(job_number_counters.last_seq + 1, EXCLUDED.last_seq)
RETURNING last_seq;
`
	var seq int
	if err := t.tx.QueryRow(ctx, q, year, sequence.Prefix(year)+"%").Scan(&seq); err != nil {
		return 0, wrap("next job sequence", err)
	}
	return seq, nil
}
