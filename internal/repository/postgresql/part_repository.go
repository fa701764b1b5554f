package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
)

// LockPart reads the part with FOR UPDATE. Concurrent withdrawals of the
// same part wait here until the holder commits, then see its stock.
func (t *pgTx) LockPart(ctx context.Context, id uuid.UUID) (*entity.Part, error) {
	const q = `
SELECT id, part_number, name, stock_qty, min_stock_qty, unit_price::text, updated_at
FROM parts
WHERE id = $1
FOR UPDATE;
`
	var (
		p     entity.Part
		price string
	)
	err := t.tx.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.PartNumber, &p.Name, &p.StockQty, &p.MinStockQty, &price, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("part", id)
	}
	if err != nil {
		return nil, wrap("lock part", err)
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("part %s price %q: %w", id, price, err)
	}
	return &p, nil
}

// AdjustPartStock applies delta only when the result stays non-negative; the
// parts_stock_qty_check constraint backs the same rule.
func (t *pgTx) AdjustPartStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	const q = `
UPDATE parts
SET stock_qty = stock_qty + $2, updated_at = now()
WHERE id = $1 AND stock_qty + $2 >= 0
RETURNING stock_qty;
`
	var qty int
	err := t.tx.QueryRow(ctx, q, id, delta).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		var current int
		if err := t.tx.QueryRow(ctx, `SELECT stock_qty FROM parts WHERE id = $1`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, apperr.NotFound("part", id)
			}
			return 0, wrap("read part stock", err)
		}
		return 0, apperr.Conflict(apperr.ReasonInsufficientStock, "only %d in stock", current)
	}
	if err != nil {
		return 0, wrap("adjust part stock", err)
	}
	return qty, nil
}

func (t *pgTx) InsertJobPart(ctx context.Context, jp *entity.JobPart) error {
	const q = `
INSERT INTO job_parts (id, job_id, part_id, quantity, unit_price, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8);
`
	_, err := t.tx.Exec(ctx, q,
		jp.ID, jp.JobID, jp.PartID, jp.Quantity, jp.UnitPrice.String(), jp.Notes, jp.CreatedBy, jp.CreatedAt,
	)
	if err != nil {
		return wrap("insert job part", err)
	}
	return nil
}

const jobPartColumns = `id, job_id, part_id, quantity, unit_price::text, notes, created_by, created_at`

func scanJobPart(row pgx.Row) (*entity.JobPart, error) {
	var (
		jp    entity.JobPart
		price string
	)
	if err := row.Scan(&jp.ID, &jp.JobID, &jp.PartID, &jp.Quantity, &price, &jp.Notes, &jp.CreatedBy, &jp.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("job part %s price %q: %w", jp.ID, price, err)
	}
	jp.UnitPrice = d
	return &jp, nil
}

func (t *pgTx) GetJobPart(ctx context.Context, jobID, jobPartID uuid.UUID) (*entity.JobPart, error) {
	q := `SELECT ` + jobPartColumns + ` FROM job_parts WHERE id = $1 AND job_id = $2`
	jp, err := scanJobPart(t.tx.QueryRow(ctx, q, jobPartID, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("job part", jobPartID)
	}
	if err != nil {
		return nil, wrap("get job part", err)
	}
	return jp, nil
}

func (t *pgTx) DeleteJobPart(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM job_parts WHERE id = $1;`, id)
	if err != nil {
		return wrap("delete job part", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("job part", id)
	}
	return nil
}

func (t *pgTx) ListJobParts(ctx context.Context, jobID uuid.UUID) ([]entity.JobPart, error) {
	q := `SELECT ` + jobPartColumns + ` FROM job_parts WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := t.tx.Query(ctx, q, jobID)
	if err != nil {
		return nil, wrap("list job parts", err)
	}
	defer rows.Close()

	out := []entity.JobPart{}
	for rows.Next() {
		jp, err := scanJobPart(rows)
		if err != nil {
			return nil, wrap("scan job part", err)
		}
		out = append(out, *jp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list job parts", err)
	}
	return out, nil
}
