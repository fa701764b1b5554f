package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/authz"
	"repair-job-service/internal/entity"
	"repair-job-service/internal/metrics"
)

// PartLedger moves stock between parts and jobs. The stock check, the stock
// write, the JobPart row and the activity entry share one transaction, and
// the part row stays locked from the check to commit.
//
// Locks are always taken job first, then part.
type PartLedger struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
	log   *zap.Logger
}

func NewPartLedger(store Store, opts Options) *PartLedger {
	opts = opts.withDefaults()
	return &PartLedger{
		store: store,
		gate:  opts.Gate,
		now:   opts.Clock,
		log:   opts.Logger,
	}
}

type WithdrawRequest struct {
	JobID    uuid.UUID
	PartID   uuid.UUID
	Quantity int
	// UnitPrice overrides the part's current price for this withdrawal.
	UnitPrice *decimal.Decimal
	Notes     string
}

func (r *WithdrawRequest) normalize() error {
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return apperr.Validation("unit price must not be negative")
	}
	return nil
}

func (l *PartLedger) Withdraw(ctx context.Context, actor entity.Actor, req WithdrawRequest) (*entity.JobPart, error) {
	if err := l.gate.Check(actor, authz.ActionWithdrawPart); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var (
		jobPart *entity.JobPart
		part    *entity.Part
	)
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		job, err := tx.LockJob(ctx, req.JobID)
		if err != nil {
			return err
		}
		p, err := tx.LockPart(ctx, req.PartID)
		if err != nil {
			return err
		}
		if p.StockQty < req.Quantity {
			return apperr.Conflict(apperr.ReasonInsufficientStock,
				"only %d of %s in stock, %d requested", p.StockQty, p.PartNumber, req.Quantity)
		}

		remaining, err := tx.AdjustPartStock(ctx, p.ID, -req.Quantity)
		if err != nil {
			return err
		}
		p.StockQty = remaining

		price := p.UnitPrice
		if req.UnitPrice != nil {
			price = *req.UnitPrice
		}
		now := l.now()
		jp := &entity.JobPart{
			ID:        uuid.New(),
			JobID:     job.ID,
			PartID:    p.ID,
			Quantity:  req.Quantity,
			UnitPrice: price,
			Notes:     req.Notes,
			CreatedBy: actor.UserID,
			CreatedAt: now,
		}
		if err := tx.InsertJobPart(ctx, jp); err != nil {
			return err
		}

		desc := withNote(fmt.Sprintf("Withdrew %d × %s (%s) @ %s", jp.Quantity, p.PartNumber, p.Name, price.StringFixed(2)), req.Notes)
		if err := record(ctx, tx, now, job.ID, actor, entity.ActionAddPart, desc); err != nil {
			return err
		}
		jobPart, part = jp, p
		return nil
	})
	if err != nil {
		countConflict(err)
		return nil, err
	}

	metrics.PartMovements.WithLabelValues("withdraw").Add(float64(jobPart.Quantity))
	fields := []zap.Field{
		zap.String("job_id", jobPart.JobID.String()),
		zap.String("part_number", part.PartNumber),
		zap.Int("qty", jobPart.Quantity),
		zap.Int("stock_qty", part.StockQty),
	}
	if part.BelowMinimum() {
		metrics.LowStock.Inc()
		l.log.Warn("part below minimum stock", append(fields, zap.Int("min_stock_qty", part.MinStockQty))...)
	} else {
		l.log.Info("part withdrawn", fields...)
	}
	return jobPart, nil
}

// Return reverses a withdrawal: the quantity goes back to stock and the
// JobPart row is removed.
func (l *PartLedger) Return(ctx context.Context, actor entity.Actor, jobID, jobPartID uuid.UUID) error {
	if err := l.gate.Check(actor, authz.ActionReturnPart); err != nil {
		return err
	}

	var (
		qty       int
		partNo    string
		stockLeft int
	)
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockJob(ctx, jobID); err != nil {
			return err
		}
		jp, err := tx.GetJobPart(ctx, jobID, jobPartID)
		if err != nil {
			return err
		}
		p, err := tx.LockPart(ctx, jp.PartID)
		if err != nil {
			return err
		}
		if stockLeft, err = tx.AdjustPartStock(ctx, p.ID, jp.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteJobPart(ctx, jp.ID); err != nil {
			return err
		}
		qty, partNo = jp.Quantity, p.PartNumber

		desc := fmt.Sprintf("Returned %d × %s (%s) to stock", jp.Quantity, p.PartNumber, p.Name)
		return record(ctx, tx, l.now(), jobID, actor, entity.ActionRemovePart, desc)
	})
	if err != nil {
		countConflict(err)
		return err
	}

	metrics.PartMovements.WithLabelValues("return").Add(float64(qty))
	l.log.Info("part returned",
		zap.String("job_id", jobID.String()),
		zap.String("part_number", partNo),
		zap.Int("qty", qty),
		zap.Int("stock_qty", stockLeft),
	)
	return nil
}

func (l *PartLedger) ListJobParts(ctx context.Context, jobID uuid.UUID) ([]entity.JobPart, error) {
	var out []entity.JobPart
	err := l.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetJob(ctx, jobID); err != nil {
			return err
		}
		parts, err := tx.ListJobParts(ctx, jobID)
		out = parts
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
