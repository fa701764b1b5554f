package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Part is a stock-keeping unit. StockQty is only moved by JobPart
// creation and removal.
type Part struct {
	ID          uuid.UUID       `json:"id"`
	PartNumber  string          `json:"part_number"`
	Name        string          `json:"name"`
	StockQty    int             `json:"stock_qty"`
	MinStockQty int             `json:"min_stock_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Part) BelowMinimum() bool {
	return p.StockQty < p.MinStockQty
}

// JobPart is one withdrawal of a part against a job. UnitPrice is the
// price at withdrawal time.
type JobPart struct {
	ID        uuid.UUID       `json:"id"`
	JobID     uuid.UUID       `json:"job_id"`
	PartID    uuid.UUID       `json:"part_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty"`
	CreatedBy uuid.UUID       `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

func (jp *JobPart) Total() decimal.Decimal {
	return jp.UnitPrice.Mul(decimal.NewFromInt(int64(jp.Quantity)))
}
