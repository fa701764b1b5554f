package service

import (
	"context"

	"github.com/google/uuid"

	"repair-job-service/internal/entity"
	"repair-job-service/internal/sequence"
)

// Repository ports. Implementations: postgresql.Store, memory.Store.
// Lookups report missing rows as apperr not_found errors.

type JobRepository interface {
	InsertJob(ctx context.Context, job *entity.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// LockJob reads the job and holds it against concurrent writers until
	// the transaction ends.
	LockJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateJob(ctx context.Context, job *entity.Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	CountJobDependents(ctx context.Context, id uuid.UUID) (quotations, payments int, err error)

	InsertRepairRecord(ctx context.Context, rec *entity.RepairRecord) error
	InsertJobImage(ctx context.Context, img *entity.JobImage) error
	GetJobImage(ctx context.Context, jobID, imageID uuid.UUID) (*entity.JobImage, error)
	DeleteJobImage(ctx context.Context, id uuid.UUID) error
}

type PartRepository interface {
	LockPart(ctx context.Context, id uuid.UUID) (*entity.Part, error)
	// AdjustPartStock adds delta to the stock and returns the new quantity.
	// It fails with an insufficient_stock conflict rather than go below zero.
	AdjustPartStock(ctx context.Context, id uuid.UUID, delta int) (int, error)

	InsertJobPart(ctx context.Context, jp *entity.JobPart) error
	GetJobPart(ctx context.Context, jobID, jobPartID uuid.UUID) (*entity.JobPart, error)
	DeleteJobPart(ctx context.Context, id uuid.UUID) error
	ListJobParts(ctx context.Context, jobID uuid.UUID) ([]entity.JobPart, error)
}

type ActivityRepository interface {
	// AppendActivity inserts the row and sets its ID.
	AppendActivity(ctx context.Context, log *entity.ActivityLog) error
	// GetActivity returns one entry of the job's log.
	GetActivity(ctx context.Context, jobID uuid.UUID, id int64) (*entity.ActivityLog, error)
	// ListActivity returns the job's entries newest first.
	ListActivity(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]entity.ActivityLog, error)
}

// DirectoryRepository reads the customer, model and user records owned by
// other parts of the shop system.
type DirectoryRepository interface {
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	MinerModelExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

// Tx is one unit of work. Every write made through it commits or rolls
// back together.
type Tx interface {
	JobRepository
	PartRepository
	ActivityRepository
	DirectoryRepository
	sequence.Counter
}

type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	// WithinTx runs fn in a read-write transaction, committing when fn
	// returns nil and rolling back otherwise (including on ctx cancel).
	WithinTx(ctx context.Context, fn TxFunc) error
	ReadOnly(ctx context.Context, fn TxFunc) error
}

// JobQueue receives encoded Notices after a change commits.
type JobQueue interface {
	Enqueue(ctx context.Context, item string, priority int) error
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string, int) error { return nil }
