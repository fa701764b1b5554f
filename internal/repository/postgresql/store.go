package postgresql

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/service"
)

var _ service.Store = (*Store)(nil)

//go:embed migrations/*.sql
var migrations embed.FS

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent, so running it on each start is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Store runs service transactions on a pgx pool. Transactions use READ
// COMMITTED; rows that gate a decision (job, part, year counter) are read
// with row locks, so competing writers queue behind each other.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithinTx(ctx context.Context, fn service.TxFunc) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) ReadOnly(ctx context.Context, fn service.TxFunc) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn service.TxFunc) (err error) {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return wrap("begin", err)
	}
	defer func() {
		if err != nil {
			// ctx may already be cancelled; the rollback must still reach the server
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return wrap("tx", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// translate maps Postgres failures onto the service error kinds. It returns
// nil when err carries nothing it recognises.
func translate(err error) *apperr.Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.Error{Kind: apperr.KindNotFound, Message: "row not found", Err: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23505":
		if pgErr.ConstraintName == "jobs_job_number_key" {
			return apperr.RetryableConflict(apperr.ReasonJobNumberCollision, err, "job number already issued")
		}
		return &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonDuplicate, Message: "duplicate " + pgErr.ConstraintName, Err: err}
	case "40001", "40P01":
		return apperr.RetryableConflict(apperr.ReasonSerialization, err, "concurrent update, retry")
	case "23514":
		if pgErr.ConstraintName == "parts_stock_qty_check" {
			return &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonInsufficientStock, Message: "insufficient stock", Err: err}
		}
	case "23503":
		switch pgErr.ConstraintName {
		case "quotations_job_id_fkey", "payments_job_id_fkey":
			return &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonHasDependents, Message: "job has quotations or payments", Err: err}
		case "job_parts_part_id_fkey":
			return &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonPartInUse, Message: "part is referenced by job parts", Err: err}
		}
	}
	return nil
}

// wrap passes service errors through, translates driver errors it knows,
// and annotates the rest with op.
func wrap(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if e := translate(err); e != nil {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
