package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"repair-job-service/internal/entity"
	"repair-job-service/internal/repository/memory"
	"repair-job-service/internal/service"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeQueue struct {
	mu                 sync.Mutex
	enqueued           []string
	enqueuedPriorities []int
	enqueueErr         error
}

func (q *fakeQueue) Enqueue(ctx context.Context, item string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, item)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return q.enqueueErr
}

type fixture struct {
	store  *memory.Store
	queue  *fakeQueue
	clock  *fakeClock
	jobs   *service.JobService
	ledger *service.PartLedger
	audit  *service.AuditTrail

	customerID uuid.UUID
	modelID    uuid.UUID

	admin        entity.Actor
	manager      entity.Actor
	receptionist entity.Actor
	technician   entity.Actor
	techUser     entity.User
}

func newFixture(t *testing.T, mutate ...func(*service.Options)) *fixture {
	t.Helper()

	f := &fixture{
		store:      memory.NewStore(),
		queue:      &fakeQueue{},
		clock:      &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
		customerID: uuid.New(),
		modelID:    uuid.New(),
	}
	f.store.PutCustomer(f.customerID)
	f.store.PutMinerModel(f.modelID)

	f.admin = f.addUser("Ada", entity.RoleAdmin)
	f.manager = f.addUser("Mira", entity.RoleManager)
	f.receptionist = f.addUser("Rex", entity.RoleReceptionist)
	f.technician = f.addUser("Tomas", entity.RoleTechnician)
	f.techUser = entity.User{ID: f.technician.UserID, Name: "Tomas", Role: entity.RoleTechnician, Active: true}

	opts := service.Options{Clock: f.clock.Now}
	for _, m := range mutate {
		m(&opts)
	}
	f.jobs = service.NewJobService(f.store, f.queue, opts)
	f.ledger = service.NewPartLedger(f.store, opts)
	f.audit = service.NewAuditTrail(f.store)
	return f
}

func (f *fixture) addUser(name string, role entity.Role) entity.Actor {
	id := uuid.New()
	f.store.PutUser(entity.User{ID: id, Name: name, Role: role, Active: true})
	return entity.Actor{UserID: id, Role: role}
}

func (f *fixture) addPart(number string, stock, minStock int, price string) entity.Part {
	p := entity.Part{
		ID:          uuid.New(),
		PartNumber:  number,
		Name:        "Part " + number,
		StockQty:    stock,
		MinStockQty: minStock,
		UnitPrice:   decimal.RequireFromString(price),
	}
	f.store.PutPart(p)
	return p
}

func (f *fixture) createJob(t *testing.T) *entity.Job {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), f.receptionist, service.CreateJobRequest{
		CustomerID:         f.customerID,
		MinerModelID:       f.modelID,
		ProblemDescription: "hashboard 2 not detected",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func (f *fixture) activity(t *testing.T, jobID uuid.UUID) []entity.ActivityLog {
	t.Helper()
	logs, err := f.audit.ListActivity(context.Background(), jobID, 200, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	return logs
}

// hookStore runs callbacks before selected Tx methods reach the memory store.
type hookStore struct {
	inner          service.Store
	beforeInsert   func(ctx context.Context, job *entity.Job) error
	beforeActivity func(ctx context.Context, log *entity.ActivityLog) error
}

func (s *hookStore) WithinTx(ctx context.Context, fn service.TxFunc) error {
	return s.inner.WithinTx(ctx, func(ctx context.Context, tx service.Tx) error {
		return fn(ctx, &hookTx{Tx: tx, s: s})
	})
}

func (s *hookStore) ReadOnly(ctx context.Context, fn service.TxFunc) error {
	return s.inner.ReadOnly(ctx, fn)
}

type hookTx struct {
	service.Tx
	s *hookStore
}

func (t *hookTx) InsertJob(ctx context.Context, job *entity.Job) error {
	if t.s.beforeInsert != nil {
		if err := t.s.beforeInsert(ctx, job); err != nil {
			return err
		}
	}
	return t.Tx.InsertJob(ctx, job)
}

func (t *hookTx) AppendActivity(ctx context.Context, log *entity.ActivityLog) error {
	if t.s.beforeActivity != nil {
		if err := t.s.beforeActivity(ctx, log); err != nil {
			return err
		}
	}
	return t.Tx.AppendActivity(ctx, log)
}
