package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repair-job-service/internal/entity"
	"repair-job-service/internal/repository/memory"
	"repair-job-service/internal/service"
	"repair-job-service/internal/worker"
)

type senderStub struct {
	sent []worker.Notification
	err  error
}

func (s *senderStub) Send(ctx context.Context, n worker.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

type queueStub struct {
	mu    sync.Mutex
	items []string
}

func (q *queueStub) Enqueue(ctx context.Context, item string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

// drain hands every queued item to the processor in order.
func (q *queueStub) drain(t *testing.T, p *worker.Processor) {
	t.Helper()
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	for _, item := range items {
		require.NoError(t, p.Process(context.Background(), item))
	}
}

type env struct {
	jobs      *service.JobService
	queue     *queueStub
	processor *worker.Processor
	sender    *senderStub
	job       *entity.Job
	admin     entity.Actor
	manager   entity.Actor
	techID    uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	customer, model := uuid.New(), uuid.New()
	store.PutCustomer(customer)
	store.PutMinerModel(model)

	admin := entity.Actor{UserID: uuid.New(), Role: entity.RoleAdmin}
	manager := entity.Actor{UserID: uuid.New(), Role: entity.RoleManager}
	techID := uuid.New()
	store.PutUser(entity.User{ID: admin.UserID, Name: "Ada", Role: entity.RoleAdmin, Active: true})
	store.PutUser(entity.User{ID: manager.UserID, Name: "Mira", Role: entity.RoleManager, Active: true})
	store.PutUser(entity.User{ID: techID, Name: "Tomas", Role: entity.RoleTechnician, Active: true})

	queue := &queueStub{}
	jobs := service.NewJobService(store, queue, service.Options{})
	job, err := jobs.CreateJob(context.Background(), manager, service.CreateJobRequest{
		CustomerID:         customer,
		MinerModelID:       model,
		ProblemDescription: "overheating",
		Priority:           entity.PriorityUrgent,
	})
	require.NoError(t, err)

	sender := &senderStub{}
	return &env{
		jobs:      jobs,
		queue:     queue,
		processor: worker.NewProcessor(jobs, service.NewAuditTrail(store), sender, nil),
		sender:    sender,
		job:       job,
		admin:     admin,
		manager:   manager,
		techID:    techID,
	}
}

func (e *env) events() []string {
	out := make([]string, 0, len(e.sender.sent))
	for _, n := range e.sender.sent {
		out = append(out, n.Event)
	}
	return out
}

func TestProcessor_SkipsFreshJob(t *testing.T) {
	e := newEnv(t)
	require.Len(t, e.queue.items, 1)
	e.queue.drain(t, e.processor)
	assert.Empty(t, e.sender.sent)
}

func TestProcessor_CustomerStatuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.queue.drain(t, e.processor)

	_, err := e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusInRepair, "")
	require.NoError(t, err)
	e.queue.drain(t, e.processor)
	assert.Empty(t, e.sender.sent)

	_, err = e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusReadyForPickup, "")
	require.NoError(t, err)
	e.queue.drain(t, e.processor)

	require.Len(t, e.sender.sent, 1)
	n := e.sender.sent[0]
	assert.Equal(t, "status_READY_FOR_PICKUP", n.Event)
	assert.Equal(t, entity.StatusReadyForPickup, n.Status)
	assert.Equal(t, e.job.JobNumber, n.JobNumber)
	assert.Equal(t, entity.PriorityUrgent, n.Priority)
	assert.Contains(t, n.Message, "ready for pickup")
}

func TestProcessor_EachTransitionNotifiedOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.queue.drain(t, e.processor)

	// both commit before the worker sees either
	_, err := e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusWaitingParts, "")
	require.NoError(t, err)
	_, err = e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusReadyForPickup, "")
	require.NoError(t, err)
	e.queue.drain(t, e.processor)

	assert.Equal(t, []string{"status_WAITING_PARTS", "status_READY_FOR_PICKUP"}, e.events())
	assert.Contains(t, e.sender.sent[0].Message, "waiting for parts")
}

func TestProcessor_LaterActivityDoesNotHidePendingStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.queue.drain(t, e.processor)

	_, err := e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusCompleted, "")
	require.NoError(t, err)
	_, err = e.jobs.AddRepairRecord(ctx, e.manager, e.job.ID, "final burn-in passed")
	require.NoError(t, err)
	priority := entity.PriorityNormal
	_, err = e.jobs.UpdateJob(ctx, e.manager, e.job.ID, service.UpdateJobRequest{Priority: &priority})
	require.NoError(t, err)
	e.queue.drain(t, e.processor)

	assert.Equal(t, []string{"status_COMPLETED"}, e.events())
}

func TestProcessor_TechnicianAssigned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.queue.drain(t, e.processor)

	_, err := e.jobs.AssignTechnician(ctx, e.manager, e.job.ID, e.techID, "")
	require.NoError(t, err)
	e.queue.drain(t, e.processor)

	require.Len(t, e.sender.sent, 1)
	n := e.sender.sent[0]
	assert.Equal(t, "technician_assigned", n.Event)
	require.NotNil(t, n.Recipient)
	assert.Equal(t, e.techID, *n.Recipient)
}

func TestProcessor_DeletedJobIsSkipped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.queue.drain(t, e.processor)

	_, err := e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusWaitingApproval, "")
	require.NoError(t, err)
	require.NoError(t, e.jobs.DeleteJob(ctx, e.admin, e.job.ID))
	e.queue.drain(t, e.processor)

	assert.Empty(t, e.sender.sent)
}

func TestProcessor_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created := e.queue.items[0]
	e.queue.drain(t, e.processor)

	assert.Error(t, e.processor.Process(ctx, "not-a-notice"))
	assert.Error(t, e.processor.Process(ctx, "not-a-uuid:1:CHANGE_STATUS:COMPLETED"))

	// the entry exists but records a different action
	notice, err := service.ParseNotice(created)
	require.NoError(t, err)
	notice.Action = entity.ActionChangeStatus
	assert.Error(t, e.processor.Process(ctx, notice.String()))

	// unknown activity on a live job is acked quietly
	notice.ActivityID = 9999
	assert.NoError(t, e.processor.Process(ctx, notice.String()))

	_, err = e.jobs.ChangeStatus(ctx, e.manager, e.job.ID, entity.StatusCompleted, "")
	require.NoError(t, err)
	require.Len(t, e.queue.items, 1)
	e.sender.err = errors.New("smtp down")
	assert.ErrorIs(t, e.processor.Process(ctx, e.queue.items[0]), e.sender.err)
}
