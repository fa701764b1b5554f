// Package memory provides an in-memory implementation of the transactional
// repair-job store, used by tests and by local runs without Postgres.
//
// Transactions are serialised by a single mutex and run against a clone of
// the state; the clone replaces the live state only when the transaction
// function succeeds and its context is still live.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"

	"repair-job-service/internal/entity"
	"repair-job-service/internal/service"
)

var _ service.Store = (*Store)(nil)

var errReadOnly = errors.New("memory: write in read-only transaction")

type state struct {
	customers  map[uuid.UUID]struct{}
	models     map[uuid.UUID]struct{}
	users      map[uuid.UUID]entity.User
	jobs       map[uuid.UUID]entity.Job
	jobNumbers map[string]uuid.UUID
	counters   map[int]int
	parts      map[uuid.UUID]entity.Part
	jobParts   map[uuid.UUID]entity.JobPart
	records    map[uuid.UUID]entity.RepairRecord
	images     map[uuid.UUID]entity.JobImage
	quotations map[uuid.UUID]uuid.UUID
	payments   map[uuid.UUID]uuid.UUID

	activity       []entity.ActivityLog
	nextActivityID int64
}

func newState() state {
	return state{
		customers:  map[uuid.UUID]struct{}{},
		models:     map[uuid.UUID]struct{}{},
		users:      map[uuid.UUID]entity.User{},
		jobs:       map[uuid.UUID]entity.Job{},
		jobNumbers: map[string]uuid.UUID{},
		counters:   map[int]int{},
		parts:      map[uuid.UUID]entity.Part{},
		jobParts:   map[uuid.UUID]entity.JobPart{},
		records:    map[uuid.UUID]entity.RepairRecord{},
		images:     map[uuid.UUID]entity.JobImage{},
		quotations: map[uuid.UUID]uuid.UUID{},
		payments:   map[uuid.UUID]uuid.UUID{},
	}
}

// clone copies every table. Entity values are copied by value; their
// pointer fields are never mutated in place, only reassigned.
func (s state) clone() state {
	return state{
		customers:      maps.Clone(s.customers),
		models:         maps.Clone(s.models),
		users:          maps.Clone(s.users),
		jobs:           maps.Clone(s.jobs),
		jobNumbers:     maps.Clone(s.jobNumbers),
		counters:       maps.Clone(s.counters),
		parts:          maps.Clone(s.parts),
		jobParts:       maps.Clone(s.jobParts),
		records:        maps.Clone(s.records),
		images:         maps.Clone(s.images),
		quotations:     maps.Clone(s.quotations),
		payments:       maps.Clone(s.payments),
		activity:       append([]entity.ActivityLog(nil), s.activity...),
		nextActivityID: s.nextActivityID,
	}
}

type Store struct {
	mu sync.RWMutex
	st state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn service.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) ReadOnly(ctx context.Context, fn service.TxFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &tx{st: &s.st, readOnly: true})
}

// Seeding for records owned by other parts of the system.

func (s *Store) PutCustomer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.customers[id] = struct{}{}
}

func (s *Store) PutMinerModel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.models[id] = struct{}{}
}

func (s *Store) PutUser(u entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutPart(p entity.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.parts[p.ID] = p
}

// PutJob stores a job as-is, bypassing numbering. Used to load legacy rows.
func (s *Store) PutJob(j entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.jobs[j.ID] = j
	s.st.jobNumbers[j.JobNumber] = j.ID
}

func (s *Store) PutQuotation(jobID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.st.quotations[id] = jobID
	return id
}

func (s *Store) PutPayment(jobID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.st.payments[id] = jobID
	return id
}

// Part returns the committed state of a part.
func (s *Store) Part(id uuid.UUID) (entity.Part, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.parts[id]
	return p, ok
}

// Counts reports committed row counts, for assertions on cascades.
type Counts struct {
	Jobs, JobParts, Activity, RepairRecords, Images int
}

func (s *Store) Counts(jobID uuid.UUID) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	if _, ok := s.st.jobs[jobID]; ok {
		c.Jobs = 1
	}
	for _, jp := range s.st.jobParts {
		if jp.JobID == jobID {
			c.JobParts++
		}
	}
	for _, a := range s.st.activity {
		if a.JobID == jobID {
			c.Activity++
		}
	}
	for _, r := range s.st.records {
		if r.JobID == jobID {
			c.RepairRecords++
		}
	}
	for _, i := range s.st.images {
		if i.JobID == jobID {
			c.Images++
		}
	}
	return c
}
