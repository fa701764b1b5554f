package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repair-job-service/internal/entity"
	"repair-job-service/internal/repository/memory"
	"repair-job-service/internal/service"
	httptransport "repair-job-service/internal/transport/http"
)

var secret = []byte("test-secret")

// ---- fakes ----

type queueStub struct {
	mu                 sync.Mutex
	enqueued           []string
	enqueuedPriorities []int
}

func (q *queueStub) Enqueue(ctx context.Context, item string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, item)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return nil
}

// ---- helpers ----

type testEnv struct {
	router     http.Handler
	handler    *httptransport.Handler
	store      *memory.Store
	queue      *queueStub
	customerID uuid.UUID
	modelID    uuid.UUID
	users      map[entity.Role]uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:      memory.NewStore(),
		queue:      &queueStub{},
		customerID: uuid.New(),
		modelID:    uuid.New(),
		users:      map[entity.Role]uuid.UUID{},
	}
	env.store.PutCustomer(env.customerID)
	env.store.PutMinerModel(env.modelID)
	for _, role := range entity.AllRoles {
		id := uuid.New()
		env.store.PutUser(entity.User{ID: id, Name: string(role), Role: role, Active: true})
		env.users[role] = id
	}

	opts := service.Options{}
	jobs := service.NewJobService(env.store, env.queue, opts)
	ledger := service.NewPartLedger(env.store, opts)
	audit := service.NewAuditTrail(env.store)
	env.handler = httptransport.NewHandler(jobs, ledger, audit, nil)
	env.router = httptransport.Routes(env.handler, httptransport.RouterConfig{JWTSecret: secret, RequestTimeout: 5 * time.Second})
	return env
}

func token(t *testing.T, userID uuid.UUID, role entity.Role) string {
	t.Helper()
	claims := httptransport.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func (env *testEnv) do(t *testing.T, role entity.Role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, env.users[role], role))
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func (env *testEnv) createJob(t *testing.T, priority int) entity.Job {
	t.Helper()
	rr := env.do(t, entity.RoleReceptionist, http.MethodPost, "/jobs", map[string]any{
		"customer_id":         env.customerID.String(),
		"miner_model_id":      env.modelID.String(),
		"problem_description": "hashrate drops after 10 minutes",
		"priority":            priority,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var job entity.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	return job
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got), rr.Body.String())
	return got
}

// ---- tests ----

func TestHTTP_CreateJob_201_AndPriorityStored(t *testing.T) {
	env := newTestEnv(t)

	job := env.createJob(t, 2)
	assert.Regexp(t, `^RJ\d{4}-0001$`, job.JobNumber)
	assert.Equal(t, entity.StatusReceived, job.Status)

	require.Len(t, env.queue.enqueued, 1)
	notice, err := service.ParseNotice(env.queue.enqueued[0])
	require.NoError(t, err)
	assert.Equal(t, job.ID, notice.JobID)
	assert.Equal(t, entity.ActionCreateJob, notice.Action)
	assert.Equal(t, []int{2}, env.queue.enqueuedPriorities)

	rr := env.do(t, entity.RoleTechnician, http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, float64(2), got["priority"])
	assert.Equal(t, job.JobNumber, got["job_number"])
}

func TestHTTP_CreateJob_DefaultPriorityIsNormal(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, entity.RoleReceptionist, http.MethodPost, "/jobs", map[string]any{
		"customer_id":         env.customerID.String(),
		"miner_model_id":      env.modelID.String(),
		"problem_description": "won't boot",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, []int{0}, env.queue.enqueuedPriorities)
}

func TestHTTP_CreateJob_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]map[string]any{
		"missing description": {"customer_id": env.customerID.String(), "miner_model_id": env.modelID.String()},
		"bad customer id":     {"customer_id": "nope", "miner_model_id": env.modelID.String(), "problem_description": "x"},
		"priority too high":   {"customer_id": env.customerID.String(), "miner_model_id": env.modelID.String(), "problem_description": "x", "priority": 5},
		"unknown customer":    {"customer_id": uuid.NewString(), "miner_model_id": env.modelID.String(), "problem_description": "x"},
		"unknown field":       {"customer_id": env.customerID.String(), "miner_model_id": env.modelID.String(), "problem_description": "x", "colour": "red"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := env.do(t, entity.RoleReceptionist, http.MethodPost, "/jobs", body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "validation", decodeError(t, rr)["kind"])
		})
	}
	assert.Empty(t, env.queue.enqueued)
}

func TestHTTP_Auth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "", http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthenticated", decodeError(t, rr)["kind"])

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// technicians may not open jobs
	rr = env.do(t, entity.RoleTechnician, http.MethodPost, "/jobs", map[string]any{
		"customer_id":         env.customerID.String(),
		"miner_model_id":      env.modelID.String(),
		"problem_description": "x",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeError(t, rr)["kind"])

	rr = env.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHTTP_ChangeStatus_ConflictsAndCompletion(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 0)
	path := "/jobs/" + job.ID.String() + "/status"

	rr := env.do(t, entity.RoleTechnician, http.MethodPost, path, map[string]any{"status": "received"})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "no_op_transition", decodeError(t, rr)["reason"])

	rr = env.do(t, entity.RoleTechnician, http.MethodPost, path, map[string]any{"status": "SHIPPED"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, entity.RoleManager, http.MethodPost, path, map[string]any{"status": "COMPLETED", "note": "picked up"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got entity.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, entity.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedDate)

	rr = env.do(t, entity.RoleManager, http.MethodPost, "/jobs/"+uuid.NewString()+"/status", map[string]any{"status": "TESTING"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTP_Parts_WithdrawAndReturn(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 1)
	part := entity.Part{ID: uuid.New(), PartNumber: "PSU-APW12", Name: "APW12 PSU", StockQty: 5, UnitPrice: decimal.RequireFromString("120")}
	env.store.PutPart(part)
	partsPath := "/jobs/" + job.ID.String() + "/parts"

	rr := env.do(t, entity.RoleTechnician, http.MethodPost, partsPath, map[string]any{"part_id": part.ID.String(), "quantity": 2})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var jp entity.JobPart
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &jp))
	assert.Equal(t, 2, jp.Quantity)

	rr = env.do(t, entity.RoleTechnician, http.MethodPost, partsPath, map[string]any{"part_id": part.ID.String(), "quantity": 10})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "insufficient_stock", decodeError(t, rr)["reason"])

	rr = env.do(t, entity.RoleTechnician, http.MethodPost, partsPath, map[string]any{"part_id": part.ID.String(), "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, entity.RoleReceptionist, http.MethodGet, partsPath, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []entity.JobPart
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	p, _ := env.store.Part(part.ID)
	assert.Equal(t, 3, p.StockQty)

	rr = env.do(t, entity.RoleManager, http.MethodDelete, partsPath+"/"+jp.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	p, _ = env.store.Part(part.ID)
	assert.Equal(t, 5, p.StockQty)
}

func TestHTTP_Activity_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 0)
	base := "/jobs/" + job.ID.String()

	rr := env.do(t, entity.RoleManager, http.MethodPost, base+"/technician", map[string]any{
		"technician_id": env.users[entity.RoleTechnician].String(),
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, entity.RoleTechnician, http.MethodPost, base+"/repair-records", map[string]any{"description": "replaced fan"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, entity.RoleReceptionist, http.MethodGet, base+"/activity?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []entity.ActivityLog
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, entity.ActionAddRepairRecord, logs[0].Action)
	assert.Equal(t, entity.ActionAssignTechnician, logs[1].Action)

	rr = env.do(t, entity.RoleReceptionist, http.MethodGet, base+"/activity?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, entity.RoleReceptionist, http.MethodGet, base+"/activity?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTP_DeleteJob(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 0)
	path := "/jobs/" + job.ID.String()

	rr := env.do(t, entity.RoleManager, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	env.store.PutPayment(job.ID)
	rr = env.do(t, entity.RoleAdmin, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "has_dependents", decodeError(t, rr)["reason"])

	other := env.createJob(t, 0)
	rr = env.do(t, entity.RoleAdmin, http.MethodDelete, "/jobs/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, entity.RoleAdmin, http.MethodGet, "/jobs/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTP_UpdateJobAndImages(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 0)
	base := "/jobs/" + job.ID.String()

	rr := env.do(t, entity.RoleManager, http.MethodPatch, base, map[string]any{"priority": 2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got entity.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, entity.PriorityCritical, got.Priority)

	rr = env.do(t, entity.RoleManager, http.MethodPatch, base, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, entity.RoleTechnician, http.MethodPost, base+"/images", map[string]any{"storage_key": "jobs/a.jpg"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var img entity.JobImage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &img))

	rr = env.do(t, entity.RoleAdmin, http.MethodDelete, base+"/images/"+img.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, entity.RoleAdmin, http.MethodDelete, base+"/images/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type headerCounter struct {
	*httptest.ResponseRecorder
	writes []int
}

func (c *headerCounter) WriteHeader(code int) {
	c.writes = append(c.writes, code)
	c.ResponseRecorder.WriteHeader(code)
}

func TestHTTP_DeadlineAnsweredOnceByTimeoutMiddleware(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t, 0)

	router := httptransport.Routes(env.handler, httptransport.RouterConfig{JWTSecret: secret, RequestTimeout: time.Nanosecond})
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token(t, env.users[entity.RoleManager], entity.RoleManager))

	rec := &headerCounter{ResponseRecorder: httptest.NewRecorder()}
	router.ServeHTTP(rec, req)

	assert.Equal(t, []int{http.StatusGatewayTimeout}, rec.writes)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
