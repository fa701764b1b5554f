package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusReceived        JobStatus = "RECEIVED"
	StatusDiagnosed       JobStatus = "DIAGNOSED"
	StatusWaitingApproval JobStatus = "WAITING_APPROVAL"
	StatusInRepair        JobStatus = "IN_REPAIR"
	StatusWaitingParts    JobStatus = "WAITING_PARTS"
	StatusTesting         JobStatus = "TESTING"
	StatusReadyForPickup  JobStatus = "READY_FOR_PICKUP"
	StatusCompleted       JobStatus = "COMPLETED"
	StatusCancelled       JobStatus = "CANCELLED"
	StatusOnHold          JobStatus = "ON_HOLD"
)

// AllStatuses lists every status in intake-to-closure order.
var AllStatuses = []JobStatus{
	StatusReceived,
	StatusDiagnosed,
	StatusWaitingApproval,
	StatusInRepair,
	StatusWaitingParts,
	StatusTesting,
	StatusReadyForPickup,
	StatusCompleted,
	StatusCancelled,
	StatusOnHold,
}

func (s JobStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Priority int

const (
	PriorityNormal   Priority = 0
	PriorityUrgent   Priority = 1
	PriorityCritical Priority = 2
)

func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

type Job struct {
	ID                 uuid.UUID  `json:"id"`
	JobNumber          string     `json:"job_number"`
	CustomerID         uuid.UUID  `json:"customer_id"`
	MinerModelID       uuid.UUID  `json:"miner_model_id"`
	SerialNumber       string     `json:"serial_number,omitempty"`
	ProblemDescription string     `json:"problem_description"`
	Status             JobStatus  `json:"status"`
	Priority           Priority   `json:"priority"`
	TechnicianID       *uuid.UUID `json:"technician_id,omitempty"`
	WarrantyProfileID  *uuid.UUID `json:"warranty_profile_id,omitempty"`
	ReceivedDate       time.Time  `json:"received_date"`
	EstimatedDoneDate  *time.Time `json:"estimated_done_date,omitempty"`
	CompletedDate      *time.Time `json:"completed_date,omitempty"`
	CreatedByID        uuid.UUID  `json:"created_by_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// CheckInvariants reports an error when the job holds a state no operation
// should ever produce.
func (j *Job) CheckInvariants() error {
	if j.JobNumber == "" {
		return errInvariant("job has no job number")
	}
	if !j.Status.Valid() {
		return errInvariant("job has unknown status " + string(j.Status))
	}
	if j.Status == StatusCompleted && j.CompletedDate == nil {
		return errInvariant("completed job has no completed date")
	}
	return nil
}

type RepairRecord struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type JobImage struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	StorageKey string    `json:"storage_key"`
	Caption    string    `json:"caption,omitempty"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type invariantError string

func (e invariantError) Error() string { return "invariant violated: " + string(e) }

func errInvariant(msg string) error { return invariantError(msg) }
