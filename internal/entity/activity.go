package entity

import (
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActionCreateJob        ActivityAction = "CREATE_JOB"
	ActionUpdateJob        ActivityAction = "UPDATE_JOB"
	ActionChangeStatus     ActivityAction = "CHANGE_STATUS"
	ActionAssignTechnician ActivityAction = "ASSIGN_TECHNICIAN"
	ActionAddPart          ActivityAction = "ADD_PART"
	ActionRemovePart       ActivityAction = "REMOVE_PART"
	ActionAddRepairRecord  ActivityAction = "ADD_REPAIR_RECORD"
	ActionUploadImage      ActivityAction = "UPLOAD_IMAGE"
	ActionDeleteImage      ActivityAction = "DELETE_IMAGE"
)

// ActivityLog is append-only. ID is assigned by the store and increases
// with insertion order, which breaks ties between equal CreatedAt values.
type ActivityLog struct {
	ID          int64          `json:"id"`
	JobID       uuid.UUID      `json:"job_id"`
	UserID      uuid.UUID      `json:"user_id"`
	Action      ActivityAction `json:"action"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
}
