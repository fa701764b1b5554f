package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"repair-job-service/internal/entity"
)

// Notice names one committed activity entry for the notification worker.
// Subject is the new status for CHANGE_STATUS and the technician id for
// ASSIGN_TECHNICIAN. On the queue it is "<job id>:<activity id>:<action>:<subject>".
type Notice struct {
	JobID      uuid.UUID
	ActivityID int64
	Action     entity.ActivityAction
	Subject    string
}

func (n Notice) String() string {
	return fmt.Sprintf("%s:%d:%s:%s", n.JobID, n.ActivityID, n.Action, n.Subject)
}

func ParseNotice(s string) (Notice, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return Notice{}, fmt.Errorf("notice %q: want 4 fields, got %d", s, len(parts))
	}
	jobID, err := uuid.Parse(parts[0])
	if err != nil {
		return Notice{}, fmt.Errorf("notice %q: job id: %w", s, err)
	}
	activityID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || activityID <= 0 {
		return Notice{}, fmt.Errorf("notice %q: bad activity id", s)
	}
	if parts[2] == "" {
		return Notice{}, fmt.Errorf("notice %q: missing action", s)
	}
	return Notice{
		JobID:      jobID,
		ActivityID: activityID,
		Action:     entity.ActivityAction(parts[2]),
		Subject:    parts[3],
	}, nil
}
