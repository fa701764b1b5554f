package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// record appends the audit row for a mutation on the caller's transaction.
// A failure here fails the mutation.
func record(ctx context.Context, tx Tx, at time.Time, jobID uuid.UUID, actor entity.Actor, action entity.ActivityAction, description string) error {
	_, err := recordEntry(ctx, tx, at, jobID, actor, action, description)
	return err
}

// recordEntry is record returning the stored row, whose ID is set.
func recordEntry(ctx context.Context, tx Tx, at time.Time, jobID uuid.UUID, actor entity.Actor, action entity.ActivityAction, description string) (*entity.ActivityLog, error) {
	entry := &entity.ActivityLog{
		JobID:       jobID,
		UserID:      actor.UserID,
		Action:      action,
		Description: description,
		CreatedAt:   at,
	}
	if err := tx.AppendActivity(ctx, entry); err != nil {
		return nil, fmt.Errorf("append %s activity: %w", action, err)
	}
	return entry, nil
}

func withNote(description, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return description
	}
	return description + ": " + note
}

// AuditTrail reads the activity log.
type AuditTrail struct {
	store Store
}

func NewAuditTrail(store Store) *AuditTrail {
	return &AuditTrail{store: store}
}

// ListActivity returns a page of the job's activity, newest first. A
// non-positive limit selects the default page size.
func (a *AuditTrail) ListActivity(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]entity.ActivityLog, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	if offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}

	var out []entity.ActivityLog
	err := a.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetJob(ctx, jobID); err != nil {
			return err
		}
		logs, err := tx.ListActivity(ctx, jobID, limit, offset)
		if err != nil {
			return err
		}
		out = logs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActivity returns a single entry of the job's log.
func (a *AuditTrail) GetActivity(ctx context.Context, jobID uuid.UUID, id int64) (*entity.ActivityLog, error) {
	var out *entity.ActivityLog
	err := a.store.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		entry, err := tx.GetActivity(ctx, jobID, id)
		out = entry
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
