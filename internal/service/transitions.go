package service

import (
	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
)

// TransitionTable lists, per current status, the statuses a job may move to.
// A status missing from the table has no outgoing transitions.
type TransitionTable map[entity.JobStatus]map[entity.JobStatus]struct{}

// PermissiveTransitions allows every status to move to every other status.
// Self-transitions are rejected by ChangeStatus regardless of the table.
func PermissiveTransitions() TransitionTable {
	t := make(TransitionTable, len(entity.AllStatuses))
	for _, from := range entity.AllStatuses {
		allowed := make(map[entity.JobStatus]struct{}, len(entity.AllStatuses)-1)
		for _, to := range entity.AllStatuses {
			if to != from {
				allowed[to] = struct{}{}
			}
		}
		t[from] = allowed
	}
	return t
}

// TransitionsFrom builds a table from a plain adjacency list.
func TransitionsFrom(edges map[entity.JobStatus][]entity.JobStatus) TransitionTable {
	t := make(TransitionTable, len(edges))
	for from, tos := range edges {
		allowed := make(map[entity.JobStatus]struct{}, len(tos))
		for _, to := range tos {
			allowed[to] = struct{}{}
		}
		t[from] = allowed
	}
	return t
}

func (t TransitionTable) Allows(from, to entity.JobStatus) bool {
	_, ok := t[from][to]
	return ok
}

func (t TransitionTable) check(from, to entity.JobStatus) error {
	if from == to {
		return apperr.Conflict(apperr.ReasonNoOpTransition, "job already at status %s", to)
	}
	if !t.Allows(from, to) {
		return apperr.Conflict(apperr.ReasonTransitionNotAllowed, "cannot move job from %s to %s", from, to)
	}
	return nil
}
