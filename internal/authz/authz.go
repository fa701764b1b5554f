// Package authz holds the role capability table consulted before any job
// mutation. Checks are pure and run before a transaction opens.
package authz

import (
	"repair-job-service/internal/apperr"
	"repair-job-service/internal/entity"
)

type Action string

const (
	ActionCreateJob        Action = "create-job"
	ActionUpdateJob        Action = "update-job"
	ActionAssignTechnician Action = "assign-technician"
	ActionChangeStatus     Action = "change-status"
	ActionWithdrawPart     Action = "withdraw-part"
	ActionReturnPart       Action = "return-part"
	ActionAddRepairRecord  Action = "add-repair-record"
	ActionUploadImage      Action = "upload-image"
	ActionDeleteImage      Action = "delete-image"
	ActionDeleteJob        Action = "delete-job"
)

type Table map[Action][]entity.Role

// DefaultTable is the shop's standing policy.
func DefaultTable() Table {
	staff := []entity.Role{entity.RoleAdmin, entity.RoleManager}
	return Table{
		ActionCreateJob:        {entity.RoleAdmin, entity.RoleManager, entity.RoleReceptionist},
		ActionUpdateJob:        staff,
		ActionAssignTechnician: staff,
		ActionChangeStatus:     entity.AllRoles,
		ActionWithdrawPart:     {entity.RoleAdmin, entity.RoleManager, entity.RoleTechnician},
		ActionReturnPart:       staff,
		ActionAddRepairRecord:  {entity.RoleAdmin, entity.RoleManager, entity.RoleTechnician},
		ActionUploadImage:      entity.AllRoles,
		ActionDeleteImage:      staff,
		ActionDeleteJob:        {entity.RoleAdmin},
	}
}

type Gate struct {
	table Table
}

func NewGate(table Table) *Gate {
	if table == nil {
		table = DefaultTable()
	}
	return &Gate{table: table}
}

func (g *Gate) Allowed(role entity.Role, action Action) bool {
	for _, r := range g.table[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns an authorization error when role may not perform action.
// Unknown actions are denied.
func (g *Gate) Check(actor entity.Actor, action Action) error {
	if !actor.Role.Valid() {
		return apperr.Forbidden("unknown role %q", actor.Role)
	}
	if !g.Allowed(actor.Role, action) {
		return apperr.Forbidden("role %s may not %s", actor.Role, action)
	}
	return nil
}
