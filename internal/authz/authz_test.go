package authz_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"repair-job-service/internal/apperr"
	"repair-job-service/internal/authz"
	"repair-job-service/internal/entity"
)

func TestDefaultTable(t *testing.T) {
	gate := authz.NewGate(nil)

	cases := []struct {
		role   entity.Role
		action authz.Action
		want   bool
	}{
		{entity.RoleReceptionist, authz.ActionCreateJob, true},
		{entity.RoleTechnician, authz.ActionCreateJob, false},
		{entity.RoleManager, authz.ActionAssignTechnician, true},
		{entity.RoleReceptionist, authz.ActionAssignTechnician, false},
		{entity.RoleTechnician, authz.ActionChangeStatus, true},
		{entity.RoleReceptionist, authz.ActionChangeStatus, true},
		{entity.RoleTechnician, authz.ActionWithdrawPart, true},
		{entity.RoleReceptionist, authz.ActionWithdrawPart, false},
		{entity.RoleTechnician, authz.ActionReturnPart, false},
		{entity.RoleManager, authz.ActionReturnPart, true},
		{entity.RoleTechnician, authz.ActionAddRepairRecord, true},
		{entity.RoleManager, authz.ActionDeleteJob, false},
		{entity.RoleAdmin, authz.ActionDeleteJob, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.role)+"/"+string(tc.action), func(t *testing.T) {
			assert.Equal(t, tc.want, gate.Allowed(tc.role, tc.action))
		})
	}
}

func TestCheckReturnsAuthorizationError(t *testing.T) {
	gate := authz.NewGate(nil)
	actor := entity.Actor{UserID: uuid.New(), Role: entity.RoleTechnician}

	err := gate.Check(actor, authz.ActionDeleteJob)

	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	assert.NoError(t, gate.Check(actor, authz.ActionChangeStatus))
}

func TestUnknownRoleAndActionDenied(t *testing.T) {
	gate := authz.NewGate(nil)

	assert.Error(t, gate.Check(entity.Actor{Role: "guest"}, authz.ActionChangeStatus))
	assert.Error(t, gate.Check(entity.Actor{Role: entity.RoleAdmin}, authz.Action("rename-job")))
}
