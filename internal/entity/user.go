package entity

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleReceptionist Role = "receptionist"
	RoleTechnician   Role = "technician"
)

var AllRoles = []Role{RoleAdmin, RoleManager, RoleReceptionist, RoleTechnician}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is the slice of the user directory this service reads.
type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Role   Role      `json:"role"`
	Active bool      `json:"active"`
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}
