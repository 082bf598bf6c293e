package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

var validRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleDoctor:       true,
	RoleNurse:        true,
	RoleReceptionist: true,
	RolePatient:      true,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return validRoles[r]
}

// Staff reports whether the role has full appointment visibility.
// Doctors and patients are scoped to their own records instead.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleNurse || r == RoleReceptionist
}

// Actor is any person known to the hospital: clinical staff, admins and
// patients alike. The identity directory owns these records; the scheduling
// core only reads them.
type Actor struct {
	ID          uuid.UUID
	Role        Role
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Caller is the authenticated principal attached to a request after the
// auth middleware has validated its token.
type Caller struct {
	ID   uuid.UUID
	Role Role
}
