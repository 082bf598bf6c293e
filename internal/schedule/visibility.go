package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelane/hospital-scheduling/internal/identity"
)

// Filter narrows an appointment query. Nil / zero fields are not applied.
type Filter struct {
	DoctorID   *uuid.UUID
	PatientID  *uuid.UUID
	Date       *time.Time
	Status     *Status
	Type       string
	Department string
}

// VisibilityFilter applies the caller's role policy to a requested filter:
//
//	admin, nurse, receptionist  full visibility, explicit filters honored
//	doctor                      pinned to own appointments
//	patient                     pinned to own appointments
//
// Explicit doctor/patient filters from non-staff callers are discarded
// rather than rejected, so a scoped caller can never widen visibility
// through query parameters. Date, status, type and department filters are
// honored for every role. Pure function.
func VisibilityFilter(role identity.Role, callerID uuid.UUID, requested Filter) Filter {
	f := requested

	switch role {
	case identity.RoleDoctor:
		id := callerID
		f.DoctorID = &id
		f.PatientID = nil
	case identity.RolePatient:
		id := callerID
		f.PatientID = &id
		f.DoctorID = nil
	default:
		// Staff roles keep the requested filter as-is.
	}

	return f
}
