package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)

	// ListForDoctorDay returns every appointment for a doctor on a date,
	// regardless of status. Conflict checks filter to blocking statuses.
	ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// UpdateStatus is a compare-and-swap: the row only changes when its
	// current status equals from, so a concurrent transition loses cleanly.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, followUpRequired bool) (*Appointment, error)

	// UpdateTiming moves an appointment to a new date/start/duration.
	UpdateTiming(ctx context.Context, id uuid.UUID, date time.Time, start TimeOfDay, durationMinutes int) (*Appointment, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// Follow-up worker
	ListFollowUpsPending(ctx context.Context, limit int) ([]Appointment, error)
	MarkFollowUpNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}
