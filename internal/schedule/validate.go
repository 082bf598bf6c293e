package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Policy carries the clinic-day booking rules. It is built from config at
// wiring time so the domain package stays free of env handling.
type Policy struct {
	WorkStart   TimeOfDay
	WorkEnd     TimeOfDay
	SlotMinutes int

	// AllowOffSlotBookings permits start times that do not align to a
	// generated slot boundary (e.g. emergency bookings). Off by default.
	AllowOffSlotBookings bool
}

// NewPolicy parses the HH:MM work-hour bounds from configuration.
func NewPolicy(workStart, workEnd string, slotMinutes int, allowOffSlot bool) (Policy, error) {
	ws, err := ParseTimeOfDay(workStart)
	if err != nil {
		return Policy{}, fmt.Errorf("work day start: %w", err)
	}
	we, err := ParseTimeOfDay(workEnd)
	if err != nil {
		return Policy{}, fmt.Errorf("work day end: %w", err)
	}
	if we <= ws {
		return Policy{}, fmt.Errorf("work day end %s must be after start %s", we, ws)
	}
	return Policy{
		WorkStart:            ws,
		WorkEnd:              we,
		SlotMinutes:          slotMinutes,
		AllowOffSlotBookings: allowOffSlot,
	}, nil
}

// ValidationError describes a rejected field. It reaches the caller as a
// 400 with its message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BookingRequest is a validated unit of work for Book and Reschedule.
type BookingRequest struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Date            time.Time
	Start           TimeOfDay
	DurationMinutes int
	Type            string
	Priority        string
	Department      string
	Notes           string
}

// ValidateBooking checks a candidate booking against the policy before
// any conflict detection runs. It enforces:
//
//   - duration within [MinDurationMinutes, MaxDurationMinutes]
//   - the interval stays within the same day (no midnight crossing;
//     rejected, never clamped)
//   - slot alignment relative to the work-day start, unless the policy
//     allows off-slot bookings
//
// Staying inside work hours is only required on the aligned path;
// off-slot bookings may land outside them.
func ValidateBooking(req BookingRequest, p Policy) error {
	if req.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "required"}
	}
	if req.DoctorID == uuid.Nil {
		return &ValidationError{Field: "doctor_id", Reason: "required"}
	}
	if req.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if req.Start < 0 || req.Start >= MinutesPerDay {
		return &ValidationError{Field: "start_time", Reason: "must fall within the day"}
	}
	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		return &ValidationError{
			Field:  "duration_minutes",
			Reason: fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes),
		}
	}
	if int(req.Start)+req.DurationMinutes > MinutesPerDay {
		return &ValidationError{Field: "start_time", Reason: "appointment must not cross midnight"}
	}

	if !p.AllowOffSlotBookings {
		if req.Start < p.WorkStart || req.Start.Add(req.DurationMinutes) > p.WorkEnd {
			return &ValidationError{Field: "start_time", Reason: "outside clinic work hours"}
		}
		if p.SlotMinutes > 0 && int(req.Start-p.WorkStart)%p.SlotMinutes != 0 {
			return &ValidationError{
				Field:  "start_time",
				Reason: fmt.Sprintf("must align to a %d-minute slot boundary", p.SlotMinutes),
			}
		}
	}

	return nil
}
