package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/identity"
	"github.com/carelane/hospital-scheduling/internal/notify"
	redisclient "github.com/carelane/hospital-scheduling/internal/redis"
)

var (
	ErrConflict          = errors.New("requested time overlaps an existing appointment")
	ErrScheduleBusy      = errors.New("doctor's schedule is being modified, please retry")
	ErrNotAuthorized     = errors.New("caller is not permitted to perform this operation")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const followUpBatchSize = 100

type Service struct {
	repo   Repository
	dir    identity.Directory
	locker redisclient.Locker
	pub    notify.Publisher
	policy Policy
	log    zerolog.Logger
}

func NewService(repo Repository, dir identity.Directory, locker redisclient.Locker, pub notify.Publisher, policy Policy, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		pub:    pub,
		policy: policy,
		log:    log.With().Str("component", "schedule").Logger(),
	}
}

// appointmentEvent is the payload published on booking and status changes.
type appointmentEvent struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
}

func eventFor(a *Appointment) appointmentEvent {
	return appointmentEvent{
		AppointmentID:   a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		Date:            a.Day(),
		StartTime:       a.Start.String(),
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
	}
}

// AvailableSlots generates the day's bookable slots from the clinic
// policy and removes those whose interval would overlap an existing
// scheduled or confirmed appointment of the doctor.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeOfDay, error) {
	isDoc, err := s.dir.IsDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !isDoc {
		return nil, ErrDoctorNotFound
	}

	existing, err := s.repo.ListForDoctorDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load doctor day: %w", err)
	}

	free := make([]TimeOfDay, 0)
	for _, slot := range Slots(s.policy.WorkStart, s.policy.WorkEnd, s.policy.SlotMinutes) {
		candidate := Interval{Start: slot, End: slot.Add(s.policy.SlotMinutes)}
		if FindConflict(candidate, existing, uuid.Nil) == nil {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Book reserves an appointment for a patient with a doctor. The conflict
// check and the insert run as one logical unit under a distributed lock
// keyed by (doctor, day), so two concurrent overlapping bookings cannot
// both commit.
func (s *Service) Book(ctx context.Context, caller identity.Caller, req BookingRequest) (*Appointment, error) {
	if caller.Role == identity.RolePatient && req.PatientID != caller.ID {
		return nil, ErrNotAuthorized
	}

	if err := ValidateBooking(req, s.policy); err != nil {
		return nil, err
	}

	isDoc, err := s.dir.IsDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !isDoc {
		return nil, ErrDoctorNotFound
	}

	isPat, err := s.dir.IsPatient(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !isPat {
		return nil, ErrPatientNotFound
	}

	var created *Appointment

	day := req.Date.Format(DateLayout)
	err = s.locker.WithDoctorDayLock(ctx, req.DoctorID, day, func(lockCtx context.Context) error {
		existing, err := s.repo.ListForDoctorDay(lockCtx, req.DoctorID, req.Date)
		if err != nil {
			return fmt.Errorf("load doctor day: %w", err)
		}

		candidate := Interval{Start: req.Start, End: req.Start.Add(req.DurationMinutes)}
		if hit := FindConflict(candidate, existing, uuid.Nil); hit != nil {
			return fmt.Errorf("%w: %s-%s taken by appointment %s",
				ErrConflict, hit.Start, hit.Start.Add(hit.DurationMinutes), hit.ID)
		}

		appt := &Appointment{
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			Date:            req.Date,
			Start:           req.Start,
			DurationMinutes: req.DurationMinutes,
			Status:          StatusScheduled,
			Type:            req.Type,
			Priority:        req.Priority,
			Department:      req.Department,
			Notes:           req.Notes,
		}
		if err := s.repo.Insert(lockCtx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.publish(ctx, notify.TopicAppointmentCreated, eventFor(created))
	return created, nil
}

// List returns the appointments the caller may see, narrowed by the
// requested filter.
func (s *Service) List(ctx context.Context, caller identity.Caller, requested Filter) ([]Appointment, error) {
	f := VisibilityFilter(caller.Role, caller.ID, requested)
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Get returns a single appointment. Records outside the caller's
// visibility read as not found so their existence does not leak.
func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(caller, appt) {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// UpdateStatus moves an appointment through its lifecycle. Terminal
// states are immutable; patients may only cancel their own bookings.
// followUpRequired is only consulted when completing.
func (s *Service) UpdateStatus(ctx context.Context, caller identity.Caller, id uuid.UUID, to Status, followUpRequired bool) (*Appointment, error) {
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", to)}
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(caller, appt) {
		return nil, ErrAppointmentNotFound
	}
	if caller.Role == identity.RolePatient && to != StatusCancelled {
		return nil, ErrNotAuthorized
	}

	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	followUp := appt.FollowUpRequired
	if to == StatusCompleted {
		followUp = followUpRequired
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to, followUp)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The compare-and-swap lost to a concurrent transition.
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.publish(ctx, notify.TopicAppointmentStatus, eventFor(updated))
	return updated, nil
}

// Reschedule moves a scheduled or confirmed appointment to a new
// date/time, re-running validation and the conflict check under the
// destination doctor-day lock.
func (s *Service) Reschedule(ctx context.Context, caller identity.Caller, id uuid.UUID, date time.Time, start TimeOfDay, durationMinutes int) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(caller, appt) {
		return nil, ErrAppointmentNotFound
	}
	if !appt.Status.Blocks() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
	}

	req := BookingRequest{
		PatientID:       appt.PatientID,
		DoctorID:        appt.DoctorID,
		Date:            date,
		Start:           start,
		DurationMinutes: durationMinutes,
	}
	if err := ValidateBooking(req, s.policy); err != nil {
		return nil, err
	}

	var updated *Appointment

	day := date.Format(DateLayout)
	err = s.locker.WithDoctorDayLock(ctx, appt.DoctorID, day, func(lockCtx context.Context) error {
		existing, err := s.repo.ListForDoctorDay(lockCtx, appt.DoctorID, date)
		if err != nil {
			return fmt.Errorf("load doctor day: %w", err)
		}

		candidate := Interval{Start: start, End: start.Add(durationMinutes)}
		if hit := FindConflict(candidate, existing, appt.ID); hit != nil {
			return fmt.Errorf("%w: %s-%s taken by appointment %s",
				ErrConflict, hit.Start, hit.Start.Add(hit.DurationMinutes), hit.ID)
		}

		updated, err = s.repo.UpdateTiming(lockCtx, id, date, start, durationMinutes)
		if err != nil {
			return fmt.Errorf("update timing: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.publish(ctx, notify.TopicAppointmentRescheduled, eventFor(updated))
	return updated, nil
}

// Delete removes an appointment unconditionally. Administrative
// operation, no lifecycle guard.
func (s *Service) Delete(ctx context.Context, caller identity.Caller, id uuid.UUID) error {
	if caller.Role != identity.RoleAdmin {
		return ErrNotAuthorized
	}
	return s.repo.Delete(ctx, id)
}

// NotifyFollowUps publishes a follow-up-due event for every completed
// appointment flagged follow-up-required that has not been notified yet.
// Called periodically by the follow-up worker.
func (s *Service) NotifyFollowUps(ctx context.Context) (int, error) {
	pending, err := s.repo.ListFollowUpsPending(ctx, followUpBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending follow-ups: %w", err)
	}

	notified := 0
	for i := range pending {
		appt := &pending[i]
		s.publish(ctx, notify.TopicFollowUpDue, eventFor(appt))
		if err := s.repo.MarkFollowUpNotified(ctx, appt.ID, time.Now()); err != nil {
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("mark follow-up notified failed")
			continue
		}
		notified++
	}
	return notified, nil
}

// visible reports whether the caller's role-scoped view includes the
// appointment. Staff see everything.
func (s *Service) visible(caller identity.Caller, a *Appointment) bool {
	switch caller.Role {
	case identity.RoleDoctor:
		return a.DoctorID == caller.ID
	case identity.RolePatient:
		return a.PatientID == caller.ID
	default:
		return caller.Role.Staff()
	}
}

// publish is fire-and-forget: delivery failure must never fail the
// operation that produced the event.
func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, topic, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}
