package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in memory for tests and local
// development. It follows the same error contract as PgRepository:
// ErrAppointmentNotFound when the row is absent, including the
// compare-and-swap miss in UpdateStatus.
type MemoryRepository struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appts: make(map[uuid.UUID]*Appointment)}
}

func (r *MemoryRepository) Insert(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appts {
		if matchesFilter(a, f) {
			result = append(result, *a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Start < result[j].Start
	})
	return result, nil
}

func (r *MemoryRepository) ListForDoctorDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appts {
		if a.DoctorID == doctorID && sameDay(a.Date, date) {
			result = append(result, *a)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Start < result[j].Start })
	return result, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, followUpRequired bool) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.FollowUpRequired = followUpRequired
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) UpdateTiming(_ context.Context, id uuid.UUID, date time.Time, start TimeOfDay, durationMinutes int) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	a.Date = date
	a.Start = start
	a.DurationMinutes = durationMinutes
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *MemoryRepository) ListFollowUpsPending(_ context.Context, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appts {
		if a.Status == StatusCompleted && a.FollowUpRequired && a.FollowUpNotifiedAt == nil {
			result = append(result, *a)
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (r *MemoryRepository) MarkFollowUpNotified(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	t := at
	a.FollowUpNotifiedAt = &t
	a.UpdatedAt = time.Now()
	return nil
}

func matchesFilter(a *Appointment, f Filter) bool {
	if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.Date != nil && !sameDay(a.Date, *f.Date) {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Department != "" && a.Department != f.Department {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	return a.Format(DateLayout) == b.Format(DateLayout)
}
