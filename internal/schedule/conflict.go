package schedule

import "github.com/google/uuid"

// Interval is a half-open [Start, End) range of minutes within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps reports whether two half-open intervals share any minute.
// Touching boundaries (one ends exactly when the other starts) do not
// overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// FindConflict returns the first existing appointment whose interval
// overlaps the candidate. Only appointments in a blocking status
// (scheduled or confirmed) count; callers may pass an unfiltered day's
// worth of records. An appointment never conflicts with itself, so the
// record with ignoreID is skipped — reschedules pass the appointment
// being moved.
func FindConflict(candidate Interval, existing []Appointment, ignoreID uuid.UUID) *Appointment {
	for i := range existing {
		a := &existing[i]
		if a.ID == ignoreID {
			continue
		}
		if !a.Status.Blocks() {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			return a
		}
	}
	return nil
}
