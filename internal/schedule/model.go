package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MinutesPerDay = 24 * 60

	MinDurationMinutes = 15
	MaxDurationMinutes = 120

	// DateLayout is the wire format for clinic days. Dates are
	// time-zone-naive and treated as local clinic days.
	DateLayout = "2006-01-02"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusNoShow:     true,
}

func (s Status) Valid() bool {
	return validStatuses[s]
}

// Blocks reports whether an appointment in this status occupies its
// doctor's time for conflict purposes. Cancelled, completed, no-show and
// in-progress appointments never block a new booking; only upcoming
// scheduled and confirmed ones do.
func (s Status) Blocks() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// TimeOfDay is a clock time with minute granularity, stored as minutes
// since midnight. The zero value is 00:00.
type TimeOfDay int

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns the time-of-day m minutes later. The result may exceed
// 24:00; callers validate against MinutesPerDay where that matters.
func (t TimeOfDay) Add(m int) TimeOfDay {
	return t + TimeOfDay(m)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	Date               time.Time // midnight, clinic-local calendar day
	Start              TimeOfDay
	DurationMinutes    int
	Status             Status
	Type               string
	Priority           string
	Department         string
	Notes              string
	FollowUpRequired   bool
	FollowUpNotifiedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Interval returns the half-open [start, end) minute range the
// appointment occupies on its day.
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.Start.Add(a.DurationMinutes)}
}

// Day returns the appointment's date in wire format, used both in
// responses and as the doctor-day lock key component.
func (a *Appointment) Day() string {
	return a.Date.Format(DateLayout)
}
