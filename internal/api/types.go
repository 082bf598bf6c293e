package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carelane/hospital-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	Date            string `json:"date"`       // YYYY-MM-DD
	StartTime       string `json:"start_time"` // HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	Type            string `json:"type,omitempty"`
	Priority        string `json:"priority,omitempty"`
	Department      string `json:"department,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status           string `json:"status"`
	FollowUpRequired bool   `json:"follow_up_required,omitempty"`
}

type RescheduleRequest struct {
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type AppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	DurationMinutes  int       `json:"duration_minutes"`
	Status           string    `json:"status"`
	Type             string    `json:"type,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	Department       string    `json:"department,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	FollowUpRequired bool      `json:"follow_up_required"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		PatientID:        a.PatientID,
		DoctorID:         a.DoctorID,
		Date:             a.Day(),
		StartTime:        a.Start.String(),
		DurationMinutes:  a.DurationMinutes,
		Status:           string(a.Status),
		Type:             a.Type,
		Priority:         a.Priority,
		Department:       a.Department,
		Notes:            a.Notes,
		FollowUpRequired: a.FollowUpRequired,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
