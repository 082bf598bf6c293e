package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/identity"
	redisclient "github.com/carelane/hospital-scheduling/internal/redis"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

func createAppointmentHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, err := time.Parse(schedule.DateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		start, err := schedule.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), caller, schedule.BookingRequest{
			PatientID:       patientID,
			DoctorID:        doctorID,
			Date:            date,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			Type:            req.Type,
			Priority:        req.Priority,
			Department:      req.Department,
			Notes:           req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		f, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		appts, err := svc.List(r.Context(), caller, f)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getAppointmentHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), caller, id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availableSlotsHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mustCaller(w, r); !ok {
			return
		}

		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		date, err := time.Parse(schedule.DateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		out := make([]string, 0, len(slots))
		for _, s := range slots {
			out = append(out, s.String())
		}
		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     date.Format(schedule.DateLayout),
			Slots:    out,
		})
	}
}

func updateStatusHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), caller, id, schedule.Status(req.Status), req.FollowUpRequired)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse(schedule.DateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		start, err := schedule.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", err.Error())
			return
		}

		appt, err := svc.Reschedule(r.Context(), caller, id, date, start, req.DurationMinutes)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *schedule.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := mustCaller(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.Delete(r.Context(), caller, id); err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// filterFromQuery builds the requested filter from query parameters. The
// service applies the caller's visibility on top, so over-broad doctor or
// patient parameters from scoped callers are dropped there, not rejected
// here.
func filterFromQuery(r *http.Request) (schedule.Filter, error) {
	var f schedule.Filter
	q := r.URL.Query()

	if v := q.Get("doctor"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("doctor must be a valid UUID")
		}
		f.DoctorID = &id
	}
	if v := q.Get("patient"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("patient must be a valid UUID")
		}
		f.PatientID = &id
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(schedule.DateLayout, v)
		if err != nil {
			return f, errors.New("date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	if v := q.Get("status"); v != "" {
		st := schedule.Status(v)
		if !st.Valid() {
			return f, errors.New("unknown status")
		}
		f.Status = &st
	}
	f.Type = q.Get("type")
	f.Department = q.Get("department")

	return f, nil
}

func mustCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
	}
	return caller, ok
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var verr *schedule.ValidationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
	case errors.Is(err, schedule.ErrConflict):
		writeError(w, http.StatusBadRequest, "booking_conflict", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrScheduleBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_busy", "doctor's schedule is being modified, please retry shortly")
	case errors.Is(err, schedule.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound),
		errors.Is(err, schedule.ErrDoctorNotFound),
		errors.Is(err, schedule.ErrPatientNotFound),
		errors.Is(err, identity.ErrActorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		// Internal detail stays in the server log.
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
