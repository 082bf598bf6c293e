package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/hospital-scheduling/internal/identity"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

const testSecret = "test-secret"

type directLocker struct{}

func (directLocker) WithDoctorDayLock(ctx context.Context, _ uuid.UUID, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type testServer struct {
	srv *httptest.Server
	dir *identity.MemoryDirectory

	doctor  identity.Actor
	patient identity.Actor
	admin   identity.Actor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := schedule.NewMemoryRepository()
	dir := identity.NewMemoryDirectory()
	policy, err := schedule.NewPolicy("09:00", "17:00", 30, false)
	require.NoError(t, err)

	svc := schedule.NewService(repo, dir, directLocker{}, nil, policy, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service:   svc,
		JWTSecret: testSecret,
		Env:       "test",
		Version:   "test",
		Logger:    zerolog.Nop(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:     srv,
		dir:     dir,
		doctor:  dir.Add(identity.Actor{Role: identity.RoleDoctor, DisplayName: "Dr. Reyes"}),
		patient: dir.Add(identity.Actor{Role: identity.RolePatient, DisplayName: "Sam Okafor"}),
		admin:   dir.Add(identity.Actor{Role: identity.RoleAdmin, DisplayName: "Admin"}),
	}
}

func (ts *testServer) token(t *testing.T, a identity.Actor) string {
	t.Helper()
	tok, err := NewToken(testSecret, a.ID, a.Role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) createRequest() CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID:       ts.patient.ID.String(),
		DoctorID:        ts.doctor.ID.String(),
		Date:            "2026-09-14",
		StartTime:       "09:00",
		DurationMinutes: 30,
		Type:            "consultation",
	}
}

func (ts *testServer) book(t *testing.T, asToken string, req CreateAppointmentRequest) AppointmentResponse {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/appointments", asToken, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[AppointmentResponse](t, resp)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/appointments", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Token signed with a different secret is rejected.
	bad, err := NewToken("wrong-secret", ts.patient.ID, identity.RolePatient, time.Hour)
	require.NoError(t, err)
	resp = ts.do(t, http.MethodGet, "/appointments", bad, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.patient)

	created := ts.book(t, token, ts.createRequest())
	assert.Equal(t, ts.patient.ID, created.PatientID)
	assert.Equal(t, "scheduled", created.Status)
	assert.Equal(t, "09:00", created.StartTime)
	assert.Equal(t, "2026-09-14", created.Date)
}

func TestCreateAppointmentConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, ts.token(t, ts.patient), ts.createRequest())

	other := ts.dir.Add(identity.Actor{Role: identity.RolePatient, DisplayName: "Other"})
	req := ts.createRequest()
	req.PatientID = other.ID.String()

	resp := ts.do(t, http.MethodPost, "/appointments", ts.token(t, other), req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "booking_conflict", body.Error)
}

func TestCreateAppointmentValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.patient)

	tests := []struct {
		name    string
		mutate  func(*CreateAppointmentRequest)
		errCode string
	}{
		{"bad patient id", func(r *CreateAppointmentRequest) { r.PatientID = "xyz" }, "invalid_patient_id"},
		{"bad date", func(r *CreateAppointmentRequest) { r.Date = "14/09/2026" }, "invalid_date"},
		{"bad start time", func(r *CreateAppointmentRequest) { r.StartTime = "quarter past" }, "invalid_start_time"},
		{"duration too short", func(r *CreateAppointmentRequest) { r.DurationMinutes = 5 }, "validation_failed"},
		{"off slot start", func(r *CreateAppointmentRequest) { r.StartTime = "09:05" }, "validation_failed"},
		{"outside work hours", func(r *CreateAppointmentRequest) { r.StartTime = "07:00" }, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ts.createRequest()
			tt.mutate(&req)

			resp := ts.do(t, http.MethodPost, "/appointments", token, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.errCode, decode[ErrorResponse](t, resp).Error)
		})
	}
}

func TestCreateAppointmentForbiddenAndNotFound(t *testing.T) {
	ts := newTestServer(t)

	t.Run("patient booking for someone else", func(t *testing.T) {
		other := ts.dir.Add(identity.Actor{Role: identity.RolePatient, DisplayName: "Other"})
		req := ts.createRequest()
		req.PatientID = other.ID.String()

		resp := ts.do(t, http.MethodPost, "/appointments", ts.token(t, ts.patient), req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		req := ts.createRequest()
		req.DoctorID = uuid.NewString()

		resp := ts.do(t, http.MethodPost, "/appointments", ts.token(t, ts.patient), req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetAppointmentVisibility(t *testing.T) {
	ts := newTestServer(t)
	created := ts.book(t, ts.token(t, ts.patient), ts.createRequest())
	path := "/appointments/" + created.ID.String()

	resp := ts.do(t, http.MethodGet, path, ts.token(t, ts.patient), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, path, ts.token(t, ts.admin), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Unrelated patient cannot tell the appointment exists.
	other := ts.dir.Add(identity.Actor{Role: identity.RolePatient, DisplayName: "Other"})
	resp = ts.do(t, http.MethodGet, path, ts.token(t, other), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAppointmentsScoping(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, ts.token(t, ts.patient), ts.createRequest())

	otherDoc := ts.dir.Add(identity.Actor{Role: identity.RoleDoctor, DisplayName: "Dr. Other"})
	otherPat := ts.dir.Add(identity.Actor{Role: identity.RolePatient, DisplayName: "Other"})
	req := ts.createRequest()
	req.DoctorID = otherDoc.ID.String()
	req.PatientID = otherPat.ID.String()
	ts.book(t, ts.token(t, otherPat), req)

	t.Run("admin sees all", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/appointments", ts.token(t, ts.admin), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]AppointmentResponse](t, resp), 2)
	})

	t.Run("doctor filter from a patient is ignored", func(t *testing.T) {
		path := fmt.Sprintf("/appointments?doctor=%s", otherDoc.ID)
		resp := ts.do(t, http.MethodGet, path, ts.token(t, ts.patient), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		appts := decode[[]AppointmentResponse](t, resp)
		require.Len(t, appts, 1)
		assert.Equal(t, ts.patient.ID, appts[0].PatientID)
	})

	t.Run("invalid filter", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/appointments?status=nonsense", ts.token(t, ts.admin), nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdateStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.book(t, ts.token(t, ts.patient), ts.createRequest())
	path := "/appointments/" + created.ID.String() + "/status"

	t.Run("staff confirms", func(t *testing.T) {
		resp := ts.do(t, http.MethodPatch, path, ts.token(t, ts.admin), UpdateStatusRequest{Status: "confirmed"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "confirmed", decode[AppointmentResponse](t, resp).Status)
	})

	t.Run("illegal jump", func(t *testing.T) {
		resp := ts.do(t, http.MethodPatch, path, ts.token(t, ts.admin), UpdateStatusRequest{Status: "completed"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, resp).Error)
	})

	t.Run("patient cannot confirm but can cancel", func(t *testing.T) {
		second := ts.createRequest()
		second.StartTime = "10:00"
		appt := ts.book(t, ts.token(t, ts.patient), second)
		p := "/appointments/" + appt.ID.String() + "/status"

		resp := ts.do(t, http.MethodPatch, p, ts.token(t, ts.patient), UpdateStatusRequest{Status: "confirmed"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = ts.do(t, http.MethodPatch, p, ts.token(t, ts.patient), UpdateStatusRequest{Status: "cancelled"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "cancelled", decode[AppointmentResponse](t, resp).Status)
	})
}

func TestRescheduleEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.book(t, ts.token(t, ts.patient), ts.createRequest())
	path := "/appointments/" + created.ID.String() + "/schedule"

	resp := ts.do(t, http.MethodPatch, path, ts.token(t, ts.admin), RescheduleRequest{
		Date:            "2026-09-15",
		StartTime:       "14:30",
		DurationMinutes: 30,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	moved := decode[AppointmentResponse](t, resp)
	assert.Equal(t, "2026-09-15", moved.Date)
	assert.Equal(t, "14:30", moved.StartTime)
}

func TestDeleteEndpoint(t *testing.T) {
	ts := newTestServer(t)
	created := ts.book(t, ts.token(t, ts.patient), ts.createRequest())
	path := "/appointments/" + created.ID.String()

	resp := ts.do(t, http.MethodDelete, path, ts.token(t, ts.doctor), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, path, ts.token(t, ts.admin), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, path, ts.token(t, ts.admin), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.patient)
	base := "/doctors/" + ts.doctor.ID.String() + "/slots"

	t.Run("full day", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, base+"?date=2026-09-14", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		slots := decode[SlotsResponse](t, resp)
		assert.Len(t, slots.Slots, 16)
		assert.Equal(t, "09:00", slots.Slots[0])
		assert.Equal(t, "16:30", slots.Slots[15])
	})

	t.Run("booked slot disappears", func(t *testing.T) {
		ts.book(t, token, ts.createRequest())

		resp := ts.do(t, http.MethodGet, base+"?date=2026-09-14", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		slots := decode[SlotsResponse](t, resp)
		assert.Len(t, slots.Slots, 15)
		assert.NotContains(t, slots.Slots, "09:00")
	})

	t.Run("missing date", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, base, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/slots?date=2026-09-14", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
