package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
)

type noopLocker struct{}

func (noopLocker) WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noopGateway struct{}

func (noopGateway) Notify(ctx context.Context, recipient negotiation.Actor, recipientID, appointmentID uuid.UUID, newStatus negotiation.AppointmentStatus, payload map[string]string) error {
	return nil
}

type memDeviceStore struct {
	tokens map[string]uuid.UUID
}

func (s *memDeviceStore) Register(ctx context.Context, ownerID uuid.UUID, owner negotiation.Actor, token, deviceName string) error {
	if s.tokens == nil {
		s.tokens = make(map[string]uuid.UUID)
	}
	s.tokens[token] = ownerID
	return nil
}

func (s *memDeviceStore) TokensFor(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	var out []string
	for token, owner := range s.tokens {
		if owner == ownerID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *memDeviceStore) Remove(ctx context.Context, token string) error {
	delete(s.tokens, token)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *negotiation.Engine) {
	t.Helper()

	engine := negotiation.NewEngine(negotiation.NewMemoryRepository(), noopLocker{}, noopGateway{})
	router := NewRouter(RouterConfig{
		Engine:  engine,
		Devices: &memDeviceStore{},
		Env:     "test",
		Version: "test",
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, engine
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createPending(t *testing.T, server *httptest.Server) negotiation.AppointmentRecord {
	t.Helper()
	resp := postJSON(t, server.URL+"/appointments", RequestAppointmentRequest{
		PatientID:     uuid.NewString(),
		ClinicID:      uuid.NewString(),
		RequestedDate: "2025-09-01",
		RequestedTime: "10:00",
		Duration:      30,
		VisitType:     "cleaning",
		Reason:        "routine",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[negotiation.AppointmentRecord](t, resp)
}

func TestRequestAppointmentEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	record := createPending(t, server)
	assert.Equal(t, negotiation.StatusPending, record.Status)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, negotiation.VisitCleaning, record.OriginalRequest.VisitType)
}

func TestRequestAppointmentBadInput(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/appointments", RequestAppointmentRequest{
		PatientID:     "not-a-uuid",
		ClinicID:      uuid.NewString(),
		RequestedDate: "2025-09-01",
		RequestedTime: "10:00",
		Duration:      30,
		VisitType:     "cleaning",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_patient_id", body.Error)

	resp = postJSON(t, server.URL+"/appointments", RequestAppointmentRequest{
		PatientID:     uuid.NewString(),
		ClinicID:      uuid.NewString(),
		RequestedDate: "2025-09-01",
		RequestedTime: "10:00",
		Duration:      0,
		VisitType:     "cleaning",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "validation_error", body.Error)
}

func TestClinicResponseEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	url := fmt.Sprintf("%s/appointments/%s/clinic-response", server.URL, record.ID)
	resp := postJSON(t, url, ClinicResponseRequest{
		ResponseType: "confirmation",
		Message:      "Confirmed",
		RespondedBy:  record.ClinicID.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[negotiation.AppointmentRecord](t, resp)
	assert.Equal(t, negotiation.StatusConfirmed, updated.Status)
	require.NotNil(t, updated.ConfirmedDetails)

	// Responding again must be refused as an invalid transition.
	resp = postJSON(t, url, ClinicResponseRequest{
		ResponseType: "confirmation",
		RespondedBy:  record.ClinicID.String(),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_transition", body.Error)
}

func TestPatientResponseEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	proposed := record.OriginalRequest.RequestedDate.AddDate(0, 0, 1)
	resp := postJSON(t, fmt.Sprintf("%s/appointments/%s/clinic-response", server.URL, record.ID), ClinicResponseRequest{
		ResponseType:     "counter-offer",
		ProposedDate:     &proposed,
		ProposedTime:     "14:00",
		ProposedDuration: 45,
		RespondedBy:      record.ClinicID.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/appointments/%s/patient-response", server.URL, record.ID), PatientResponseRequest{
		ResponseType: "accept",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[negotiation.AppointmentRecord](t, resp)
	assert.Equal(t, negotiation.StatusConfirmed, updated.Status)
	require.NotNil(t, updated.ConfirmedDetails)
	assert.Equal(t, "14:00", updated.ConfirmedDetails.FinalTime)
	assert.Equal(t, negotiation.ActorPatient, updated.ConfirmedDetails.ConfirmedBy)
}

func TestCancelEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/appointments/%s/cancel", server.URL, record.ID), CancelRequest{
		Actor:  "patient",
		Reason: "changed my mind",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[negotiation.AppointmentRecord](t, resp)
	assert.Equal(t, negotiation.StatusCancelled, updated.Status)
	require.Len(t, updated.Messages, 1)
	assert.Equal(t, "changed my mind", updated.Messages[0].Body)
}

func TestActionsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/appointments/%s/actions?actor=clinic", server.URL, record.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[ActionsResponse](t, resp)
	assert.ElementsMatch(t, []string{"confirmed", "counter-offered", "rejected", "cancelled"}, body.Actions)

	resp, err = http.Get(fmt.Sprintf("%s/appointments/%s/actions?actor=gardener", server.URL, record.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetUnknownAppointment(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/appointments/%s", server.URL, uuid.NewString()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "appointment_not_found", body.Error)

	resp, err = http.Get(server.URL + "/appointments/not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListByPatientEndpoint(t *testing.T) {
	server, engine := newTestServer(t)
	record := createPending(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/patients/%s/appointments", server.URL, record.PatientID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decodeBody[[]negotiation.AppointmentRecord](t, resp)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)

	// And an empty list for a stranger, not a null.
	resp, err = http.Get(fmt.Sprintf("%s/patients/%s/appointments", server.URL, uuid.NewString()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records = decodeBody[[]negotiation.AppointmentRecord](t, resp)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = engine.Get(context.Background(), record.ID)
	assert.NoError(t, err)
}

func TestMessageEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/appointments/%s/messages", server.URL, record.ID), MessageRequest{
		Sender: "clinic",
		Body:   "please arrive 10 minutes early",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	updated := decodeBody[negotiation.AppointmentRecord](t, resp)
	require.Len(t, updated.Messages, 1)
	assert.Equal(t, negotiation.StatusPending, updated.Status)
}

func TestRegisterDeviceEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/devices", RegisterDeviceRequest{
		OwnerID:   uuid.NewString(),
		OwnerType: "patient",
		Token:     "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/devices", RegisterDeviceRequest{
		OwnerID:   uuid.NewString(),
		OwnerType: "gardener",
		Token:     "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTransitionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	record := createPending(t, server)

	resp := postJSON(t, fmt.Sprintf("%s/appointments/%s/clinic-response", server.URL, record.ID), ClinicResponseRequest{
		ResponseType: "confirmation",
		RespondedBy:  record.ClinicID.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/appointments/%s/transition", server.URL, record.ID), TransitionRequest{
		Status: "in-progress",
		Actor:  "clinic",
		Notes:  "patient arrived",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[negotiation.AppointmentRecord](t, resp)
	assert.Equal(t, negotiation.StatusInProgress, updated.Status)

	// Patients cannot start a visit.
	resp = postJSON(t, fmt.Sprintf("%s/appointments/%s/transition", server.URL, record.ID), TransitionRequest{
		Status: "completed",
		Actor:  "patient",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_transition", body.Error)
}
