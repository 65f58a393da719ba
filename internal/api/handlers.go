package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
	"github.com/dentalhub/clinic-booking/internal/notify"
	redisclient "github.com/dentalhub/clinic-booking/internal/redis"
)

func requestAppointmentHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		requestedDate, err := time.Parse("2006-01-02", req.RequestedDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_requested_date", "requested_date must be YYYY-MM-DD")
			return
		}

		record, err := engine.RequestAppointment(r.Context(), patientID, clinicID, negotiation.OriginalRequest{
			RequestedDate: requestedDate,
			RequestedTime: req.RequestedTime,
			Duration:      req.Duration,
			VisitType:     negotiation.VisitType(req.VisitType),
			Reason:        req.Reason,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, record)
	}
}

func getAppointmentHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		record, err := engine.Get(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func listByPatientHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		records, err := engine.ListByPatient(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		if records == nil {
			records = []negotiation.AppointmentRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func listByClinicHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		records, err := engine.ListByClinic(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		if records == nil {
			records = []negotiation.AppointmentRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func clinicResponseHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req ClinicResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		respondedBy, err := uuid.Parse(req.RespondedBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_responded_by", "responded_by must be a valid UUID")
			return
		}

		record, err := engine.ApplyClinicResponse(r.Context(), id, negotiation.ClinicResponseType(req.ResponseType), negotiation.ClinicResponsePayload{
			ProposedDate:     req.ProposedDate,
			ProposedTime:     req.ProposedTime,
			ProposedDuration: req.ProposedDuration,
			Message:          req.Message,
			RespondedBy:      respondedBy,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func patientResponseHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req PatientResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		record, err := engine.ApplyPatientResponse(r.Context(), id, negotiation.PatientResponseType(req.ResponseType), req.Message)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func cancelHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		record, err := engine.Cancel(r.Context(), id, negotiation.Actor(req.Actor), req.Reason)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func transitionHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		record, err := engine.Transition(r.Context(), id, negotiation.AppointmentStatus(req.Status), negotiation.Actor(req.Actor), req.Notes)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func actionsHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		actor := negotiation.Actor(r.URL.Query().Get("actor"))
		if actor != negotiation.ActorPatient && actor != negotiation.ActorClinic && actor != negotiation.ActorSystem {
			writeError(w, http.StatusBadRequest, "invalid_actor", "actor must be patient, clinic or system")
			return
		}

		actions, err := engine.ValidActions(r.Context(), id, actor)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		resp := ActionsResponse{Actions: []string{}}
		for _, a := range actions {
			resp.Actions = append(resp.Actions, string(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func addMessageHandler(engine *negotiation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		record, err := engine.AddMessage(r.Context(), id, negotiation.Actor(req.Sender), req.Body)
		if err != nil {
			handleEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

func registerDeviceHandler(devices notify.DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be a valid UUID")
			return
		}
		owner := negotiation.Actor(req.OwnerType)
		if owner != negotiation.ActorPatient && owner != negotiation.ActorClinic {
			writeError(w, http.StatusBadRequest, "invalid_owner_type", "owner_type must be patient or clinic")
			return
		}
		if req.Token == "" {
			writeError(w, http.StatusBadRequest, "invalid_token", "token is required")
			return
		}

		if err := devices.Register(r.Context(), ownerID, owner, req.Token, req.DeviceName); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// handleEngineError maps the negotiation error taxonomy onto HTTP codes.
// Invalid transitions and save conflicts are both 409, with distinct codes
// so clients know whether a retry can help.
func handleEngineError(w http.ResponseWriter, err error) {
	var validationErr *negotiation.ValidationError
	var transitionErr *negotiation.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, negotiation.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_transition", transitionErr.Error())
	case errors.Is(err, negotiation.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "appointment was modified concurrently, reload and retry")
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "appointment_busy", "appointment is being updated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
