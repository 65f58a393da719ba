package api

import (
	"time"
)

type RequestAppointmentRequest struct {
	PatientID     string `json:"patient_id"`
	ClinicID      string `json:"clinic_id"`
	RequestedDate string `json:"requested_date"` // YYYY-MM-DD
	RequestedTime string `json:"requested_time"` // HH:MM
	Duration      int    `json:"duration_minutes"`
	VisitType     string `json:"visit_type"`
	Reason        string `json:"reason,omitempty"`
}

type ClinicResponseRequest struct {
	ResponseType     string     `json:"response_type"`
	ProposedDate     *time.Time `json:"proposed_date,omitempty"`
	ProposedTime     string     `json:"proposed_time,omitempty"`
	ProposedDuration int        `json:"proposed_duration,omitempty"`
	Message          string     `json:"message,omitempty"`
	RespondedBy      string     `json:"responded_by"`
}

type PatientResponseRequest struct {
	ResponseType string `json:"response_type"`
	Message      string `json:"message,omitempty"`
}

type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Notes  string `json:"notes,omitempty"`
}

type MessageRequest struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

type RegisterDeviceRequest struct {
	OwnerID    string `json:"owner_id"`
	OwnerType  string `json:"owner_type"`
	Token      string `json:"token"`
	DeviceName string `json:"device_name,omitempty"`
}

type ActionsResponse struct {
	Actions []string `json:"actions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
