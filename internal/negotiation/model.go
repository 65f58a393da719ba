package negotiation

import (
	"time"

	"github.com/google/uuid"
)

// VisitType classifies the requested visit.
type VisitType string

const (
	VisitConsultation VisitType = "consultation"
	VisitCleaning     VisitType = "cleaning"
	VisitProcedure    VisitType = "procedure"
	VisitEmergency    VisitType = "emergency"
	VisitFollowUp     VisitType = "follow-up"
)

var visitTypes = []VisitType{
	VisitConsultation,
	VisitCleaning,
	VisitProcedure,
	VisitEmergency,
	VisitFollowUp,
}

// ValidVisitType reports membership in the closed visit type set.
func ValidVisitType(v VisitType) bool {
	for _, known := range visitTypes {
		if v == known {
			return true
		}
	}
	return false
}

// ClinicResponseType is what the clinic did with a request.
type ClinicResponseType string

const (
	ClinicResponseCounterOffer ClinicResponseType = "counter-offer"
	ClinicResponseConfirmation ClinicResponseType = "confirmation"
	ClinicResponseRejection    ClinicResponseType = "rejection"
)

// PatientResponseType is the patient's reply to a clinic counter-offer.
type PatientResponseType string

const (
	PatientResponseAccept  PatientResponseType = "accept"
	PatientResponseReject  PatientResponseType = "reject"
	PatientResponseCounter PatientResponseType = "counter"
)

// OriginalRequest captures the patient's initial ask. It is written once at
// record creation and never changed afterwards.
type OriginalRequest struct {
	RequestedDate time.Time `json:"requested_date"`
	RequestedTime string    `json:"requested_time"`
	Duration      int       `json:"duration_minutes"`
	VisitType     VisitType `json:"visit_type"`
	Reason        string    `json:"reason,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

// ClinicResponseEntry is one clinic action in the negotiation. Proposed
// fields are set only for counter-offers.
type ClinicResponseEntry struct {
	ResponseType     ClinicResponseType `json:"response_type"`
	ProposedDate     *time.Time         `json:"proposed_date,omitempty"`
	ProposedTime     string             `json:"proposed_time,omitempty"`
	ProposedDuration int                `json:"proposed_duration,omitempty"`
	Message          string             `json:"message,omitempty"`
	RespondedAt      time.Time          `json:"responded_at"`
	RespondedBy      uuid.UUID          `json:"responded_by"`
}

// PatientResponseEntry is one patient reply to a counter-offer.
type PatientResponseEntry struct {
	ResponseType PatientResponseType `json:"response_type"`
	Message      string              `json:"message,omitempty"`
	RespondedAt  time.Time           `json:"responded_at"`
}

// ConfirmedDetails is the single current-truth slot for the agreed visit.
// A reconfirmation after rescheduling overwrites it; it is never cleared
// once set.
type ConfirmedDetails struct {
	FinalDate     time.Time `json:"final_date"`
	FinalTime     string    `json:"final_time"`
	FinalDuration int       `json:"final_duration"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
	ConfirmedBy   Actor     `json:"confirmed_by"`
}

// Message is the free-form side channel between the parties. It has no
// effect on the status machine.
type Message struct {
	Sender   Actor      `json:"sender"`
	SenderID uuid.UUID  `json:"sender_id"`
	Body     string     `json:"body"`
	SentAt   time.Time  `json:"sent_at"`
	ReadAt   *time.Time `json:"read_at,omitempty"`
}

// StatusChange is one audit entry, appended on every status transition.
type StatusChange struct {
	From      AppointmentStatus `json:"from"`
	To        AppointmentStatus `json:"to"`
	UpdatedBy Actor             `json:"updated_by"`
	Notes     string            `json:"notes,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

// AppointmentRecord is one negotiation thread between one patient and one
// clinic for one requested visit. All mutation goes through the Engine;
// histories only grow and are never rewritten after append.
type AppointmentRecord struct {
	ID               uuid.UUID              `json:"id"`
	PatientID        uuid.UUID              `json:"patient_id"`
	ClinicID         uuid.UUID              `json:"clinic_id"`
	Status           AppointmentStatus      `json:"status"`
	OriginalRequest  OriginalRequest        `json:"original_request"`
	ClinicResponses  []ClinicResponseEntry  `json:"clinic_responses"`
	PatientResponses []PatientResponseEntry `json:"patient_responses"`
	ConfirmedDetails *ConfirmedDetails      `json:"confirmed_details,omitempty"`
	Messages         []Message              `json:"messages"`
	StatusChanges    []StatusChange         `json:"status_changes"`
	CreatedAt        time.Time              `json:"created_at"`
	LastActivityAt   time.Time              `json:"last_activity_at"`
	UpdatedAt        time.Time              `json:"updated_at"`

	// Version is owned by the repository and used for its compare-and-set
	// save. Zero means the record has never been persisted.
	Version int64 `json:"-"`
}

// latestProposal returns the clinic's most recent counter-offer, if any.
func (r *AppointmentRecord) latestProposal() *ClinicResponseEntry {
	for i := len(r.ClinicResponses) - 1; i >= 0; i-- {
		if r.ClinicResponses[i].ResponseType == ClinicResponseCounterOffer {
			return &r.ClinicResponses[i]
		}
	}
	return nil
}

// touch stamps the activity clocks after any mutation.
func (r *AppointmentRecord) touch(now time.Time) {
	r.LastActivityAt = now
	r.UpdatedAt = now
}
