package negotiation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/dentalhub/clinic-booking/internal/redis"
)

// Engine is the single authority for mutating an AppointmentRecord. Every
// operation is one load-validate-mutate-save sequence guarded by a
// per-appointment lock, with a version compare-and-set in the repository as
// the second line of defence against concurrent writers.
type Engine struct {
	repo     Repository
	locker   redisclient.Locker
	notifier NotificationGateway
	now      func() time.Time
}

func NewEngine(repo Repository, locker redisclient.Locker, notifier NotificationGateway) *Engine {
	return &Engine{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		now:      time.Now,
	}
}

// ClinicResponsePayload carries the clinic's reply. The proposed fields are
// required for counter-offers and ignored otherwise.
type ClinicResponsePayload struct {
	ProposedDate     *time.Time
	ProposedTime     string
	ProposedDuration int
	Message          string
	RespondedBy      uuid.UUID
}

// RequestAppointment opens a new negotiation thread in status pending.
func (e *Engine) RequestAppointment(ctx context.Context, patientID, clinicID uuid.UUID, req OriginalRequest) (*AppointmentRecord, error) {
	if patientID == uuid.Nil {
		return nil, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if clinicID == uuid.Nil {
		return nil, &ValidationError{Field: "clinic_id", Reason: "is required"}
	}
	if req.Duration <= 0 {
		return nil, &ValidationError{Field: "duration_minutes", Reason: "must be greater than zero"}
	}
	if !ValidVisitType(req.VisitType) {
		return nil, &ValidationError{Field: "visit_type", Reason: fmt.Sprintf("unknown visit type %q", req.VisitType)}
	}
	if req.RequestedTime == "" {
		return nil, &ValidationError{Field: "requested_time", Reason: "is required"}
	}

	now := e.now()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = now
	}

	record := &AppointmentRecord{
		ID:              uuid.New(),
		PatientID:       patientID,
		ClinicID:        clinicID,
		Status:          StatusPending,
		OriginalRequest: req,
		CreatedAt:       now,
		LastActivityAt:  now,
		UpdatedAt:       now,
	}

	if err := e.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save appointment: %w", err)
	}
	return record, nil
}

// ApplyClinicResponse moves a record according to the clinic's reply:
// confirmation to confirmed, counter-offer to counter-offered, rejection to
// rejected.
func (e *Engine) ApplyClinicResponse(ctx context.Context, id uuid.UUID, responseType ClinicResponseType, payload ClinicResponsePayload) (*AppointmentRecord, error) {
	var target AppointmentStatus
	switch responseType {
	case ClinicResponseConfirmation:
		target = StatusConfirmed
	case ClinicResponseCounterOffer:
		target = StatusCounterOffered
	case ClinicResponseRejection:
		target = StatusRejected
	default:
		return nil, &ValidationError{Field: "response_type", Reason: fmt.Sprintf("unknown clinic response type %q", responseType)}
	}

	if responseType == ClinicResponseCounterOffer {
		if payload.ProposedDate == nil {
			return nil, &ValidationError{Field: "proposed_date", Reason: "is required for a counter-offer"}
		}
		if payload.ProposedTime == "" {
			return nil, &ValidationError{Field: "proposed_time", Reason: "is required for a counter-offer"}
		}
	}

	return e.mutate(ctx, id, func(record *AppointmentRecord, now time.Time) (TransitionRule, error) {
		rule, ok := RuleFor(record.Status, target, ActorClinic)
		if !ok {
			return TransitionRule{}, &InvalidTransitionError{From: record.Status, To: target, Actor: ActorClinic}
		}

		entry := ClinicResponseEntry{
			ResponseType: responseType,
			Message:      payload.Message,
			RespondedAt:  now,
			RespondedBy:  payload.RespondedBy,
		}
		if responseType == ClinicResponseCounterOffer {
			entry.ProposedDate = payload.ProposedDate
			entry.ProposedTime = payload.ProposedTime
			entry.ProposedDuration = payload.ProposedDuration
		}
		record.ClinicResponses = append(record.ClinicResponses, entry)

		e.applyStatus(record, rule, ActorClinic, payload.Message, now)
		if target == StatusConfirmed {
			e.setConfirmedDetails(record, ActorClinic, now)
		}
		return rule, nil
	})
}

// ApplyPatientResponse handles the patient's reply to a counter-offer.
// Accept confirms on the clinic's latest proposed slot, reject closes the
// negotiation. A counter reply is recorded in history but moves nothing.
func (e *Engine) ApplyPatientResponse(ctx context.Context, id uuid.UUID, responseType PatientResponseType, message string) (*AppointmentRecord, error) {
	var target AppointmentStatus
	switch responseType {
	case PatientResponseAccept:
		target = StatusConfirmed
	case PatientResponseReject:
		target = StatusRejected
	case PatientResponseCounter:
		target = StatusCounterOffered
	default:
		return nil, &ValidationError{Field: "response_type", Reason: fmt.Sprintf("unknown patient response type %q", responseType)}
	}

	return e.mutate(ctx, id, func(record *AppointmentRecord, now time.Time) (TransitionRule, error) {
		if record.Status != StatusCounterOffered {
			return TransitionRule{}, &InvalidTransitionError{From: record.Status, To: target, Actor: ActorPatient}
		}

		record.PatientResponses = append(record.PatientResponses, PatientResponseEntry{
			ResponseType: responseType,
			Message:      message,
			RespondedAt:  now,
		})

		if responseType == PatientResponseCounter {
			// Recorded only; no table rule maps a patient counter to a
			// status, so the record stays in counter-offered.
			record.touch(now)
			return TransitionRule{}, nil
		}

		rule, ok := RuleFor(record.Status, target, ActorPatient)
		if !ok {
			return TransitionRule{}, &InvalidTransitionError{From: record.Status, To: target, Actor: ActorPatient}
		}

		e.applyStatus(record, rule, ActorPatient, message, now)
		if target == StatusConfirmed {
			e.setConfirmedDetails(record, ActorPatient, now)
		}
		return rule, nil
	})
}

// Cancel terminates a negotiation from any cancellable status. From
// confirmed the matching rule carries Confirm=true; obtaining that
// confirmation is the caller's job, the engine performs the cancellation
// regardless.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*AppointmentRecord, error) {
	return e.mutate(ctx, id, func(record *AppointmentRecord, now time.Time) (TransitionRule, error) {
		rule, ok := RuleFor(record.Status, StatusCancelled, actor)
		if !ok {
			return TransitionRule{}, &InvalidTransitionError{From: record.Status, To: StatusCancelled, Actor: actor}
		}

		if reason != "" {
			record.Messages = append(record.Messages, Message{
				Sender:   actor,
				SenderID: record.senderID(actor),
				Body:     reason,
				SentAt:   now,
			})
		}

		e.applyStatus(record, rule, actor, reason, now)
		return rule, nil
	})
}

// Transition is the general entry point for lifecycle moves that do not fit
// the request/response shape: in-progress, completed, no-show, rescheduled.
func (e *Engine) Transition(ctx context.Context, id uuid.UUID, newStatus AppointmentStatus, actor Actor, notes string) (*AppointmentRecord, error) {
	if !ValidStatus(newStatus) {
		return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}

	return e.mutate(ctx, id, func(record *AppointmentRecord, now time.Time) (TransitionRule, error) {
		rule, ok := RuleFor(record.Status, newStatus, actor)
		if !ok {
			return TransitionRule{}, &InvalidTransitionError{From: record.Status, To: newStatus, Actor: actor}
		}

		e.applyStatus(record, rule, actor, notes, now)
		if newStatus == StatusConfirmed {
			e.setConfirmedDetails(record, actor, now)
		}
		return rule, nil
	})
}

// AddMessage appends to the free-form side channel. It never touches the
// status machine.
func (e *Engine) AddMessage(ctx context.Context, id uuid.UUID, sender Actor, body string) (*AppointmentRecord, error) {
	if sender != ActorPatient && sender != ActorClinic {
		return nil, &ValidationError{Field: "sender", Reason: "must be patient or clinic"}
	}
	if body == "" {
		return nil, &ValidationError{Field: "body", Reason: "is required"}
	}

	return e.mutate(ctx, id, func(record *AppointmentRecord, now time.Time) (TransitionRule, error) {
		record.Messages = append(record.Messages, Message{
			Sender:   sender,
			SenderID: record.senderID(sender),
			Body:     body,
			SentAt:   now,
		})
		record.touch(now)
		return TransitionRule{}, nil
	})
}

// ValidActions returns the statuses the actor may move the appointment to
// right now, for presentation layers to offer only legal actions.
func (e *Engine) ValidActions(ctx context.Context, id uuid.UUID, actor Actor) ([]AppointmentStatus, error) {
	record, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ValidTransitions(record.Status, actor), nil
}

// Get fetches one record.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*AppointmentRecord, error) {
	return e.repo.FindByID(ctx, id)
}

// ListByPatient fetches every negotiation a patient is part of.
func (e *Engine) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentRecord, error) {
	return e.repo.FindByPatient(ctx, patientID)
}

// ListByClinic fetches every negotiation a clinic is part of.
func (e *Engine) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]AppointmentRecord, error) {
	return e.repo.FindByClinic(ctx, clinicID)
}

// mutate runs one load-mutate-save sequence under the per-appointment lock
// and dispatches at most one notification once the save has committed.
func (e *Engine) mutate(ctx context.Context, id uuid.UUID, fn func(record *AppointmentRecord, now time.Time) (TransitionRule, error)) (*AppointmentRecord, error) {
	var updated *AppointmentRecord

	err := e.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		record, err := e.repo.FindByID(lockCtx, id)
		if err != nil {
			return err
		}

		rule, err := fn(record, e.now())
		if err != nil {
			return err
		}

		if err := e.repo.Save(lockCtx, record); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}

		updated = record

		if rule.Notify {
			e.dispatch(lockCtx, record, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyStatus performs the already-validated move and appends the audit
// entry.
func (e *Engine) applyStatus(record *AppointmentRecord, rule TransitionRule, actor Actor, notes string, now time.Time) {
	record.StatusChanges = append(record.StatusChanges, StatusChange{
		From:      record.Status,
		To:        rule.To,
		UpdatedBy: actor,
		Notes:     notes,
		ChangedAt: now,
	})
	record.Status = rule.To
	record.touch(now)
}

// setConfirmedDetails fills the current-truth slot from the clinic's latest
// counter-offer, falling back to the original request. Reconfirmation after
// rescheduling overwrites the slot.
func (e *Engine) setConfirmedDetails(record *AppointmentRecord, confirmedBy Actor, now time.Time) {
	details := ConfirmedDetails{
		FinalDate:     record.OriginalRequest.RequestedDate,
		FinalTime:     record.OriginalRequest.RequestedTime,
		FinalDuration: record.OriginalRequest.Duration,
		ConfirmedAt:   now,
		ConfirmedBy:   confirmedBy,
	}
	if proposal := record.latestProposal(); proposal != nil {
		details.FinalDate = *proposal.ProposedDate
		details.FinalTime = proposal.ProposedTime
		if proposal.ProposedDuration > 0 {
			details.FinalDuration = proposal.ProposedDuration
		}
	}
	record.ConfirmedDetails = &details
}

// dispatch notifies the counterparty of the actor who just moved the
// record. Delivery failure must never fail the committed transition.
func (e *Engine) dispatch(ctx context.Context, record *AppointmentRecord, rule TransitionRule) {
	if e.notifier == nil {
		return
	}

	actor := record.StatusChanges[len(record.StatusChanges)-1].UpdatedBy
	recipient := ActorPatient
	recipientID := record.PatientID
	if actor == ActorPatient {
		recipient = ActorClinic
		recipientID = record.ClinicID
	}

	payload := map[string]string{
		"previous_status": string(rule.From),
		"patient_id":      record.PatientID.String(),
		"clinic_id":       record.ClinicID.String(),
	}

	if err := e.notifier.Notify(ctx, recipient, recipientID, record.ID, record.Status, payload); err != nil {
		log.Printf("notify %s about appointment %s -> %s: %v", recipient, record.ID, record.Status, err)
	}
}

// senderID resolves the party id for a message author.
func (r *AppointmentRecord) senderID(actor Actor) uuid.UUID {
	switch actor {
	case ActorPatient:
		return r.PatientID
	case ActorClinic:
		return r.ClinicID
	default:
		return uuid.Nil
	}
}
