package negotiation

// AppointmentStatus is the single status vocabulary shared by the engine,
// the repository and the API layer. Spellings are canonical; no underscored
// variants exist anywhere in the system.
type AppointmentStatus string

const (
	StatusPending        AppointmentStatus = "pending"
	StatusCounterOffered AppointmentStatus = "counter-offered"
	StatusConfirmed      AppointmentStatus = "confirmed"
	StatusRejected       AppointmentStatus = "rejected"
	StatusCancelled      AppointmentStatus = "cancelled"
	StatusCompleted      AppointmentStatus = "completed"
	StatusInProgress     AppointmentStatus = "in-progress"
	StatusNoShow         AppointmentStatus = "no-show"
	StatusRescheduled    AppointmentStatus = "rescheduled"
)

// AllStatuses lists every member of the closed enumeration.
var AllStatuses = []AppointmentStatus{
	StatusPending,
	StatusCounterOffered,
	StatusConfirmed,
	StatusRejected,
	StatusCancelled,
	StatusCompleted,
	StatusInProgress,
	StatusNoShow,
	StatusRescheduled,
}

// Actor identifies who is requesting a transition.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorClinic  Actor = "clinic"
	ActorSystem  Actor = "system"
)

// TransitionRule is one legal (from, to, actor) triple plus its side-effect
// flags. Notify means the counterparty must be told about the change.
// Confirm means the caller must obtain explicit user confirmation before
// invoking the transition; the engine only exposes the flag, it never prompts.
type TransitionRule struct {
	From    AppointmentStatus
	To      AppointmentStatus
	Actors  []Actor
	Notify  bool
	Confirm bool
}

// transitionTable is the one source of truth for negotiation legality.
// pending is the only initial status and never appears as a destination.
// rejected, cancelled, completed and no-show are terminal.
var transitionTable = []TransitionRule{
	{From: StatusPending, To: StatusConfirmed, Actors: []Actor{ActorClinic}, Notify: true},
	{From: StatusPending, To: StatusCounterOffered, Actors: []Actor{ActorClinic}, Notify: true},
	{From: StatusPending, To: StatusRejected, Actors: []Actor{ActorClinic}, Notify: true},
	{From: StatusPending, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorClinic}, Notify: true},

	{From: StatusCounterOffered, To: StatusConfirmed, Actors: []Actor{ActorPatient}, Notify: true},
	{From: StatusCounterOffered, To: StatusRejected, Actors: []Actor{ActorPatient}, Notify: true},
	{From: StatusCounterOffered, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorClinic}, Notify: true},

	{From: StatusConfirmed, To: StatusInProgress, Actors: []Actor{ActorClinic}},
	{From: StatusConfirmed, To: StatusRescheduled, Actors: []Actor{ActorPatient, ActorClinic}, Notify: true},
	{From: StatusConfirmed, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorClinic}, Notify: true, Confirm: true},
	{From: StatusConfirmed, To: StatusNoShow, Actors: []Actor{ActorClinic}},

	{From: StatusInProgress, To: StatusCompleted, Actors: []Actor{ActorClinic}},
	{From: StatusInProgress, To: StatusCancelled, Actors: []Actor{ActorClinic}, Notify: true},

	{From: StatusRescheduled, To: StatusConfirmed, Actors: []Actor{ActorClinic}, Notify: true},
	{From: StatusRescheduled, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorClinic}, Notify: true},
}

func (r TransitionRule) allows(actor Actor) bool {
	for _, a := range r.Actors {
		if a == actor {
			return true
		}
	}
	return false
}

// ValidTransitions returns every status the given actor may move an
// appointment to from the current status. Empty for terminal statuses.
func ValidTransitions(from AppointmentStatus, actor Actor) []AppointmentStatus {
	var out []AppointmentStatus
	for _, r := range transitionTable {
		if r.From == from && r.allows(actor) {
			out = append(out, r.To)
		}
	}
	return out
}

// IsLegal reports whether the exact (from, to, actor) triple is in the table.
func IsLegal(from, to AppointmentStatus, actor Actor) bool {
	_, ok := RuleFor(from, to, actor)
	return ok
}

// RuleFor returns the matching rule so callers can inspect the Notify and
// Confirm flags. The second result is false when no rule matches.
func RuleFor(from, to AppointmentStatus, actor Actor) (TransitionRule, bool) {
	for _, r := range transitionTable {
		if r.From == from && r.To == to && r.allows(actor) {
			return r, true
		}
	}
	return TransitionRule{}, false
}

// ValidStatus reports membership in the closed enumeration.
func ValidStatus(s AppointmentStatus) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}
