package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allActors = []Actor{ActorPatient, ActorClinic, ActorSystem}

func TestTableAndValidTransitionsAgree(t *testing.T) {
	// Exhaustive cross-check: IsLegal and ValidTransitions must be two
	// views of the same table.
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			for _, actor := range allActors {
				legal := IsLegal(from, to, actor)
				listed := false
				for _, s := range ValidTransitions(from, actor) {
					if s == to {
						listed = true
					}
				}
				assert.Equal(t, legal, listed, "from=%s to=%s actor=%s", from, to, actor)
			}
		}
	}
}

func TestPendingIsNeverADestination(t *testing.T) {
	for _, from := range AllStatuses {
		for _, actor := range allActors {
			assert.False(t, IsLegal(from, StatusPending, actor),
				"pending must not be reachable from %s by %s", from, actor)
		}
	}
}

func TestEveryNonInitialStatusIsReachable(t *testing.T) {
	for _, status := range AllStatuses {
		if status == StatusPending {
			continue
		}

		reachable := false
		for _, from := range AllStatuses {
			for _, actor := range allActors {
				if IsLegal(from, status, actor) {
					reachable = true
				}
			}
		}
		assert.True(t, reachable, "status %s has no inbound transition", status)
	}
}

func TestTerminalStatusesHaveNoOutboundTransitions(t *testing.T) {
	terminal := []AppointmentStatus{StatusRejected, StatusCancelled, StatusCompleted, StatusNoShow}

	for _, status := range terminal {
		for _, actor := range allActors {
			assert.Empty(t, ValidTransitions(status, actor),
				"terminal status %s must allow no transitions for %s", status, actor)
		}
	}
}

func TestRuleForFlags(t *testing.T) {
	rule, ok := RuleFor(StatusConfirmed, StatusCancelled, ActorPatient)
	require.True(t, ok)
	assert.True(t, rule.Confirm, "cancelling a confirmed appointment requires explicit confirmation")
	assert.True(t, rule.Notify)

	rule, ok = RuleFor(StatusConfirmed, StatusInProgress, ActorClinic)
	require.True(t, ok)
	assert.False(t, rule.Notify, "starting a visit is not a notification event")
	assert.False(t, rule.Confirm)

	_, ok = RuleFor(StatusConfirmed, StatusCounterOffered, ActorClinic)
	assert.False(t, ok)
}

func TestActorAuthorization(t *testing.T) {
	// Only the clinic answers a pending request; only the patient answers
	// a counter-offer.
	assert.True(t, IsLegal(StatusPending, StatusConfirmed, ActorClinic))
	assert.False(t, IsLegal(StatusPending, StatusConfirmed, ActorPatient))
	assert.True(t, IsLegal(StatusCounterOffered, StatusConfirmed, ActorPatient))
	assert.False(t, IsLegal(StatusCounterOffered, StatusConfirmed, ActorClinic))

	// The system actor holds no rows in the canonical table.
	for _, from := range AllStatuses {
		assert.Empty(t, ValidTransitions(from, ActorSystem))
	}
}
