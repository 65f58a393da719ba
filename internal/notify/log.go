package notify

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
)

// LogGateway writes notifications to the process log. Used in dev and as
// the fallback when no push driver is configured.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Notify(ctx context.Context, recipient negotiation.Actor, recipientID, appointmentID uuid.UUID, newStatus negotiation.AppointmentStatus, payload map[string]string) error {
	log.Printf(
		"notification recipient=%s recipient_id=%s appointment_id=%s status=%s",
		recipient, recipientID, appointmentID, newStatus,
	)
	return nil
}
