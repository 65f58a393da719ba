package negotiation

import (
	"context"

	"github.com/google/uuid"
)

// NotificationGateway tells one party about a status change. The engine
// treats delivery as fire-and-forget: an error here is logged and never
// fails the underlying status update.
type NotificationGateway interface {
	Notify(ctx context.Context, recipient Actor, recipientID, appointmentID uuid.UUID, newStatus AppointmentStatus, payload map[string]string) error
}
