package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
)

// ExpoGateway delivers status-change notifications as Expo push messages to
// every device the recipient registered.
type ExpoGateway struct {
	client  *expo.PushClient
	devices DeviceStore
}

func NewExpoGateway(devices DeviceStore) *ExpoGateway {
	return &ExpoGateway{
		client:  expo.NewPushClient(nil),
		devices: devices,
	}
}

func (g *ExpoGateway) Notify(ctx context.Context, recipient negotiation.Actor, recipientID, appointmentID uuid.UUID, newStatus negotiation.AppointmentStatus, payload map[string]string) error {
	tokenStrings, err := g.devices.TokensFor(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokenStrings) == 0 {
		return nil
	}

	var validTokens []expo.ExponentPushToken
	var invalidTokens []string
	for _, raw := range tokenStrings {
		token, err := expo.NewExponentPushToken(raw)
		if err != nil {
			invalidTokens = append(invalidTokens, raw)
			continue
		}
		validTokens = append(validTokens, token)
	}
	defer g.cleanup(ctx, invalidTokens)

	if len(validTokens) == 0 {
		return fmt.Errorf("no valid push tokens for %s %s", recipient, recipientID)
	}

	data := map[string]string{
		"appointment_id": appointmentID.String(),
		"status":         string(newStatus),
	}
	for k, v := range payload {
		data[k] = v
	}

	message := &expo.PushMessage{
		To:       validTokens,
		Title:    "Appointment update",
		Body:     statusBody(newStatus, recipient),
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	}

	response, err := g.client.Publish(message)
	if err != nil {
		return fmt.Errorf("publish push notification: %w", err)
	}
	if err := response.ValidateResponse(); err != nil {
		return fmt.Errorf("push notification rejected: %w", err)
	}
	return nil
}

func (g *ExpoGateway) cleanup(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		if err := g.devices.Remove(ctx, token); err != nil {
			log.Printf("remove invalid device token: %v", err)
		}
	}
}

func statusBody(status negotiation.AppointmentStatus, recipient negotiation.Actor) string {
	switch status {
	case negotiation.StatusConfirmed:
		return "Your appointment has been confirmed."
	case negotiation.StatusCounterOffered:
		return "The clinic proposed a different time for your appointment."
	case negotiation.StatusRejected:
		if recipient == negotiation.ActorClinic {
			return "The patient declined the proposed time."
		}
		return "The clinic could not accept your appointment request."
	case negotiation.StatusCancelled:
		return "The appointment has been cancelled."
	case negotiation.StatusRescheduled:
		return "The appointment needs to be rescheduled."
	default:
		return fmt.Sprintf("Appointment status changed to %s.", status)
	}
}
