package negotiation

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists appointment records. Save is an upsert: a record with
// Version zero is inserted, anything else is a compare-and-set update that
// returns ErrConflict when the stored version no longer matches.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AppointmentRecord, error)
	FindByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentRecord, error)
	FindByClinic(ctx context.Context, clinicID uuid.UUID) ([]AppointmentRecord, error)
	Save(ctx context.Context, record *AppointmentRecord) error
}
