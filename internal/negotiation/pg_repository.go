package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository stores appointment records in a single table, with the
// negotiation histories serialized as JSONB. Saves are guarded by a version
// column compare-and-set.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, clinic_id, status,
	original_request, clinic_responses, patient_responses,
	confirmed_details, messages, status_changes,
	created_at, last_activity_at, updated_at, version
`

func scanAppointment(row pgx.Row) (*AppointmentRecord, error) {
	var (
		r                AppointmentRecord
		originalRequest  []byte
		clinicResponses  []byte
		patientResponses []byte
		confirmedDetails []byte
		messages         []byte
		statusChanges    []byte
	)

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.ClinicID,
		&r.Status,
		&originalRequest,
		&clinicResponses,
		&patientResponses,
		&confirmedDetails,
		&messages,
		&statusChanges,
		&r.CreatedAt,
		&r.LastActivityAt,
		&r.UpdatedAt,
		&r.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(originalRequest, &r.OriginalRequest); err != nil {
		return nil, fmt.Errorf("decode original request: %w", err)
	}
	if err := decodeJSON(clinicResponses, &r.ClinicResponses); err != nil {
		return nil, fmt.Errorf("decode clinic responses: %w", err)
	}
	if err := decodeJSON(patientResponses, &r.PatientResponses); err != nil {
		return nil, fmt.Errorf("decode patient responses: %w", err)
	}
	if len(confirmedDetails) > 0 {
		var details ConfirmedDetails
		if err := json.Unmarshal(confirmedDetails, &details); err != nil {
			return nil, fmt.Errorf("decode confirmed details: %w", err)
		}
		r.ConfirmedDetails = &details
	}
	if err := decodeJSON(messages, &r.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := decodeJSON(statusChanges, &r.StatusChanges); err != nil {
		return nil, fmt.Errorf("decode status changes: %w", err)
	}

	return &r, nil
}

func decodeJSON[T any](data []byte, dst *[]T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*AppointmentRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY last_activity_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) FindByClinic(ctx context.Context, clinicID uuid.UUID) ([]AppointmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		ORDER BY last_activity_at DESC
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// FindConfirmedBetween lists confirmed appointments whose agreed date falls
// inside [from, to). Used by the reminder worker; not part of the engine's
// Repository seam.
func (r *PgRepository) FindConfirmedBetween(ctx context.Context, from, to time.Time) ([]AppointmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND final_date >= $1
		  AND final_date < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]AppointmentRecord, error) {
	var result []AppointmentRecord
	for rows.Next() {
		r, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts the record. First save inserts at version 1; later saves are
// compare-and-set updates that fail with ErrConflict when another writer
// bumped the version in between.
func (r *PgRepository) Save(ctx context.Context, record *AppointmentRecord) error {
	originalRequest, err := json.Marshal(record.OriginalRequest)
	if err != nil {
		return fmt.Errorf("encode original request: %w", err)
	}
	clinicResponses, err := json.Marshal(record.ClinicResponses)
	if err != nil {
		return fmt.Errorf("encode clinic responses: %w", err)
	}
	patientResponses, err := json.Marshal(record.PatientResponses)
	if err != nil {
		return fmt.Errorf("encode patient responses: %w", err)
	}
	var confirmedDetails []byte
	var finalDate *time.Time
	if record.ConfirmedDetails != nil {
		confirmedDetails, err = json.Marshal(record.ConfirmedDetails)
		if err != nil {
			return fmt.Errorf("encode confirmed details: %w", err)
		}
		finalDate = &record.ConfirmedDetails.FinalDate
	}
	messages, err := json.Marshal(record.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	statusChanges, err := json.Marshal(record.StatusChanges)
	if err != nil {
		return fmt.Errorf("encode status changes: %w", err)
	}

	if record.Version == 0 {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO appointments (
				id, patient_id, clinic_id, status,
				original_request, clinic_responses, patient_responses,
				confirmed_details, messages, status_changes, final_date,
				created_at, last_activity_at, updated_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
		`,
			record.ID, record.PatientID, record.ClinicID, record.Status,
			originalRequest, clinicResponses, patientResponses,
			confirmedDetails, messages, statusChanges, finalDate,
			record.CreatedAt, record.LastActivityAt, record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		record.Version = 1
		return nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    clinic_responses = $3,
		    patient_responses = $4,
		    confirmed_details = $5,
		    messages = $6,
		    status_changes = $7,
		    final_date = $8,
		    last_activity_at = $9,
		    updated_at = $10,
		    version = version + 1
		WHERE id = $1
		  AND version = $11
	`,
		record.ID, record.Status,
		clinicResponses, patientResponses,
		confirmedDetails, messages, statusChanges, finalDate,
		record.LastActivityAt, record.UpdatedAt,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	record.Version++
	return nil
}
