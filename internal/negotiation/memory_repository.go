package negotiation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps records in a map with the same version
// compare-and-set semantics as the Postgres implementation. Used in tests
// and local development.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*AppointmentRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]*AppointmentRecord)}
}

func cloneRecord(r *AppointmentRecord) *AppointmentRecord {
	c := *r
	c.ClinicResponses = append([]ClinicResponseEntry(nil), r.ClinicResponses...)
	c.PatientResponses = append([]PatientResponseEntry(nil), r.PatientResponses...)
	c.Messages = append([]Message(nil), r.Messages...)
	c.StatusChanges = append([]StatusChange(nil), r.StatusChanges...)
	if r.ConfirmedDetails != nil {
		d := *r.ConfirmedDetails
		c.ConfirmedDetails = &d
	}
	return &c
}

func (m *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*AppointmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneRecord(r), nil
}

func (m *MemoryRepository) FindByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AppointmentRecord
	for _, r := range m.records {
		if r.PatientID == patientID {
			out = append(out, *cloneRecord(r))
		}
	}
	return out, nil
}

func (m *MemoryRepository) FindByClinic(ctx context.Context, clinicID uuid.UUID) ([]AppointmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AppointmentRecord
	for _, r := range m.records {
		if r.ClinicID == clinicID {
			out = append(out, *cloneRecord(r))
		}
	}
	return out, nil
}

func (m *MemoryRepository) Save(ctx context.Context, record *AppointmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.records[record.ID]
	if record.Version == 0 {
		if exists {
			return errors.New("duplicate appointment id")
		}
		record.Version = 1
		m.records[record.ID] = cloneRecord(record)
		return nil
	}
	if !exists || stored.Version != record.Version {
		return ErrConflict
	}
	record.Version++
	m.records[record.ID] = cloneRecord(record)
	return nil
}
