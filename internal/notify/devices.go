package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
)

// DeviceStore keeps push tokens per party so the gateway can fan a status
// change out to every device the recipient registered.
type DeviceStore interface {
	Register(ctx context.Context, ownerID uuid.UUID, owner negotiation.Actor, token, deviceName string) error
	TokensFor(ctx context.Context, ownerID uuid.UUID) ([]string, error)
	Remove(ctx context.Context, token string) error
}

type PgDeviceStore struct {
	pool *pgxpool.Pool
}

func NewPgDeviceStore(pool *pgxpool.Pool) *PgDeviceStore {
	return &PgDeviceStore{pool: pool}
}

func (s *PgDeviceStore) Register(ctx context.Context, ownerID uuid.UUID, owner negotiation.Actor, token, deviceName string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO device_tokens (owner_id, owner_type, token, device_name, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (token) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
		    owner_type = EXCLUDED.owner_type,
		    device_name = EXCLUDED.device_name
	`, ownerID, owner, token, deviceName)
	if err != nil {
		return fmt.Errorf("register device token: %w", err)
	}
	return nil
}

func (s *PgDeviceStore) TokensFor(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token
		FROM device_tokens
		WHERE owner_id = $1
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *PgDeviceStore) Remove(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM device_tokens
		WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("remove device token: %w", err)
	}
	return nil
}
