package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAppointmentLocker(client, 5*time.Second), mr, client
}

func TestWithAppointmentLockRunsCriticalSection(t *testing.T) {
	locker, mr, _ := newTestLocker(t)
	id := uuid.New()

	ran := false
	err := locker.WithAppointmentLock(context.Background(), id, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:appointment:"+id.String()), "lock key must be held inside the critical section")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	assert.False(t, mr.Exists("lock:appointment:"+id.String()), "lock key must be released afterwards")
}

func TestWithAppointmentLockContention(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	id := uuid.New()

	err := locker.WithAppointmentLock(context.Background(), id, func(ctx context.Context) error {
		// A second caller inside the critical section must bounce off.
		innerErr := locker.WithAppointmentLock(ctx, id, func(ctx context.Context) error {
			t.Fatal("second holder must never run")
			return nil
		})
		assert.ErrorIs(t, innerErr, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestLocksAreScopedPerAppointment(t *testing.T) {
	locker, _, _ := newTestLocker(t)

	err := locker.WithAppointmentLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return locker.WithAppointmentLock(ctx, uuid.New(), func(ctx context.Context) error {
			return nil
		})
	})
	require.NoError(t, err, "locks on different appointments must not contend")
}

func TestReleaseOnlyRemovesOwnToken(t *testing.T) {
	locker, mr, _ := newTestLocker(t)
	id := uuid.New()
	key := "lock:appointment:" + id.String()

	err := locker.WithAppointmentLock(context.Background(), id, func(ctx context.Context) error {
		// Simulate expiry plus takeover by another holder.
		require.NoError(t, mr.Set(key, "someone-else"))
		return nil
	})
	require.NoError(t, err)

	val, getErr := mr.Get(key)
	require.NoError(t, getErr)
	assert.Equal(t, "someone-else", val, "a lock owned by another holder must survive our release")
}

func TestCriticalSectionErrorPropagates(t *testing.T) {
	locker, mr, _ := newTestLocker(t)
	id := uuid.New()

	sentinel := assert.AnError
	err := locker.WithAppointmentLock(context.Background(), id, func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.False(t, mr.Exists("lock:appointment:"+id.String()), "lock is released even when the critical section fails")
}
