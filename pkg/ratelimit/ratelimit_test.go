package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestStore_AllowAndCleanup(t *testing.T) {
	s := NewStore(rate.Limit(1), 2, time.Minute)

	assert.True(t, s.Allow("1.2.3.4:/api/cron/sweep"))
	assert.True(t, s.Allow("1.2.3.4:/api/cron/sweep"))
	assert.False(t, s.Allow("1.2.3.4:/api/cron/sweep"), "burst 用完")
	assert.True(t, s.Allow("5.6.7.8:/api/cron/sweep"), "不同 key 互不影响")
	assert.Equal(t, 2, s.Len())

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, s.Len())
}

func TestStore_WaitHonoursContext(t *testing.T) {
	s := NewStore(rate.Every(time.Hour), 1, time.Minute)
	require.NoError(t, s.Wait(context.Background(), "chain:1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Wait(ctx, "chain:1"))
}

type badRequest struct{}

func (badRequest) Error() string   { return "400 bad request" }
func (badRequest) Permanent() bool { return true }

func TestManager_TripsOnTransientFailures(t *testing.T) {
	m := NewManager("test", Rule{TripConsecutiveFailures: 2, Timeout: time.Hour})
	boom := errors.New("503")

	for i := 0; i < 2; i++ {
		_, err := Execute(m, "submit", func() (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)
	}
	_, err := Execute(m, "submit", func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)

	// 其他 method 不受影响
	v, err := Execute(m, "status", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestManager_PermanentErrorsDoNotTrip(t *testing.T) {
	m := NewManager("test", Rule{TripConsecutiveFailures: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := Execute(m, "quote", func() (int, error) { return 0, badRequest{} })
		assert.Equal(t, badRequest{}, err)
	}
	v, err := Execute(m, "quote", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
