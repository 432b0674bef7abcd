package admission

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/config"
	apperrors "paylink/internal/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(time.Minute, 2, clock.Now)

	d := l.Allow("token-a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	clock.Advance(10 * time.Second)
	assert.True(t, l.Allow("token-a").Allowed)

	clock.Advance(5 * time.Second)
	d = l.Allow("token-a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)

	// other keys are independent
	assert.True(t, l.Allow("token-b").Allowed)

	clock.Advance(45 * time.Second)
	d = l.Allow("token-a")
	assert.True(t, d.Allowed, "window resets lazily at its end")
	assert.Equal(t, 1, d.Remaining)
}

func TestRateLimiter_RetryAfterWithinWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(60*time.Second, 1, clock.Now)

	require.True(t, l.Allow("k").Allowed)
	d := l.Allow("k")
	require.False(t, d.Allowed)
	assert.LessOrEqual(t, d.RetryAfter, 60*time.Second)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestRateLimiter_PrunesExpiredWindows(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(time.Second, 1, clock.Now)
	for i := 0; i < pruneThreshold; i++ {
		l.Allow(string(rune(i)) + "key")
	}
	assert.Equal(t, pruneThreshold, l.Len())

	clock.Advance(2 * time.Second)
	l.Allow("fresh")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimiter_NilAllows(t *testing.T) {
	var l *RateLimiter
	assert.True(t, l.Allow("x").Allowed)
}

func TestOverloadShedder_Concurrency(t *testing.T) {
	s := NewOverloadShedder(2, 0, 10, 0, nil)

	done1, err := s.Begin()
	require.NoError(t, err)
	done2, err := s.Begin()
	require.NoError(t, err)

	_, err = s.Begin()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrOverloaded))
	assert.Equal(t, int64(2), s.InFlight())

	done1()
	done1()
	assert.Equal(t, int64(1), s.InFlight(), "done is idempotent")

	done3, err := s.Begin()
	require.NoError(t, err)
	done2()
	done3()
	assert.Equal(t, int64(0), s.InFlight())
}

func TestOverloadShedder_Latency(t *testing.T) {
	clock := newFakeClock()
	s := NewOverloadShedder(0, 100*time.Millisecond, 3, 30*time.Second, clock.Now)

	var finish []func()
	for i := 0; i < 3; i++ {
		done, err := s.Begin()
		require.NoError(t, err)
		finish = append(finish, done)
	}
	clock.Advance(500 * time.Millisecond)
	for _, done := range finish {
		done()
	}
	assert.Equal(t, 500*time.Millisecond, s.AverageLatency())

	_, err := s.Begin()
	assert.True(t, errors.Is(err, apperrors.ErrOverloaded))

	// stale samples age out so shedding is not permanent
	clock.Advance(31 * time.Second)
	assert.Equal(t, time.Duration(0), s.AverageLatency())
	done, err := s.Begin()
	require.NoError(t, err)
	done()
}

func TestOverloadShedder_RingBufferEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	s := NewOverloadShedder(0, 0, 2, 0, clock.Now)

	for _, d := range []time.Duration{time.Second, 10 * time.Millisecond, 30 * time.Millisecond} {
		done, err := s.Begin()
		require.NoError(t, err)
		clock.Advance(d)
		done()
	}
	assert.Equal(t, 20*time.Millisecond, s.AverageLatency())
}

func TestNewState(t *testing.T) {
	s := NewState(config.AdmissionConfig{}, nil)
	assert.Nil(t, s.Limiter)
	assert.Nil(t, s.Shedder)

	s = NewState(config.AdmissionConfig{
		RateLimitEnabled: true,
		RateLimitWindow:  time.Minute,
		RateLimitMax:     1,
		OverloadEnabled:  true,
		MaxConcurrency:   1,
	}, nil)
	require.NotNil(t, s.Limiter)
	require.NotNil(t, s.Shedder)

	// independent instances share nothing
	other := NewState(config.AdmissionConfig{RateLimitEnabled: true, RateLimitWindow: time.Minute, RateLimitMax: 1}, nil)
	assert.True(t, s.Limiter.Allow("k").Allowed)
	assert.True(t, other.Limiter.Allow("k").Allowed)
}
