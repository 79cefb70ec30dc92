package dispatch

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryScheduleBudget(t *testing.T) {
	s := newRetrySchedule(time.Second, 3)
	assert.True(t, s.begin())
	assert.True(t, s.begin())
	assert.True(t, s.begin())
	assert.True(t, s.exhausted())
	assert.False(t, s.begin())
}

func TestRetryScheduleBackoffDoubles(t *testing.T) {
	s := newRetrySchedule(time.Second, 5)
	assert.Equal(t, time.Second, s.backoff(0, false))
	assert.Equal(t, 2*time.Second, s.backoff(0, false))
	assert.Equal(t, 4*time.Second, s.backoff(0, false))
}

func TestRetryScheduleRetryAfterOverrides(t *testing.T) {
	s := newRetrySchedule(time.Second, 5)
	assert.Equal(t, 7*time.Second, s.backoff(7*time.Second, true))
	// The exponential schedule kept advancing underneath the override.
	assert.Equal(t, 2*time.Second, s.backoff(0, false))
}

func TestRetryScheduleDefaults(t *testing.T) {
	s := newRetrySchedule(0, 0)
	assert.Equal(t, 1, s.maxAttempts)
	assert.Equal(t, time.Second, s.delay)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "2")
	d, ok := parseRetryAfter(h, time.Now())
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	h.Set("Retry-After", "0.5")
	d, ok = parseRetryAfter(h, time.Now())
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Set("Retry-After", now.Add(3*time.Second).Format(http.TimeFormat))
	d, ok := parseRetryAfter(h, now)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	// A date in the past clamps to zero rather than producing a negative wait.
	h.Set("Retry-After", now.Add(-time.Minute).Format(http.TimeFormat))
	d, ok = parseRetryAfter(h, now)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestParseRetryAfterInvalid(t *testing.T) {
	h := http.Header{}
	_, ok := parseRetryAfter(h, time.Now())
	assert.False(t, ok)

	h.Set("Retry-After", "soon")
	_, ok = parseRetryAfter(h, time.Now())
	assert.False(t, ok)

	h.Set("Retry-After", "-3")
	_, ok = parseRetryAfter(h, time.Now())
	assert.False(t, ok)
}
