package dispatch

import (
	"net/http"
	"strconv"
	"time"
)

// retrySchedule tracks the attempt budget and the exponential backoff delay
// for a single request. It is a plain value-type state machine so the policy
// can be tested without a transport or a real clock.
type retrySchedule struct {
	attempts    int
	maxAttempts int
	delay       time.Duration
}

func newRetrySchedule(initial time.Duration, maxAttempts int) retrySchedule {
	if initial <= 0 {
		initial = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return retrySchedule{maxAttempts: maxAttempts, delay: initial}
}

// begin registers an attempt. It reports false once the budget is spent;
// maxAttempts counts total attempts, the first one included.
func (s *retrySchedule) begin() bool {
	if s.attempts >= s.maxAttempts {
		return false
	}
	s.attempts++
	return true
}

// backoff returns the wait before the next attempt after a transient
// failure. A server-provided Retry-After overrides the scheduled delay
// exactly; either way the exponential delay doubles for the attempt after.
func (s *retrySchedule) backoff(retryAfter time.Duration, hasRetryAfter bool) time.Duration {
	wait := s.delay
	if hasRetryAfter {
		wait = retryAfter
	}
	s.delay *= 2
	return wait
}

// exhausted reports whether another begin() would fail.
func (s *retrySchedule) exhausted() bool { return s.attempts >= s.maxAttempts }

// parseRetryAfter reads the Retry-After response header as delay seconds or
// an HTTP date. Absent or unparsable headers fall back to the backoff
// schedule.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
