// Package dispatch sends changed products to the remote catalog API under a
// process-wide rate ceiling with bounded retries.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
	"github.com/fairyhunter13/catalog-delta-sync/internal/obs"
)

const apiKeyHeader = "X-Api-Key"

// Options configures a Client.
type Options struct {
	BaseURL        string
	APIKey         string
	RateLimitRPS   int           // token bucket rate and capacity, default 5
	MaxAttempts    int           // total attempts per request, default 3
	InitialBackoff time.Duration // first backoff delay, default 1s
	HTTPTimeout    time.Duration // per-attempt timeout, default 10s
}

// Client pushes products to the remote catalog API. It is safe for
// concurrent use: the token bucket is the only shared mutable state and is
// the sole admission control — callers block on it, requests are never
// dropped.
type Client struct {
	base           string
	apiKey         string
	httpc          *http.Client
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration

	// sleep is swapped out by tests to observe backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
	// now feeds Retry-After date parsing.
	now func() time.Time
}

// NewClient builds a Client from opts, filling in defaults.
func NewClient(opts Options) *Client {
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:           strings.TrimRight(opts.BaseURL, "/"),
		apiKey:         opts.APIKey,
		httpc:          &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		maxAttempts:    maxAttempts,
		initialBackoff: backoff,
		sleep:          sleepCtx,
		now:            time.Now,
	}
}

// Send delivers one product: POST /products/ when isNew, PATCH
// /products/{sku}/ otherwise. Transient failures (transport errors, 5xx,
// 429) are retried on the backoff schedule; a 429 Retry-After is honored
// exactly. Any returned error is final — the caller must not retry.
func (c *Client) Send(ctx context.Context, p model.Product, isNew bool) error {
	method := http.MethodPatch
	url := fmt.Sprintf("%s/products/%s/", c.base, p.SKU)
	if isNew {
		method = http.MethodPost
		url = c.base + "/products/"
	}

	body, err := json.Marshal(p)
	if err != nil {
		return &Error{SKU: p.SKU, Method: method, Err: err}
	}

	sched := newRetrySchedule(c.initialBackoff, c.maxAttempts)
	var lastStatus int
	var lastErr error

	for sched.begin() {
		// Each attempt takes its own token; backoff waits below never
		// hold one.
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{SKU: p.SKU, Method: method, Status: lastStatus, Attempts: sched.attempts, Err: err}
		}

		status, retryAfter, hasRetryAfter, attemptErr := c.attempt(ctx, method, url, body)
		if attemptErr == nil && status < 400 {
			return nil
		}
		lastStatus = status
		lastErr = attemptErr

		if status >= 400 && status != http.StatusTooManyRequests && status < 500 {
			return &Error{
				SKU: p.SKU, Method: method, Status: status, Attempts: sched.attempts,
				Err: fmt.Errorf("remote rejected request: %d", status),
			}
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("remote returned %d", status)
		}
		if sched.exhausted() {
			break
		}

		wait := sched.backoff(retryAfter, hasRetryAfter)
		obs.Logger.Warn("dispatch_retry",
			"sku", p.SKU, "status", status, "attempt", sched.attempts,
			"max_attempts", sched.maxAttempts, "wait_ms", wait.Milliseconds(),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return &Error{SKU: p.SKU, Method: method, Status: status, Attempts: sched.attempts, Err: err}
		}
	}

	return &Error{
		SKU: p.SKU, Method: method, Status: lastStatus,
		Attempts: sched.attempts, Exhausted: true, Err: lastErr,
	}
}

// attempt performs a single HTTP exchange. A non-nil error means the
// request never produced a response (transport failure).
func (c *Client) attempt(ctx context.Context, method, url string, body []byte) (status int, retryAfter time.Duration, hasRetryAfter bool, err error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, 0, false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		ra, ok := parseRetryAfter(resp.Header, c.now())
		return resp.StatusCode, ra, ok, nil
	}
	return resp.StatusCode, 0, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
