package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

// fakeSleeper records requested backoff waits without sleeping.
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	return nil
}

func (f *fakeSleeper) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

func newTestClient(baseURL string, maxAttempts int) (*Client, *fakeSleeper) {
	c := NewClient(Options{
		BaseURL:        baseURL,
		APIKey:         "secret-key",
		RateLimitRPS:   1000, // rate limiting tested separately
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Second,
	})
	fs := &fakeSleeper{}
	c.sleep = fs.sleep
	return c, fs
}

func product(sku string) model.Product {
	return model.Product{SKU: sku, Price: 12.10, Stock: 3, Color: "N/A"}
}

func TestSendCreateUsesPOST(t *testing.T) {
	var gotMethod, gotPath, gotKey, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 3)
	require.NoError(t, c.Send(context.Background(), product("A"), true))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/products/", gotPath)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotCT)
}

func TestSendUpdateUsesPATCH(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 3)
	require.NoError(t, c.Send(context.Background(), product("A"), false))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/products/A/", gotPath)
}

func TestSend429HonorsRetryAfterExactly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, fs := newTestClient(srv.URL, 3)
	require.NoError(t, c.Send(context.Background(), product("A"), true))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, fs.recorded())
}

func TestSend429WithoutHeaderFollowsBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, fs := newTestClient(srv.URL, 3)
	err := c.Send(context.Background(), product("A"), true)
	require.Error(t, err)

	de, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, de.Exhausted)
	assert.Equal(t, 3, de.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, de.Status)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fs.recorded())
}

func TestSend5xxRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, fs := newTestClient(srv.URL, 3)
	err := c.Send(context.Background(), product("A"), true)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, de.Exhausted)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fs.recorded())
}

func TestSend5xxRecoversMidway(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 3)
	require.NoError(t, c.Send(context.Background(), product("A"), true))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendNonRetryable4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, fs := newTestClient(srv.URL, 3)
	err := c.Send(context.Background(), product("A"), true)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.False(t, de.Exhausted)
	assert.Equal(t, http.StatusUnprocessableEntity, de.Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, fs.recorded())
}

func TestSendTransportErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every attempt now fails to connect

	c, fs := newTestClient(srv.URL, 3)
	err := c.Send(context.Background(), product("A"), true)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, de.Exhausted)
	assert.Equal(t, 0, de.Status)
	assert.Equal(t, 3, de.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fs.recorded())
}

func TestSendRateLimitThrottlesAggregateRate(t *testing.T) {
	if testing.Short() {
		t.Skip("wall-clock test")
	}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:      srv.URL,
		RateLimitRPS: 5,
		MaxAttempts:  1,
	})

	const n = 11 // burst of 5 admitted immediately, 6 more at 5/s
	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Send(context.Background(), product("A"), false)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i, err := range errs {
		require.NoError(t, err, "send %d", i)
	}
	assert.Equal(t, int32(n), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 1100*time.Millisecond, "11 sends at 5 rps with burst 5 need ~1.2s")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestSendConcurrentUseIsSafe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL, 3)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Send(context.Background(), product("A"), i%2 == 0))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), calls.Load())
}

func TestSendContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:        srv.URL,
		RateLimitRPS:   1000,
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Send(ctx, product("A"), true)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "backoff must respect cancellation")
}
