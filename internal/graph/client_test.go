package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// testLogger discards all output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient creates a Client pointed at a test server with a static
// token and no real sleeping between retries.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, server.Client(), StaticTokenSource("test-token"), testLogger())
	client.sleepFunc = noopSleep

	return client
}

// refreshableToken counts Invalidate calls and changes its token after
// each one.
type refreshableToken struct {
	token       string
	invalidates int
}

func (r *refreshableToken) Token() (string, error) { return r.token, nil }

func (r *refreshableToken) Invalidate() {
	r.invalidates++
	r.token = "refreshed-token"
}

func TestDoSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.WriteHeader(http.StatusOK)
	})

	resp, err := client.Do(context.Background(), http.MethodGet, "/me", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoRetriesThrottling(t *testing.T) {
	var calls int

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	resp, err := client.Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 3, calls)
}

func TestDoHonorsRetryAfter(t *testing.T) {
	var slept []time.Duration

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), StaticTokenSource("tok"), testLogger())
	client.sleepFunc = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	resp, err := client.Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, slept, 1)
	assert.Equal(t, 7*time.Second, slept[0])
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var calls int

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, maxRetries+1, calls)
}

func TestDoRefreshesTokenOnceOn401(t *testing.T) {
	tokens := &refreshableToken{token: "stale-token"}

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "Bearer stale-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), tokens, testLogger())
	client.sleepFunc = noopSleep

	resp, err := client.Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 1, tokens.invalidates)
	assert.Equal(t, 2, calls)
}

func TestDoSecond401IsAnError(t *testing.T) {
	tokens := &refreshableToken{token: "bad-token"}

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), tokens, testLogger())
	client.sleepFunc = noopSleep

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, tokens.invalidates)
	assert.Equal(t, 2, calls)
}

func TestDoResendsBodyAfter401(t *testing.T) {
	tokens := &refreshableToken{token: "stale-token"}
	payload := `{"name":"Archive","folder":{},"@microsoft.graph.conflictBehavior":"rename"}`

	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))

		if r.Header.Get("Authorization") == "Bearer stale-token" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), tokens, testLogger())
	client.sleepFunc = noopSleep

	resp, err := client.Do(context.Background(), http.MethodPost, "/x", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1])
}

func TestDoResendsBodyOnRetry(t *testing.T) {
	payload := `{"parentReference":{"id":"target1"}}`

	var bodies []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))

		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	resp, err := client.Do(context.Background(), http.MethodPatch, "/x", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1])
}

func TestDoBuffersOneShotBody(t *testing.T) {
	// io.LimitedReader is not an io.Seeker, so Do must buffer it before
	// the first attempt to keep retries intact.
	payload := `{"name":"Q1"}`
	oneShot := io.LimitReader(strings.NewReader(payload), int64(len(payload)))

	var bodies []string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))

		if len(bodies) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	resp, err := client.Do(context.Background(), http.MethodPost, "/x", oneShot)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1])
}

// failingSeeker is an io.ReadSeeker where Read succeeds but Seek always
// fails. Used to test the rewindBody error path directly.
type failingSeeker struct {
	data []byte
}

func (f *failingSeeker) Read(p []byte) (int, error) {
	return copy(p, f.data), io.EOF
}

func (f *failingSeeker) Seek(_ int64, _ int) (int64, error) {
	return 0, errors.New("seek failed")
}

func TestRewindBodySeekError(t *testing.T) {
	err := rewindBody(&failingSeeker{data: []byte("test data")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewinding request body for retry")
	assert.Contains(t, err.Error(), "seek failed")

	assert.NoError(t, rewindBody(nil))
}

func TestDoRewindFailureStopsRetry(t *testing.T) {
	var calls int

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++

		w.WriteHeader(http.StatusInternalServerError)
	})

	body := &failingSeeker{data: []byte(`{"key":"value"}`)}

	_, err := client.Do(context.Background(), http.MethodPost, "/x", body) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewinding request body for retry")

	// The rewind failure surfaces before the retry is attempted.
	assert.Equal(t, 1, calls)
}

func TestDoClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status   int
		sentinel error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusLocked, ErrLocked},
	}

	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := client.Do(context.Background(), http.MethodGet, "/x", nil) //nolint:bodyclose // error path
		require.Error(t, err, "status %d", tc.status)
		assert.ErrorIs(t, err, tc.sentinel, "status %d", tc.status)

		var reqErr *RequestError

		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, tc.status, reqErr.StatusCode)
	}
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// Close immediately so every request fails at the dial.
	server.Close()

	client := NewClient(server.URL, http.DefaultClient, StaticTokenSource("tok"), testLogger())

	var sleeps int

	client.sleepFunc = func(_ context.Context, _ time.Duration) error {
		sleeps++
		return nil
	}

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.Equal(t, maxRetries, sleeps)
}

func TestDoContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, http.MethodGet, "/x", nil) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalcBackoffBounds(t *testing.T) {
	client := NewClient(BaseURL, nil, StaticTokenSource("tok"), testLogger())

	for attempt := range 10 {
		backoff := client.calcBackoff(attempt)

		assert.Positive(t, backoff)
		assert.LessOrEqual(t, backoff, time.Duration(float64(maxBackoff)*(1+jitterFraction)))
	}
}

func TestIsNotFound(t *testing.T) {
	reqErr := &RequestError{StatusCode: http.StatusNotFound, Err: ErrNotFound}

	assert.True(t, IsNotFound(reqErr))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.False(t, IsNotFound(nil))
}
