package vtex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps retry tests quick
func fastRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func newTestSession(t *testing.T, serverURL string, retry RetryPolicy) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Host:   serverURL,
		Retry:  retry,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

// TestNewSessionValidation verifies host validation and config defaults
func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(SessionConfig{Host: ""})
	assert.Error(t, err)

	_, err = NewSession(SessionConfig{Host: "www.vea.com.ar"})
	assert.Error(t, err, "scheme-less host must be rejected")

	s, err := NewSession(SessionConfig{Host: "https://www.vea.com.ar/"})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, s.cfg.UserAgent)
	assert.Equal(t, 90*time.Second, s.cfg.RequestTimeout)
	assert.Equal(t, DefaultRetryPolicy(), s.cfg.Retry)
	assert.Equal(t, "https://www.vea.com.ar", s.baseURL.String(), "trailing slash trimmed")
}

// TestSessionSendsBrowserHeaders verifies the browser-shaped request headers
func TestSessionSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(0))

	_, err := s.Get(context.Background(), "/api/test")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "es-AR,es;q=0.9,en;q=0.8", got.Get("Accept-Language"))
	assert.Equal(t, srv.URL+"/", got.Get("Referer"))
	assert.Empty(t, contentType, "GET carries no content type")

	_, err = s.Post(context.Background(), "/api/test", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
}

// TestSessionRetriesServerErrors verifies that 5xx responses are retried
// until a success arrives.
func TestSessionRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(3))

	resp, err := s.Get(context.Background(), "/api/test")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// TestSessionReturnsFinalStatusWhenBudgetExhausted verifies that a persistent
// 5xx is handed back as a response, not an error: callers translate statuses.
func TestSessionReturnsFinalStatusWhenBudgetExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(2))

	resp, err := s.Get(context.Background(), "/api/test")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

// TestSessionRetriesRateLimit verifies that 429 responses are retried
func TestSessionRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(2))

	resp, err := s.Get(context.Background(), "/api/test")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestSessionWarmsUpOnForbidden verifies the blocked-session recovery: a 403
// triggers the warm-up fetches, then the original request is retried with the
// seeded cookie.
func TestSessionWarmsUpOnForbidden(t *testing.T) {
	var probeCalls, warmupCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/probe" {
			atomic.AddInt32(&probeCalls, 1)
			if _, err := r.Cookie("vtex_session"); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
			return
		}
		// every other path is a warm-up fetch; seed the session cookie
		atomic.AddInt32(&warmupCalls, 1)
		http.SetCookie(w, &http.Cookie{Name: "vtex_session", Value: "seeded", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(2))

	resp, err := s.Get(context.Background(), "/api/probe")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&probeCalls), "one rejection, one retry")
	assert.Equal(t, int32(len(warmupPaths)), atomic.LoadInt32(&warmupCalls))
}

// TestSessionWarmsUpOnlyOnce verifies that a host rejecting the session even
// after warm-up gets its 403 reported back instead of looping.
func TestSessionWarmsUpOnlyOnce(t *testing.T) {
	var probeCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/probe" {
			atomic.AddInt32(&probeCalls, 1)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(2))

	resp, err := s.Get(context.Background(), "/api/probe")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&probeCalls))
}

// TestSessionNetworkErrorExhaustsRetries verifies the RetryError path when no
// response can be obtained at all.
func TestSessionNetworkErrorExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	s := newTestSession(t, srv.URL, fastRetry(2))

	_, err := s.Get(context.Background(), "/api/test")
	require.Error(t, err)

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
}

// TestSessionContextCancellation verifies that a dead context stops the retry
// loop immediately.
func TestSessionContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL, fastRetry(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "/api/test")
	require.Error(t, err)

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, re.LastError, context.Canceled)
}
