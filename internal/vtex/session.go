package vtex

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gondola/availability-service/internal/metrics"
)

// DefaultUserAgent impersonates a current desktop browser. Storefronts block
// obvious bot agents at the CDN edge.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// warmupPaths are fetched best-effort to seed session cookies
var warmupPaths = []string{"/", "/_v/segment", "/api/checkout/pub/orderForm"}

// SessionConfig configures one retailer session
type SessionConfig struct {
	Host           string // canonical root URL, e.g. https://www.vea.com.ar/
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	RequestTimeout time.Duration
	Retry          RetryPolicy

	// Limiter and InFlight are shared across all sessions of one host so
	// that worker fan-out respects a single host-wide budget. Either may be
	// nil.
	Limiter  *rate.Limiter
	InFlight *semaphore.Weighted

	Logger zerolog.Logger
}

// Session is a long-lived transport for one retailer host. It owns a cookie
// jar, so sessions must not be shared between workers; each worker builds its
// own and discards it when the batch ends.
type Session struct {
	baseURL  *url.URL
	client   *http.Client
	cfg      SessionConfig
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// Response is a fully-read HTTP exchange result
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// NewSession creates a session for the given host. The cookie jar starts
// empty; call WarmUp or let the first 401/403 trigger it.
func NewSession(cfg SessionConfig) (*Session, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", cfg.Host, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid host %q: missing scheme or host", cfg.Host)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		if cfg.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		// Forward proxies commonly re-terminate TLS
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Session{
		baseURL:  base,
		client:   &http.Client{Transport: transport, Jar: jar},
		cfg:      cfg,
		recorder: metrics.NewRecorder(),
		logger:   cfg.Logger.With().Str("component", "vtex-session").Str("host", base.Host).Logger(),
	}, nil
}

// Host returns the session's canonical host string
func (s *Session) Host() string {
	return s.cfg.Host
}

// Get performs a GET through the session's retry policy
func (s *Session) Get(ctx context.Context, path string) (*Response, error) {
	return s.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a JSON POST through the session's retry policy
func (s *Session) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return s.Do(ctx, http.MethodPost, path, body)
}

// Do executes one request with the session retry policy. Transient failures
// (network errors, 5xx) are retried with exponential backoff; 429 uses the
// extended backoff honoring Retry-After; a 401/403 triggers one warm-up cycle
// and one uncounted retry. The final HTTP response is returned whatever its
// status — callers decide which statuses are acceptable. Only when no
// response could be obtained at all does Do return a *RetryError.
func (s *Session) Do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	fullURL := s.baseURL.String() + path

	var lastStatus int
	var lastErr error
	warmed := false
	attempt := 0

	for {
		resp, err := s.doOnce(ctx, method, fullURL, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, &RetryError{URL: fullURL, Attempts: attempt + 1, LastStatus: lastStatus, LastError: ctx.Err()}
			}
			if attempt >= s.cfg.Retry.MaxRetries {
				return nil, &RetryError{URL: fullURL, Attempts: attempt + 1, LastStatus: lastStatus, LastError: lastErr}
			}
			s.recorder.RecordPlatformRetry(s.baseURL.Host)
			s.logger.Debug().Err(err).Int("attempt", attempt).Str("url", fullURL).Msg("request failed, backing off")
			if !sleepCtx(ctx, CalculateBackoff(attempt, s.cfg.Retry)) {
				return nil, &RetryError{URL: fullURL, Attempts: attempt + 1, LastStatus: lastStatus, LastError: ctx.Err()}
			}
			attempt++
			continue
		}

		lastStatus = resp.StatusCode
		s.recorder.RecordPlatformRequest(s.baseURL.Host, strconv.Itoa(resp.StatusCode))

		// Blocked session: seed cookies and retry the original request once.
		// The warm-up retry does not count against the retry budget.
		if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && !warmed {
			warmed = true
			s.logger.Info().Int("status", resp.StatusCode).Str("url", fullURL).Msg("session rejected, warming up")
			s.WarmUp(ctx)
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= s.cfg.Retry.MaxRetries {
			return resp, nil
		}

		var backoff time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			backoff = CalculateRateLimitBackoff(attempt, s.cfg.Retry, resp.Header.Get("Retry-After"))
		} else {
			backoff = CalculateBackoff(attempt, s.cfg.Retry)
		}

		s.recorder.RecordPlatformRetry(s.baseURL.Host)
		s.logger.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Dur("backoff", backoff).Str("url", fullURL).Msg("retryable status, backing off")
		if !sleepCtx(ctx, backoff) {
			return resp, nil
		}
		attempt++
	}
}

// doOnce performs a single attempt with the per-request timeout applied
func (s *Session) doOnce(ctx context.Context, method, fullURL string, body []byte) (*Response, error) {
	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if s.cfg.InFlight != nil {
		if err := s.cfg.InFlight.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.cfg.InFlight.Release(1)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	s.applyHeaders(req, body != nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

// applyHeaders sets the browser-shaped headers every storefront request carries
func (s *Session) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")
	req.Header.Set("Referer", s.baseURL.String()+"/")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

// WarmUp fetches the storefront root, segment, and order form endpoints to
// seed session cookies. All failures are ignored; the calls only exist for
// their Set-Cookie side effects.
func (s *Session) WarmUp(ctx context.Context) {
	s.recorder.RecordWarmup(s.baseURL.Host)
	for _, path := range warmupPaths {
		resp, err := s.doOnce(ctx, http.MethodGet, s.baseURL.String()+path, nil)
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("warm-up request failed")
			continue
		}
		s.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("warm-up request done")
	}
}
