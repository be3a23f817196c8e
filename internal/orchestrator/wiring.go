package orchestrator

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gondola/availability-service/config"
	"github.com/gondola/availability-service/internal/vtex"
)

// NewRetailerClient builds a fresh client session for one retailer host from
// the service configuration. Sequential surfaces (discovery, store mapping,
// CLI commands) ride one of these each; the probe pool builds its own
// per-worker sessions instead.
func NewRetailerClient(cfg *config.Config, host string, logger zerolog.Logger) (*vtex.Client, error) {
	rps := cfg.Vtex.RequestsPerSecond
	if rps <= 0 {
		rps = 4.0
	}
	session, err := vtex.NewSession(vtex.SessionConfig{
		Host:           host,
		ProxyURL:       cfg.Proxy.URL,
		ProxyUsername:  cfg.Proxy.Username,
		ProxyPassword:  cfg.Proxy.Password,
		RequestTimeout: cfg.Vtex.RequestTimeout,
		Retry: vtex.RetryPolicy{
			MaxRetries:     cfg.Vtex.MaxRetries,
			InitialBackoff: cfg.Vtex.InitialBackoff,
			MaxBackoff:     cfg.Vtex.MaxBackoff,
		},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", host, err)
	}
	return vtex.NewClient(session, logger), nil
}
