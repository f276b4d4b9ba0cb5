package config

import (
	"strings"
	"time"
)

// AuthPlacement describes where an integration expects its credential.
type AuthPlacement string

const (
	// AuthBearer sends the key as "Authorization: Bearer <key>".
	AuthBearer AuthPlacement = "bearer"
	// AuthBodyField injects the key into the JSON request body under "apiKey".
	AuthBodyField AuthPlacement = "body_field"
	// AuthQueryParam appends the key as a "key" query parameter.
	AuthQueryParam AuthPlacement = "query_param"
	// AuthNone disables credential injection (unauthenticated providers).
	AuthNone AuthPlacement = "none"
)

// ProviderConfig holds per-integration connection and resilience settings.
// Every provider is tuned through the same set of environment keys:
//
//	<PROVIDER>_API_KEY, <PROVIDER>_API_URL, <PROVIDER>_TIMEOUT,
//	<PROVIDER>_MAX_RETRIES, <PROVIDER>_RETRY_DELAY,
//	<PROVIDER>_CIRCUIT_FAILURE_THRESHOLD, <PROVIDER>_CIRCUIT_RECOVERY_TIMEOUT
type ProviderConfig struct {
	// Name identifies the provider in logs and breaker state changes.
	Name string

	// APIKey is the provider credential. Empty means "not configured";
	// the adapter stays constructible but reports unavailable.
	APIKey string

	// BaseURL is the root the endpoint paths are joined to.
	BaseURL string

	// Auth selects where APIKey is placed on outbound requests.
	Auth AuthPlacement

	// Timeout bounds each individual HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// RetryDelay is the base backoff; attempt n sleeps RetryDelay * 2^n.
	RetryDelay time.Duration

	// CircuitFailureThreshold is the consecutive-failure count that opens
	// the breaker.
	CircuitFailureThreshold int

	// CircuitRecoveryTimeout is how long the breaker stays open before
	// admitting a half-open trial call.
	CircuitRecoveryTimeout time.Duration
}

// Configured reports whether the provider is usable: unauthenticated
// providers need a base URL, everything else needs a credential.
func (p ProviderConfig) Configured() bool {
	if p.Auth == AuthNone {
		return p.BaseURL != ""
	}
	return p.APIKey != ""
}

// loadProvider reads one provider's settings, applying the given defaults.
func loadProvider(name string, defaults ProviderConfig) ProviderConfig {
	prefix := strings.ToUpper(name)
	cfg := defaults
	cfg.Name = name
	cfg.APIKey = getEnvOrDefault(prefix+"_API_KEY", defaults.APIKey)
	cfg.BaseURL = getEnvOrDefault(prefix+"_API_URL", defaults.BaseURL)
	cfg.Timeout = getEnvDuration(prefix+"_TIMEOUT", defaults.Timeout)
	cfg.MaxRetries = getEnvInt(prefix+"_MAX_RETRIES", defaults.MaxRetries)
	cfg.RetryDelay = getEnvDuration(prefix+"_RETRY_DELAY", defaults.RetryDelay)
	cfg.CircuitFailureThreshold = getEnvInt(prefix+"_CIRCUIT_FAILURE_THRESHOLD", defaults.CircuitFailureThreshold)
	cfg.CircuitRecoveryTimeout = getEnvDuration(prefix+"_CIRCUIT_RECOVERY_TIMEOUT", defaults.CircuitRecoveryTimeout)
	return cfg
}

// defaultProvider returns the resilience defaults shared by all providers.
func defaultProvider(auth AuthPlacement, baseURL string) ProviderConfig {
	return ProviderConfig{
		BaseURL:                 baseURL,
		Auth:                    auth,
		Timeout:                 30 * time.Second,
		MaxRetries:              3,
		RetryDelay:              1 * time.Second,
		CircuitFailureThreshold: 5,
		CircuitRecoveryTimeout:  60 * time.Second,
	}
}
