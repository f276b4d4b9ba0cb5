// Package masking scrubs provider credentials from telemetry. Every log line
// the integration layer emits passes through here first, so an API key never
// reaches the log stream even when a provider echoes it back in an error body.
package masking

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	// Placeholder replaces every credential occurrence.
	Placeholder = "****"

	// BodyLogLimit is how many bytes of a request or response body survive
	// into telemetry. Bodies are scrubbed before truncation so a secret
	// split by the cut cannot leak its prefix.
	BodyLogLimit = 1000
)

// Masker scrubs known secrets and credential-shaped substrings from strings
// bound for logs. Created once per process with every configured provider
// key; thread-safe and stateless aside from compiled patterns.
type Masker struct {
	secrets  []string
	patterns []*CompiledPattern
}

// NewMasker builds a masker over the given literal secrets. Empty secrets are
// dropped. The built-in patterns cover the three places providers carry
// credentials: Authorization headers, JSON body fields, and query parameters.
func NewMasker(secrets ...string) *Masker {
	m := &Masker{patterns: builtinPatterns()}
	for _, s := range secrets {
		if s != "" {
			m.secrets = append(m.secrets, s)
		}
	}
	slog.Debug("Credential masker initialized",
		"patterns", len(m.patterns),
		"secrets", len(m.secrets))
	return m
}

// Scrub replaces every credential occurrence in s with the placeholder.
// Literal secrets are replaced first, then the structural patterns sweep up
// anything credential-shaped the literals missed.
func (m *Masker) Scrub(s string) string {
	if s == "" {
		return s
	}
	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, Placeholder)
	}
	for _, pattern := range m.patterns {
		s = pattern.Regex.ReplaceAllString(s, pattern.Replacement)
	}
	return s
}

// URL scrubs a request URL for logging. Query parameters carrying keys come
// out as key=****.
func (m *Masker) URL(rawURL string) string {
	return m.Scrub(rawURL)
}

// Body prepares a request or response body for logging: scrub, then keep at
// most BodyLogLimit bytes.
func (m *Masker) Body(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return Truncate(m.Scrub(string(body)), BodyLogLimit)
}

// Truncate keeps at most limit bytes of s, annotating how much was dropped.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes total)", s[:limit], len(s))
}
