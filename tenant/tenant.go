package tenant

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

/* WebhookConfig is owned by the external admin flow and consumed
 * read-only by the delivery core. Stats is the one exception: it is
 * mutated in place through ConfigStore.ApplyStats.
 */

const (
	// MinSecretBytes is the minimum accepted signing secret size
	MinSecretBytes = 16

	// MaxSecretBytes is the maximum accepted signing secret size
	MaxSecretBytes = 64
)

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// WebhookConfig holds one tenant's webhook delivery settings
type WebhookConfig struct {
	TenantID      string
	EndpointURL   string
	Secret        string // shared signing key, never serialized back to clients
	Active        bool
	EnabledEvents map[string]bool
	RetryPolicy   RetryPolicy
	CustomHeaders []Header
	Stats         Stats
}

// Header is a single custom request header. Order is preserved so
// tenant headers can override the defaults when named identically.
type Header struct {
	Name  string
	Value string
}

// RetryPolicy controls backoff scheduling for failed deliveries
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// Stats holds rolling delivery counters for a tenant
type Stats struct {
	TotalSent             int64
	SuccessCount          int64
	FailureCount          int64
	AverageResponseTimeMs float64
	LastTriggeredAt       time.Time
}

// MaxAttempts returns the total attempt ceiling (initial attempt plus retries)
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Validate checks the retry policy bounds
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if p.InitialDelay < 100*time.Millisecond {
		return fmt.Errorf("initial delay must be at least 100ms (got %s)", p.InitialDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1 (got %g)", p.BackoffMultiplier)
	}
	return nil
}

// EventEnabled reports whether the tenant subscribed to the given event type
func (c WebhookConfig) EventEnabled(eventType string) bool {
	return c.EnabledEvents[eventType]
}

// Validate checks the full configuration record
func (c WebhookConfig) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}

	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		return fmt.Errorf("parsing endpoint_url for tenant %s: %w", c.TenantID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint_url must be http or https for tenant %s (got %q)", c.TenantID, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint_url must have a host for tenant %s", c.TenantID)
	}

	if len(c.Secret) < MinSecretBytes || len(c.Secret) > MaxSecretBytes {
		return fmt.Errorf("secret size must be between %d and %d bytes for tenant %s", MinSecretBytes, MaxSecretBytes, c.TenantID)
	}

	if err := c.RetryPolicy.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy for tenant %s: %w", c.TenantID, err)
	}

	for eventType := range c.EnabledEvents {
		if err := ValidateEventType(eventType); err != nil {
			return fmt.Errorf("invalid enabled event for tenant %s: %w", c.TenantID, err)
		}
	}

	for _, h := range c.CustomHeaders {
		if h.Name == "" {
			return fmt.Errorf("custom header name cannot be empty for tenant %s", c.TenantID)
		}
	}

	return nil
}

// ValidateEventType validates an event type name
func ValidateEventType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if !eventTypePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}
	return nil
}
