package tenant

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

/* Loader reads tenants.yaml and seeds a Store.
 * In production the admin API owns this data; the file loader exists
 * so a courier process can run against a static tenant set
 */

// FileConfig represents the structure of tenants.yaml
type FileConfig struct {
	Tenants []TenantEntry `yaml:"tenants"`
}

// TenantEntry represents a single tenant in the YAML file
type TenantEntry struct {
	TenantID          string        `yaml:"tenant_id"`
	EndpointURL       string        `yaml:"endpoint_url"`
	Secret            string        `yaml:"secret"`
	Active            *bool         `yaml:"active"` // Default: true
	EnabledEvents     []string      `yaml:"enabled_events"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialDelayMs    int           `yaml:"initial_delay_ms"`    // Default: 1000
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`  // Default: 2
	CustomHeaders     []HeaderEntry `yaml:"custom_headers"`
}

// HeaderEntry represents a custom header pair in the YAML file
type HeaderEntry struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// LoadFile reads and parses a tenants YAML file into the store
func LoadFile(filePath string, store *Store) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading tenants file: %w", err)
	}
	return Load(data, store)
}

// Load parses YAML tenant configuration and stores each entry
func Load(data []byte, store *Store) error {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing tenants YAML: %w", err)
	}

	for _, entry := range fc.Tenants {
		cfg := entry.toConfig()
		if err := store.Put(cfg); err != nil {
			return fmt.Errorf("loading tenant %s: %w", entry.TenantID, err)
		}
	}

	return nil
}

// toConfig converts a YAML entry into a WebhookConfig, applying defaults
func (e TenantEntry) toConfig() WebhookConfig {
	active := true
	if e.Active != nil {
		active = *e.Active
	}

	initialDelay := 1000
	if e.InitialDelayMs > 0 {
		initialDelay = e.InitialDelayMs
	}

	multiplier := 2.0
	if e.BackoffMultiplier > 0 {
		multiplier = e.BackoffMultiplier
	}

	events := make(map[string]bool, len(e.EnabledEvents))
	for _, eventType := range e.EnabledEvents {
		events[eventType] = true
	}

	headers := make([]Header, 0, len(e.CustomHeaders))
	for _, h := range e.CustomHeaders {
		headers = append(headers, Header{Name: h.Name, Value: h.Value})
	}

	return WebhookConfig{
		TenantID:      e.TenantID,
		EndpointURL:   e.EndpointURL,
		Secret:        e.Secret,
		Active:        active,
		EnabledEvents: events,
		RetryPolicy: RetryPolicy{
			MaxRetries:        e.MaxRetries,
			InitialDelay:      time.Duration(initialDelay) * time.Millisecond,
			BackoffMultiplier: multiplier,
		},
		CustomHeaders: headers,
	}
}
