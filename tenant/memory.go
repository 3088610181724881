package tenant

import (
	"context"
	"fmt"
	"sync"
)

/* Store is an in-memory ConfigStore guarded by a single mutex.
 * Config reads copy the record so workers never observe a half
 * applied stats update; ApplyStats runs its read-modify-write
 * entirely inside the lock, which makes the increments and the
 * moving-average math atomic per tenant
 */
type Store struct {
	mu      sync.RWMutex
	configs map[string]WebhookConfig
}

// NewStore creates an empty in-memory config store
func NewStore() *Store {
	return &Store{
		configs: make(map[string]WebhookConfig),
	}
}

// Put validates and stores a tenant configuration, replacing any
// existing record but preserving its accumulated stats
func (s *Store) Put(cfg WebhookConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.configs[cfg.TenantID]; ok {
		cfg.Stats = existing.Stats
	}
	s.configs[cfg.TenantID] = copyConfig(cfg)

	return nil
}

// Get returns a copy of the tenant's configuration
func (s *Store) Get(ctx context.Context, tenantID string) (WebhookConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[tenantID]
	if !ok {
		return WebhookConfig{}, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}

	return copyConfig(cfg), nil
}

// Delete removes a tenant's configuration
func (s *Store) Delete(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, tenantID)
}

// List returns copies of all stored configurations
func (s *Store) List() []WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]WebhookConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		configs = append(configs, copyConfig(cfg))
	}
	return configs
}

// ApplyStats folds one terminal delivery outcome into the tenant's
// rolling counters. The running mean covers successful attempts only.
func (s *Store) ApplyStats(ctx context.Context, tenantID string, delta StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[tenantID]
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}

	cfg.Stats.TotalSent++
	if delta.Success {
		cfg.Stats.SuccessCount++
		n := float64(cfg.Stats.SuccessCount)
		rt := float64(delta.ResponseTime.Milliseconds())
		cfg.Stats.AverageResponseTimeMs = (cfg.Stats.AverageResponseTimeMs*(n-1) + rt) / n
	} else {
		cfg.Stats.FailureCount++
	}
	cfg.Stats.LastTriggeredAt = delta.At

	s.configs[tenantID] = cfg
	return nil
}

// copyConfig deep-copies the mutable fields so callers cannot alias
// the stored record
func copyConfig(cfg WebhookConfig) WebhookConfig {
	if cfg.EnabledEvents != nil {
		events := make(map[string]bool, len(cfg.EnabledEvents))
		for k, v := range cfg.EnabledEvents {
			events[k] = v
		}
		cfg.EnabledEvents = events
	}
	if cfg.CustomHeaders != nil {
		headers := make([]Header, len(cfg.CustomHeaders))
		copy(headers, cfg.CustomHeaders)
		cfg.CustomHeaders = headers
	}
	return cfg
}
