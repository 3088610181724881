package tenant_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-courier/tenant"
)

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()

	t.Run("success - round trip", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", cfg.TenantID)
		assert.True(t, cfg.EventEnabled("card.extracted"))
	})

	t.Run("error - unknown tenant", func(t *testing.T) {
		store := tenant.NewStore()

		_, err := store.Get(ctx, "ghost")
		require.ErrorIs(t, err, tenant.ErrNotFound)
	})

	t.Run("error - invalid config rejected", func(t *testing.T) {
		store := tenant.NewStore()
		cfg := validConfig()
		cfg.Secret = "short"
		require.Error(t, store.Put(cfg))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		cfg.EnabledEvents["card.extracted"] = false

		fresh, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.True(t, fresh.EventEnabled("card.extracted"))
	})

	t.Run("put preserves accumulated stats", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))
		require.NoError(t, store.ApplyStats(ctx, "acme", tenant.StatsDelta{Success: true, ResponseTime: 50 * time.Millisecond, At: time.Now()}))

		updated := validConfig()
		updated.EndpointURL = "https://acme.test/hook2"
		require.NoError(t, store.Put(updated))

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "https://acme.test/hook2", cfg.EndpointURL)
		assert.Equal(t, int64(1), cfg.Stats.TotalSent)
	})

	t.Run("delete removes the config", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		store.Delete("acme")

		_, err := store.Get(ctx, "acme")
		require.ErrorIs(t, err, tenant.ErrNotFound)
	})
}

func TestStoreApplyStats(t *testing.T) {
	ctx := context.Background()

	t.Run("success increments success counters and mean", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, store.ApplyStats(ctx, "acme", tenant.StatsDelta{Success: true, ResponseTime: 100 * time.Millisecond, At: at}))
		require.NoError(t, store.ApplyStats(ctx, "acme", tenant.StatsDelta{Success: true, ResponseTime: 300 * time.Millisecond, At: at.Add(time.Minute)}))

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, int64(2), cfg.Stats.TotalSent)
		assert.Equal(t, int64(2), cfg.Stats.SuccessCount)
		assert.Equal(t, int64(0), cfg.Stats.FailureCount)
		assert.InDelta(t, 200, cfg.Stats.AverageResponseTimeMs, 0.01)
		assert.Equal(t, at.Add(time.Minute), cfg.Stats.LastTriggeredAt)
	})

	t.Run("failure does not move the mean", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		require.NoError(t, store.ApplyStats(ctx, "acme", tenant.StatsDelta{Success: true, ResponseTime: 100 * time.Millisecond, At: time.Now()}))
		require.NoError(t, store.ApplyStats(ctx, "acme", tenant.StatsDelta{Success: false, At: time.Now()}))

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, int64(2), cfg.Stats.TotalSent)
		assert.Equal(t, int64(1), cfg.Stats.SuccessCount)
		assert.Equal(t, int64(1), cfg.Stats.FailureCount)
		assert.InDelta(t, 100, cfg.Stats.AverageResponseTimeMs, 0.01)
	})

	t.Run("error - unknown tenant", func(t *testing.T) {
		store := tenant.NewStore()

		err := store.ApplyStats(ctx, "ghost", tenant.StatsDelta{Success: true, At: time.Now()})
		require.ErrorIs(t, err, tenant.ErrNotFound)
	})

	t.Run("concurrent updates lose no increments", func(t *testing.T) {
		store := tenant.NewStore()
		require.NoError(t, store.Put(validConfig()))

		const n = 100
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			success := i%2 == 0
			go func() {
				defer wg.Done()
				_ = store.ApplyStats(ctx, "acme", tenant.StatsDelta{
					Success:      success,
					ResponseTime: 100 * time.Millisecond,
					At:           time.Now(),
				})
			}()
		}
		wg.Wait()

		cfg, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, int64(n), cfg.Stats.TotalSent)
		assert.Equal(t, int64(n/2), cfg.Stats.SuccessCount)
		assert.Equal(t, int64(n/2), cfg.Stats.FailureCount)
		assert.InDelta(t, 100, cfg.Stats.AverageResponseTimeMs, 0.01)
	})
}
