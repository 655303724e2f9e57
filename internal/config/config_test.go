package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-that-is-at-least-32-chars"

// ============================================
// Load Tests
// ============================================

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StateStore)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.CartSyncDelay)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, "@every 10m", cfg.CatalogRefreshCron)
	assert.Equal(t, "cart-sync", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 15.0, cfg.DefaultIVA)
	assert.Empty(t, cfg.CartTiers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STATE_STORE", StoreRedis)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CART_SYNC_DELAY", "2s")
	t.Setenv("DEFAULT_IVA", "12")
	t.Setenv("CART_TIERS", "1000:5,5000:10")
	t.Setenv("BACKEND_SERVICE_TOKEN", "svc-token")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StateStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.CartSyncDelay)
	assert.Equal(t, 12.0, cfg.DefaultIVA)
	assert.Equal(t, "svc-token", cfg.BackendServiceToken)
	require.Len(t, cfg.CartTiers, 2)
	assert.True(t, cfg.CartTiers[1].MinSubtotal.Equal(decimal.NewFromInt(5000)))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"unknown store", map[string]string{"STATE_STORE": "dynamo"}},
		{"bad duration", map[string]string{"BACKEND_TIMEOUT": "soon"}},
		{"bad iva", map[string]string{"DEFAULT_IVA": "fifteen"}},
		{"negative iva", map[string]string{"DEFAULT_IVA": "-1"}},
		{"bad tiers", map[string]string{"CART_TIERS": "1000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", secret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers(" 1000 : 5 ,, 5000:10 ")

	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.True(t, tiers[0].Percent.Equal(decimal.NewFromInt(5)))

	_, err = ParseTiers("abc:5")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
