package config

import (
	"math"
	"testing"
	"time"

	"roulette/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWheel(t *testing.T) {
	t.Run("empty inputs give the default wheel", func(t *testing.T) {
		wheel, err := ParseWheel("", "  ")
		require.NoError(t, err)
		assert.Equal(t, entities.DefaultWheel(), wheel)
	})

	t.Run("custom sectors and multipliers", func(t *testing.T) {
		wheel, err := ParseWheel("Green, red,black,red", "red:2, black:3,GREEN:14")
		require.NoError(t, err)

		require.Len(t, wheel.Sectors, 4)
		assert.Equal(t, entities.Sector{Number: 0, Category: entities.CategoryGreen}, wheel.Sectors[0])
		assert.Equal(t, entities.Sector{Number: 3, Category: entities.CategoryRed}, wheel.Sectors[3])
		assert.Equal(t, map[entities.Category]int64{
			entities.CategoryRed:   2,
			entities.CategoryBlack: 3,
			entities.CategoryGreen: 14,
		}, wheel.Multipliers)
		assert.NoError(t, wheel.Validate())
	})

	tests := []struct {
		name        string
		sectors     string
		multipliers string
	}{
		{"empty sector", "green,,red", ""},
		{"missing colon", "", "red=2"},
		{"non-numeric multiplier", "", "red:two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWheel(tt.sectors, tt.multipliers)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, NewTestConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no wheel", func(c *Config) { c.Wheel = nil }},
		{"category without multiplier", func(c *Config) {
			c.Wheel = &entities.Wheel{
				Sectors:     []entities.Sector{{Number: 0, Category: "blue"}},
				Multipliers: map[entities.Category]int64{entities.CategoryRed: 2},
			}
		}},
		{"zero min bet", func(c *Config) { c.MinBet = 0 }},
		{"max below min", func(c *Config) { c.MinBet = 100; c.MaxBet = 50 }},
		{"zero betting duration", func(c *Config) { c.BettingDuration = 0 }},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }},
		{"max bet overflows green payout", func(c *Config) { c.MaxBet = math.MaxInt64 / 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_LargestSafeMaxBet(t *testing.T) {
	cfg := NewTestConfig()
	cfg.MaxBet = math.MaxInt64 / cfg.Wheel.MaxMultiplier()
	assert.NoError(t, cfg.Validate())

	cfg.MaxBet++
	assert.ErrorContains(t, cfg.Validate(), "overflows")
}

func TestLoad(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("MIN_BET", "5")
	t.Setenv("MAX_BET", "500")
	t.Setenv("BETTING_SECONDS", "10")
	t.Setenv("SETTLEMENT_RETRY_DELAY", "250ms")
	t.Setenv("WHEEL_SECTORS", "green,red,black")

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.MinBet)
	assert.Equal(t, int64(500), cfg.MaxBet)
	assert.Equal(t, 10*time.Second, cfg.BettingDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.SettlementRetryDelay)
	assert.Len(t, cfg.Wheel.Sectors, 3)
}

func TestLoad_RequiresSecretsOutsideTests(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432")
	t.Setenv("JWT_SECRET", "")

	_, err := load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestSetTestConfig(t *testing.T) {
	t.Cleanup(ResetConfig)

	cfg := NewTestConfig()
	cfg.ListenAddr = ":9999"
	SetTestConfig(cfg)

	assert.Same(t, cfg, Get())
}
