package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings struct {
	values map[string]string
	err    error
	calls  int
}

func (s *staticSettings) Settings(ctx context.Context) (map[string]string, error) {
	s.calls++
	return s.values, s.err
}

func TestBuildSplits(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := BuildSplits(nil)
		assert.Equal(t, 0.15, s.PlatformPct)
		assert.Equal(t, 0.03, s.CashbackPct)
		assert.Equal(t, 0.03, s.ReferralPct)
		assert.False(t, s.PlatformMaturesWithVendor)
	})

	t.Run("camel and snake aliases", func(t *testing.T) {
		s := BuildSplits(map[string]string{
			"platformCommissionPct": "0.2",
			"cashback_pct":          "0.05",
			"referral_pct":          "bogus",
		})
		assert.Equal(t, 0.2, s.PlatformPct)
		assert.Equal(t, 0.05, s.CashbackPct)
		assert.Equal(t, DefaultReferralPct, s.ReferralPct)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("REFERRAL_COMMISSION_PCT", "0.04")
		t.Setenv("PLATFORM_MATURES_WITH_VENDOR", "true")
		s := BuildSplits(map[string]string{})
		assert.Equal(t, 0.04, s.ReferralPct)
		assert.True(t, s.PlatformMaturesWithVendor)
	})

	t.Run("viper values apply like env", func(t *testing.T) {
		viper.Set("CASHBACK_PCT", "7")
		viper.Set("PLATFORM_MATURES_WITH_VENDOR", "true")
		t.Cleanup(func() {
			viper.Set("CASHBACK_PCT", nil)
			viper.Set("PLATFORM_MATURES_WITH_VENDOR", nil)
		})
		s := BuildSplits(map[string]string{})
		assert.InDelta(t, 0.07, s.CashbackPct, 1e-9)
		assert.True(t, s.PlatformMaturesWithVendor)
	})

	t.Run("settings beat env", func(t *testing.T) {
		t.Setenv("CASHBACK_PCT", "0.09")
		s := BuildSplits(map[string]string{"cashbackPct": "0.01"})
		assert.Equal(t, 0.01, s.CashbackPct)
	})
}

func TestParseFraction(t *testing.T) {
	v, ok := parseFraction("15")
	require.True(t, ok)
	assert.InDelta(t, 0.15, v, 1e-9)

	v, ok = parseFraction("12.5%")
	require.True(t, ok)
	assert.InDelta(t, 0.125, v, 1e-9)

	_, ok = parseFraction("-1")
	assert.False(t, ok)
	_, ok = parseFraction("250")
	assert.False(t, ok)
}

func TestSplitsProvider(t *testing.T) {
	src := &staticSettings{values: map[string]string{"platformPct": "0.1"}}
	p := NewSplitsProvider(src, time.Minute)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	first := p.Current(context.Background())
	assert.Equal(t, 0.1, first.PlatformPct)
	assert.Equal(t, uint64(1), first.Generation)

	src.values = map[string]string{"platformPct": "0.2"}
	cached := p.Current(context.Background())
	assert.Equal(t, 0.1, cached.PlatformPct, "snapshot is reused within ttl")
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	second := p.Current(context.Background())
	assert.Equal(t, 0.2, second.PlatformPct)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Equal(t, 0.1, first.PlatformPct, "old snapshot is never mutated")

	src.err = errors.New("settings table unavailable")
	now = now.Add(2 * time.Minute)
	stale := p.Current(context.Background())
	assert.Equal(t, 0.2, stale.PlatformPct)
}
