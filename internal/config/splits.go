package config

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Splits is an immutable snapshot of the admin-tunable revenue fractions.
// A request reads it once and threads the value through every calculation.
type Splits struct {
	PlatformPct               float64   `json:"platformPct"`
	CashbackPct               float64   `json:"cashbackPct"`
	ReferralPct               float64   `json:"referralPct"`
	DefaultPlatformPct        float64   `json:"defaultPlatformPct"`
	PlatformMaturesWithVendor bool      `json:"platformMaturesWithVendor"`
	Generation                uint64    `json:"generation"`
	LoadedAt                  time.Time `json:"loadedAt"`
}

const (
	DefaultPlatformPct = 0.15
	DefaultCashbackPct = 0.03
	DefaultReferralPct = 0.03
)

// DefaultSplits is the snapshot used when no source provides a value.
func DefaultSplits() Splits {
	return Splits{
		PlatformPct:        DefaultPlatformPct,
		CashbackPct:        DefaultCashbackPct,
		ReferralPct:        DefaultReferralPct,
		DefaultPlatformPct: DefaultPlatformPct,
	}
}

// SettingsSource returns admin settings as raw key/value strings.
type SettingsSource interface {
	Settings(ctx context.Context) (map[string]string, error)
}

type knob struct {
	aliases []string
	env     string
	def     float64
}

var (
	platformKnob = knob{
		aliases: []string{"platformCommissionPct", "platform_commission_pct", "platformPct", "platform_pct"},
		env:     "PLATFORM_COMMISSION_PCT",
		def:     DefaultPlatformPct,
	}
	cashbackKnob = knob{
		aliases: []string{"cashbackPct", "cashback_pct", "userCashbackPct", "user_cashback_pct"},
		env:     "CASHBACK_PCT",
		def:     DefaultCashbackPct,
	}
	referralKnob = knob{
		aliases: []string{"referralPct", "referral_pct", "referralCommissionPct", "referral_commission_pct"},
		env:     "REFERRAL_COMMISSION_PCT",
		def:     DefaultReferralPct,
	}
	defaultPlatformKnob = knob{
		aliases: []string{"defaultPlatformPct", "default_platform_pct", "otherPlatformPct", "other_platform_pct"},
		env:     "DEFAULT_PLATFORM_PCT",
		def:     DefaultPlatformPct,
	}
	maturesWithVendorAliases = []string{"platformMaturesWithVendor", "platform_matures_with_vendor"}
)

func (k knob) resolve(settings map[string]string) float64 {
	for _, alias := range k.aliases {
		if raw, ok := settings[alias]; ok {
			if v, ok := parseFraction(raw); ok {
				return v
			}
		}
	}
	if v, ok := lookupEnvFraction(k.env); ok {
		return v
	}
	return k.def
}

// parseFraction accepts 0..1 fractions and, for tolerance, 1..100 percents.
func parseFraction(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%")), 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	if v > 1 {
		v = v / 100
	}
	return v, true
}

// BuildSplits resolves every knob from settings, then env, then defaults.
func BuildSplits(settings map[string]string) Splits {
	s := Splits{
		PlatformPct:        platformKnob.resolve(settings),
		CashbackPct:        cashbackKnob.resolve(settings),
		ReferralPct:        referralKnob.resolve(settings),
		DefaultPlatformPct: defaultPlatformKnob.resolve(settings),
	}

	s.PlatformMaturesWithVendor = getEnvAsBool("PLATFORM_MATURES_WITH_VENDOR", false)
	for _, alias := range maturesWithVendorAliases {
		if raw, ok := settings[alias]; ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				s.PlatformMaturesWithVendor = b
				break
			}
		}
	}
	return s
}

// SplitsProvider caches the latest snapshot. Refresh swaps in a new value and
// never mutates one that readers may already hold.
type SplitsProvider struct {
	source     SettingsSource
	ttl        time.Duration
	current    atomic.Pointer[Splits]
	generation atomic.Uint64
	refreshMu  sync.Mutex
	now        func() time.Time
}

func NewSplitsProvider(source SettingsSource, ttl time.Duration) *SplitsProvider {
	p := &SplitsProvider{source: source, ttl: ttl, now: time.Now}
	initial := BuildSplits(nil)
	p.current.Store(&initial)
	return p
}

// Current returns the cached snapshot, refreshing it first when stale.
// A failed refresh keeps serving the previous snapshot.
func (p *SplitsProvider) Current(ctx context.Context) Splits {
	snap := p.current.Load()
	if p.ttl > 0 && p.now().Sub(snap.LoadedAt) < p.ttl {
		return *snap
	}
	if fresh, err := p.Refresh(ctx); err == nil {
		return fresh
	}
	return *snap
}

func (p *SplitsProvider) Refresh(ctx context.Context) (Splits, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	var settings map[string]string
	if p.source != nil {
		var err error
		settings, err = p.source.Settings(ctx)
		if err != nil {
			return *p.current.Load(), err
		}
	}

	next := BuildSplits(settings)
	next.Generation = p.generation.Add(1)
	next.LoadedAt = p.now()
	p.current.Store(&next)
	return next, nil
}
