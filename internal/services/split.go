package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/staybay/backend/internal/config"
	"github.com/staybay/backend/internal/models"
)

var categoryAliases = map[string]models.Category{
	"lodging":         models.CategoryLodging,
	"hotel":           models.CategoryLodging,
	"hotels":          models.CategoryLodging,
	"shortlet":        models.CategoryLodging,
	"shortlets":       models.CategoryLodging,
	"apartment":       models.CategoryLodging,
	"event_center":    models.CategoryEventCenter,
	"event_centers":   models.CategoryEventCenter,
	"eventcenter":     models.CategoryEventCenter,
	"event":           models.CategoryEventCenter,
	"chops_gifts":     models.CategoryChopsGifts,
	"chops":           models.CategoryChopsGifts,
	"gifts":           models.CategoryChopsGifts,
	"chops_and_gifts": models.CategoryChopsGifts,
	"restaurant":      models.CategoryRestaurant,
	"restaurants":     models.CategoryRestaurant,
	"tour_guide":      models.CategoryTourGuide,
	"tour_guides":     models.CategoryTourGuide,
	"tour":            models.CategoryTourGuide,
	"tours":           models.CategoryTourGuide,
}

// NormalizeCategory maps a free-form listing category onto the closed set.
func NormalizeCategory(raw string) models.Category {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("&", " and ", "-", " ", "/", " ").Replace(key)
	key = strings.Join(strings.Fields(key), "_")
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return models.CategoryOther
}

func validFraction(f float64) bool { return f >= 0 && f <= 1 }

// share returns round(pct * amount), half away from zero.
func share(pct float64, amount int64) int64 {
	return decimal.NewFromFloat(pct).Mul(decimal.NewFromInt(amount)).Round(0).IntPart()
}

// CalculateSplit divides gross between vendor, user and platform. The three
// shares always sum to gross; rounding residue lands on the platform share.
func CalculateSplit(gross int64, category models.Category, kind models.SplitKind, s config.Splits) (models.SplitResult, error) {
	if gross < 0 {
		return models.SplitResult{}, fmt.Errorf("%w: gross amount %d is negative", ErrInvalidSplitInput, gross)
	}
	for _, f := range []float64{s.PlatformPct, s.CashbackPct, s.ReferralPct, s.DefaultPlatformPct} {
		if !validFraction(f) {
			return models.SplitResult{}, fmt.Errorf("%w: fraction %v outside 0..1", ErrInvalidSplitInput, f)
		}
	}

	res := models.SplitResult{Kind: models.SplitNone}

	switch category {
	case models.CategoryChopsGifts:
		res.PlatformAmount = gross

	case models.CategoryLodging, models.CategoryEventCenter:
		platformPct := s.PlatformPct
		userPct := 0.0
		switch kind {
		case models.SplitCashback:
			userPct = s.CashbackPct
		case models.SplitReferral:
			userPct = s.ReferralPct
		}
		// the incentive is funded from the platform's cut
		if userPct > platformPct {
			userPct = platformPct
		}

		res.VendorAmount = share(1-platformPct, gross)
		res.UserAmount = share(userPct, gross)
		if over := res.VendorAmount + res.UserAmount - gross; over > 0 {
			res.UserAmount -= over
		}
		platform := share(platformPct-userPct, gross)
		res.PlatformAmount = platform + (gross - res.VendorAmount - res.UserAmount - platform)
		if res.UserAmount > 0 {
			res.Kind = kind
		}

	default:
		res.VendorAmount = share(1-s.DefaultPlatformPct, gross)
		res.PlatformAmount = gross - res.VendorAmount
	}

	return res, nil
}

// ChooseSplitKind picks the buyer-facing incentive and who receives it.
// A referrer who is also the buyer is never rewarded.
func ChooseSplitKind(in models.BookingLedgerInput) (models.SplitKind, string) {
	if in.ReferrerID != "" && in.ReferrerID != in.BuyerID {
		return models.SplitReferral, in.ReferrerID
	}
	if in.CashbackEligible && in.BuyerID != "" {
		return models.SplitCashback, in.BuyerID
	}
	return models.SplitNone, ""
}
