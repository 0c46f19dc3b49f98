package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	billion = decimal.NewFromInt(1_000_000_000)
	million = decimal.NewFromInt(1_000_000)

	nuclearFloor = decimal.NewFromInt(20)
	highFloor    = decimal.NewFromInt(10)
)

// Thresholds configure the accept/reject policy applied after scoring.
type Thresholds struct {
	MinAwardAmount decimal.Decimal
	MinImpactRatio decimal.Decimal
	MaxMarketCap   decimal.Decimal
}

// Decision is the outcome of the kill switch. Reason is empty on acceptance.
type Decision struct {
	Accept bool
	Reason string
}

// ImpactRatio computes the award amount as a percentage of market cap,
// rounded to two fractional digits. A non-positive market cap yields zero
// rather than an error.
func ImpactRatio(awardAmount, marketCap decimal.Decimal) decimal.Decimal {
	if marketCap.Sign() <= 0 {
		return decimal.Zero
	}
	return awardAmount.Div(marketCap).Mul(hundred).Round(2)
}

// Evaluate applies the kill switch to an already-scored contract. A nil
// market cap means the awardee has no public market cap and is treated as
// private. Pure decision function; performs no I/O.
func Evaluate(t Thresholds, awardAmount decimal.Decimal, marketCap *decimal.Decimal, impactRatio decimal.Decimal) Decision {
	if marketCap == nil {
		return Decision{Reason: "private company (no market cap)"}
	}

	if marketCap.GreaterThan(t.MaxMarketCap) {
		return Decision{Reason: fmt.Sprintf(
			"market cap $%sB exceeds $%sB limit",
			marketCap.Div(billion).StringFixed(1),
			t.MaxMarketCap.Div(billion).StringFixed(0),
		)}
	}

	if impactRatio.LessThan(t.MinImpactRatio) {
		return Decision{Reason: fmt.Sprintf(
			"impact ratio %s%% below %s%% threshold",
			impactRatio.String(), t.MinImpactRatio.String(),
		)}
	}

	if awardAmount.LessThan(t.MinAwardAmount) {
		return Decision{Reason: fmt.Sprintf(
			"award $%sM below $%sM minimum",
			awardAmount.Div(million).StringFixed(1),
			t.MinAwardAmount.Div(million).StringFixed(0),
		)}
	}

	return Decision{Accept: true}
}

// Tier classifies an impact ratio for presentation. Acceptance uses the
// separate, lower MinImpactRatio cutoff.
func Tier(impactRatio decimal.Decimal) string {
	switch {
	case impactRatio.GreaterThanOrEqual(nuclearFloor):
		return "nuclear"
	case impactRatio.GreaterThanOrEqual(highFloor):
		return "high"
	default:
		return "moderate"
	}
}

// TierRank orders tiers for threshold comparisons: moderate < high < nuclear.
func TierRank(tier string) int {
	switch tier {
	case "nuclear":
		return 2
	case "high":
		return 1
	default:
		return 0
	}
}

// CeilingImpact computes the impact of the potential contract ceiling when it
// exceeds the obligated amount; nil otherwise.
func CeilingImpact(awardAmount decimal.Decimal, potentialCeiling *decimal.Decimal, marketCap decimal.Decimal) *decimal.Decimal {
	if potentialCeiling == nil || !potentialCeiling.GreaterThan(awardAmount) {
		return nil
	}
	impact := ImpactRatio(*potentialCeiling, marketCap)
	return &impact
}
