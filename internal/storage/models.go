package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is a reference entity for a publicly traded company, keyed by
// ticker. Maintained by the seed job; read-only during a pipeline run.
type Company struct {
	Ticker         string
	Name           string
	NameNormalized string
	MarketCap      *decimal.Decimal
	AvgVolume      *int64
	Sector         *string
	UpdatedAt      time.Time
}

// Signal is a persisted, accepted, scored contract-award event. Created at
// most once per contract transaction; the price fields may be backfilled
// later by the enrichment stage when initially null.
type Signal struct {
	ID               int64
	ContractID       string
	Ticker           string
	AgencyName       string
	Description      string
	AwardAmount      decimal.Decimal
	PotentialCeiling *decimal.Decimal
	MarketCapAtTime  *decimal.Decimal
	ImpactRatio      decimal.Decimal
	ContractDate     *time.Time
	SourceURL        *string
	DetectedAt       time.Time

	PriceAtContract *decimal.Decimal

	// Percentage moves from N before the contract date to the contract price.
	PriceBefore1H  *decimal.Decimal
	PriceBefore6H  *decimal.Decimal
	PriceBefore24H *decimal.Decimal

	// Percentage moves from the contract price to N after the contract date.
	PriceAfter1M  *decimal.Decimal
	PriceAfter1H  *decimal.Decimal
	PriceAfter6H  *decimal.Decimal
	PriceAfter24H *decimal.Decimal
}

// HasPriceData reports whether enrichment has populated the price fields.
func (s Signal) HasPriceData() bool {
	return s.PriceAtContract != nil
}

// SignalFilter narrows and orders signal listings.
type SignalFilter struct {
	MinImpact *decimal.Decimal
	Ticker    string
	SortBy    string // "contract_date" (default) or "detected_at"
	Offset    int
	Limit     int
}
