// Package reconcile merges multiple source claims per (board, field) into
// one resolved value. Precedence is an explicit ordered tier list, so
// resolution is a table lookup rather than scattered string comparisons;
// ties within a tier break by most recent observation. Losing claims are
// never deleted, which keeps every resolved field traceable and lets the
// catalog re-resolve without re-scraping.
package reconcile

import (
	"slices"

	"github.com/powderline/quiver/pkg/catalog"
)

// Order is an explicit precedence list of source tiers, highest first.
// The relative rank of review sites and retailers is deliberately
// configuration, not code.
type Order []catalog.Tier

// DefaultOrder ranks manufacturer claims above review sites, review
// sites above retailers, and either above machine inference.
func DefaultOrder() Order {
	return Order{
		catalog.TierManufacturer,
		catalog.TierReviewSite,
		catalog.TierRetailer,
		catalog.TierInferred,
		catalog.TierHeuristic,
	}
}

// Rank returns the position of a tier in the order; lower is more
// trusted. Unknown tiers rank below every known one.
func (o Order) Rank(tier catalog.Tier) int {
	if i := slices.Index(o, tier); i >= 0 {
		return i
	}
	return len(o)
}

// Contains reports whether the order knows the tier.
func (o Order) Contains(tier catalog.Tier) bool {
	return slices.Contains(o, tier)
}
