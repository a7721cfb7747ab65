package catalog

import "slices"

// Tier is a named class of data origin used to rank conflicting spec
// claims. Precedence between tiers is an explicit ordered list owned by
// the reconciliation engine, not an implicit property of these constants.
type Tier string

// Source tiers, conventionally ordered from most to least trusted.
const (
	TierManufacturer Tier = "manufacturer"
	TierReviewSite   Tier = "review-site"
	TierRetailer     Tier = "retailer"
	TierInferred     Tier = "inferred"
	TierHeuristic    Tier = "heuristic"
)

// String returns the string representation of a tier.
func (t Tier) String() string {
	return string(t)
}

// Tiers returns all defined tiers in conventional trust order.
func Tiers() []Tier {
	return []Tier{TierManufacturer, TierReviewSite, TierRetailer, TierInferred, TierHeuristic}
}

// IsValid reports whether the tier is one of the defined constants.
func (t Tier) IsValid() bool {
	return slices.Contains(Tiers(), t)
}

// SourceKind distinguishes the two adapter families the orchestrator
// schedules: priced storefront listings vs manufacturer spec pages.
type SourceKind string

// Adapter families.
const (
	KindRetailer     SourceKind = "retailer"
	KindManufacturer SourceKind = "manufacturer"
)

// String returns the string representation of a source kind.
func (k SourceKind) String() string {
	return string(k)
}
