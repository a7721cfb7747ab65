package catalog

import "time"

// RawListing is the loosely-typed record a retailer adapter extracts from
// one product tile or detail page. Only SourceID plus (Brand, Model) or
// URL are required; everything else is best-effort free text consumed by
// the identity resolver and listing normalizer. Extra is an open bag for
// source-specific fields no canonical field covers.
type RawListing struct {
	SourceID     string            `json:"source_id" yaml:"source_id"`
	Brand        string            `json:"brand,omitempty" yaml:"brand,omitempty"`
	Model        string            `json:"model,omitempty" yaml:"model,omitempty"`
	Title        string            `json:"title,omitempty" yaml:"title,omitempty"`
	URL          string            `json:"url,omitempty" yaml:"url,omitempty"`
	Price        string            `json:"price,omitempty" yaml:"price,omitempty"`
	SalePrice    string            `json:"sale_price,omitempty" yaml:"sale_price,omitempty"`
	Condition    string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	Category     string            `json:"category,omitempty" yaml:"category,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Availability string            `json:"availability,omitempty" yaml:"availability,omitempty"`
	Extra        map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// RawSpec is one attribute assertion a spec-bearing adapter extracts
// before identity resolution. Tier is fixed by the adapter's
// configuration, not inferred from the record.
type RawSpec struct {
	SourceID   string            `json:"source_id" yaml:"source_id"`
	Tier       Tier              `json:"tier" yaml:"tier"`
	Brand      string            `json:"brand" yaml:"brand"`
	Model      string            `json:"model" yaml:"model"`
	Category   string            `json:"category,omitempty" yaml:"category,omitempty"`
	Field      SpecField         `json:"field" yaml:"field"`
	Value      string            `json:"value" yaml:"value"`
	ObservedAt time.Time         `json:"observed_at,omitempty" yaml:"observed_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}
