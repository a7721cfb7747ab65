// Package catalog defines the core domain types for the quiver system:
// boards, listings, runs, spec claims and the enumerations they share.
// The package holds data only; resolution and reconciliation behavior
// lives in the internal packages that operate on these types.
package catalog

import (
	"strings"
	"time"
)

// BoardKey is the deterministic identity of one physical product variant,
// formatted as "brand|model" or "brand|model|segment". The same board
// scraped from any source resolves to the same key.
type BoardKey string

// String returns the string representation of a board key.
func (k BoardKey) String() string {
	return string(k)
}

// Brand returns the brand component of the key.
func (k BoardKey) Brand() string {
	parts := strings.SplitN(string(k), "|", 3)
	return parts[0]
}

// Model returns the model component of the key.
func (k BoardKey) Model() string {
	parts := strings.SplitN(string(k), "|", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Segment returns the gender segment component of the key, or GenderUnisex
// when the key carries no segment suffix.
func (k BoardKey) Segment() Gender {
	parts := strings.SplitN(string(k), "|", 3)
	if len(parts) < 3 {
		return GenderUnisex
	}
	return Gender(parts[2])
}

// IsValid reports whether the key has at least brand and model components.
func (k BoardKey) IsValid() bool {
	parts := strings.SplitN(string(k), "|", 3)
	return len(parts) >= 2 && parts[0] != "" && parts[1] != ""
}

// SpecField names one reconcilable attribute of a board.
type SpecField string

// Spec fields tracked per board.
const (
	SpecFlex     SpecField = "flex"
	SpecProfile  SpecField = "profile"
	SpecShape    SpecField = "shape"
	SpecCategory SpecField = "category"
	SpecAbility  SpecField = "ability"
)

// SpecFields returns all reconcilable spec fields.
func SpecFields() []SpecField {
	return []SpecField{SpecFlex, SpecProfile, SpecShape, SpecCategory, SpecAbility}
}

// ResolvedSpec is the single value chosen for one board attribute after
// reconciliation, annotated with the claim it was resolved from.
type ResolvedSpec struct {
	Field      SpecField `json:"field" yaml:"field"`
	Value      string    `json:"value" yaml:"value"`
	SourceID   string    `json:"source_id" yaml:"source_id"`
	Tier       Tier      `json:"tier" yaml:"tier"`
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`
}

// Board is the canonical catalog entry for one physical product variant.
// Boards are created on first sighting and mutated by every run that
// contributes a relevant claim; they are never deleted, only invalidated
// by maintenance purges.
type Board struct {
	Key       BoardKey                    `json:"board_key" yaml:"board_key"`
	Brand     string                      `json:"brand" yaml:"brand"`
	Model     string                      `json:"model" yaml:"model"`
	Specs     map[SpecField]*ResolvedSpec `json:"specs,omitempty" yaml:"specs,omitempty"`
	CreatedAt time.Time                   `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at" yaml:"updated_at"`
}

// NewBoard creates a board for a key with no resolved specs yet.
func NewBoard(key BoardKey, now time.Time) *Board {
	return &Board{
		Key:       key,
		Brand:     key.Brand(),
		Model:     key.Model(),
		Specs:     make(map[SpecField]*ResolvedSpec),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Spec returns the resolved value for a field, or nil when unresolved.
func (b *Board) Spec(field SpecField) *ResolvedSpec {
	if b.Specs == nil {
		return nil
	}
	return b.Specs[field]
}

// SetSpec records a resolved value for a field. A nil spec clears the
// field back to unresolved.
func (b *Board) SetSpec(field SpecField, spec *ResolvedSpec) {
	if b.Specs == nil {
		b.Specs = make(map[SpecField]*ResolvedSpec)
	}
	if spec == nil {
		delete(b.Specs, field)
		return
	}
	b.Specs[field] = spec
}
