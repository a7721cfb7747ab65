package catalog

import "strings"

// Condition describes the sale condition of a listed board.
type Condition string

// Listing conditions, from pristine to unknown.
const (
	ConditionNew       Condition = "new"
	ConditionBlemished Condition = "blemished"
	ConditionCloseout  Condition = "closeout"
	ConditionUsed      Condition = "used"
	ConditionUnknown   Condition = "unknown"
)

// String returns the string representation of a condition.
func (c Condition) String() string {
	return string(c)
}

// IsValid reports whether the condition is one of the defined constants.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionBlemished, ConditionCloseout, ConditionUsed, ConditionUnknown:
		return true
	}
	return false
}

// ParseCondition maps free text to a condition constant. Unrecognized
// text maps to ConditionUnknown with ok=false so callers can fall through
// to the next signal in their precedence chain.
func ParseCondition(s string) (Condition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "brand new":
		return ConditionNew, true
	case "blemished", "blem", "cosmetic":
		return ConditionBlemished, true
	case "closeout", "outlet", "clearance":
		return ConditionCloseout, true
	case "used", "demo", "pre-owned", "preowned":
		return ConditionUsed, true
	}
	return ConditionUnknown, false
}

// Gender describes the rider segment a board or listing targets.
type Gender string

// Rider segments. Unisex is the default when no signal says otherwise.
const (
	GenderUnisex Gender = "unisex"
	GenderWomens Gender = "womens"
	GenderKids   Gender = "kids"
)

// String returns the string representation of a gender segment.
func (g Gender) String() string {
	return string(g)
}

// IsValid reports whether the gender is one of the defined constants.
func (g Gender) IsValid() bool {
	switch g {
	case GenderUnisex, GenderWomens, GenderKids:
		return true
	}
	return false
}

// ParseGender maps free text to a gender constant. Unrecognized text maps
// to GenderUnisex with ok=false.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unisex", "mens", "men", "men's":
		return GenderUnisex, true
	case "womens", "women", "women's", "womans", "woman's", "ladies", "female":
		return GenderWomens, true
	case "kids", "kid", "kids'", "youth", "junior", "boys", "girls", "child", "children":
		return GenderKids, true
	}
	return GenderUnisex, false
}
