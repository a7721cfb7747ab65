// Package normalize maps raw scraped records onto canonical listings.
// Each mapping follows an explicit precedence chain: an explicit source
// field beats a URL keyword, which beats a description keyword, which
// beats the default. Malformed prices exclude the single record, never
// the run.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/powderline/quiver/internal/identity"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// Locale is the fixed currency/region configuration of one source
// adapter. Raw records never carry their own currency.
type Locale struct {
	Currency string
	Region   string
}

// DefaultLocale is used when an adapter has no locale configured.
var DefaultLocale = Locale{Currency: "USD", Region: "US"}

var (
	priceCleaner = regexp.MustCompile(`[$€£,\s]`)
	numberFinder = regexp.MustCompile(`\d+`)
)

// conditionKeywords maps URL/description substrings to conditions,
// checked in order so the more specific terms win.
var conditionKeywords = []struct {
	keyword   string
	condition catalog.Condition
}{
	{"blemished", catalog.ConditionBlemished},
	{"blem", catalog.ConditionBlemished},
	{"closeout", catalog.ConditionCloseout},
	{"outlet", catalog.ConditionCloseout},
	{"clearance", catalog.ConditionCloseout},
	{"pre-owned", catalog.ConditionUsed},
	{"used", catalog.ConditionUsed},
	{"demo", catalog.ConditionUsed},
}

// genderKeywords maps title/URL/description substrings to segments.
// Women's terms are checked first; "mens" would otherwise match inside
// "womens".
var genderKeywords = []struct {
	keyword string
	gender  catalog.Gender
}{
	{"womens", catalog.GenderWomens},
	{"women", catalog.GenderWomens},
	{"ladies", catalog.GenderWomens},
	{"kids", catalog.GenderKids},
	{"youth", catalog.GenderKids},
	{"junior", catalog.GenderKids},
	{"boys", catalog.GenderKids},
	{"girls", catalog.GenderKids},
}

// Normalizer turns raw listings into canonical listings. It owns the
// identity resolution step so a listing can never reference a board that
// bypassed it.
type Normalizer struct {
	resolver *identity.Resolver
}

// New creates a normalizer around an identity resolver.
func New(resolver *identity.Resolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Listing maps one raw record to a canonical listing for a run.
// IdentityError and ValidationError returns are per-record failures the
// caller counts and drops.
func (n *Normalizer) Listing(raw catalog.RawListing, runID int64, locale Locale, now time.Time) (*catalog.Listing, error) {
	if locale.Currency == "" {
		locale = DefaultLocale
	}

	price, sale, err := parsePrices(raw)
	if err != nil {
		return nil, err
	}

	model := raw.Model
	if model == "" {
		model = raw.Title
	}
	key, err := n.resolver.Resolve(raw.Brand, model, n.GenderSignal(raw))
	if err != nil {
		return nil, err
	}

	listing := &catalog.Listing{
		RunID:      runID,
		Retailer:   raw.SourceID,
		URL:        raw.URL,
		BoardKey:   key,
		Price:      sale,
		Currency:   locale.Currency,
		Region:     locale.Region,
		Condition:  n.Condition(raw),
		Gender:     key.Segment(),
		StockCount: stockCount(raw.Availability),
		ObservedAt: now,
	}

	if price > sale {
		discount := (price - sale) / price * 100
		listing.DiscountPercent = &discount
	}

	return listing, nil
}

// Condition derives the sale condition of a raw record. Precedence:
// explicit field, then URL keyword, then description keyword, then "new".
func (n *Normalizer) Condition(raw catalog.RawListing) catalog.Condition {
	if c, ok := catalog.ParseCondition(raw.Condition); ok {
		return c
	}
	if c, ok := matchCondition(raw.URL); ok {
		return c
	}
	if c, ok := matchCondition(raw.Description); ok {
		return c
	}
	return catalog.ConditionNew
}

// Gender derives the rider segment of a raw record. Precedence: explicit
// category field, then title/URL keyword, then description keyword, then
// unisex.
func (n *Normalizer) Gender(raw catalog.RawListing) catalog.Gender {
	if g := n.GenderSignal(raw); g != "" {
		return g
	}
	return catalog.GenderUnisex
}

// GenderSignal is Gender without the unisex default: it returns the
// empty gender when the record carries no signal at all. Identity
// resolution needs the distinction, since an explicit "unisex" category
// must suppress segment markers embedded in the model text while a
// signal-free record must not.
func (n *Normalizer) GenderSignal(raw catalog.RawListing) catalog.Gender {
	if g := CategorySignal(raw.Category); g != "" {
		return g
	}
	if g, ok := matchGender(raw.Title + " " + raw.URL); ok {
		return g
	}
	if g, ok := matchGender(raw.Description); ok {
		return g
	}
	return ""
}

// CategorySignal derives a segment signal from free category text.
// Category text like "Women's Snowboards" is still an explicit signal
// even when it isn't a bare segment token. Returns the empty gender
// when the text carries none.
func CategorySignal(text string) catalog.Gender {
	if g, ok := catalog.ParseGender(text); ok {
		return g
	}
	if g, ok := matchGender(text); ok {
		return g
	}
	return ""
}

// parsePrices extracts (original, sale) prices from a raw record. When
// only one of the two is present it serves as both. A non-numeric or
// negative price is a ValidationError.
func parsePrices(raw catalog.RawListing) (price, sale float64, err error) {
	priceText := raw.Price
	saleText := raw.SalePrice
	if saleText == "" {
		saleText = priceText
	}
	if priceText == "" {
		priceText = saleText
	}
	if saleText == "" {
		return 0, 0, errors.NewValidationError("price", raw.Price, "missing price")
	}

	sale, err = parsePrice(saleText)
	if err != nil {
		return 0, 0, err
	}
	price, err = parsePrice(priceText)
	if err != nil {
		return 0, 0, err
	}
	return price, sale, nil
}

// parsePrice parses one price string, tolerating currency symbols and
// thousands separators.
func parsePrice(s string) (float64, error) {
	cleaned := priceCleaner.ReplaceAllString(s, "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, errors.NewValidationError("price", s, "non-numeric price")
	}
	if v < 0 {
		return 0, errors.NewValidationError("price", s, "negative price")
	}
	return v, nil
}

// stockCount extracts a numeric stock count from free-text availability,
// e.g. "Only 3 left!" -> 3. Returns nil when no number is present.
func stockCount(availability string) *int {
	match := numberFinder.FindString(availability)
	if match == "" {
		return nil
	}
	v, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &v
}

func matchCondition(text string) (catalog.Condition, bool) {
	lower := strings.ToLower(text)
	for _, kw := range conditionKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.condition, true
		}
	}
	return catalog.ConditionUnknown, false
}

func matchGender(text string) (catalog.Gender, bool) {
	lower := strings.ToLower(text)
	for _, kw := range genderKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.gender, true
		}
	}
	return catalog.GenderUnisex, false
}
