// Package identity canonicalizes raw brand/model/gender text into stable
// board keys. Resolution is deterministic: the same physical product
// scraped from any source maps to the same key, regardless of casing,
// whitespace, embedded size/year markers or trailing noise tokens.
package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

var (
	// sizePattern matches trailing board length markers: "154", "157.5",
	// "158W" (wide), optionally suffixed with "cm".
	sizePattern = regexp.MustCompile(`\b1[0-9]{2}(\.[05])?w?(cm)?\b`)

	// yearPattern matches model year markers: "2024", "2023/2024", "23/24".
	yearPattern = regexp.MustCompile(`\b((19|20)\d{2}([/-]\d{2,4})?|\d{2}/\d{2})\b`)
)

// genderMarkers maps free-text tokens embedded in model names to rider
// segments. Matched tokens are stripped from the model and act as a
// segment signal when no stronger signal exists.
var genderMarkers = map[string]catalog.Gender{
	"womens":  catalog.GenderWomens,
	"women's": catalog.GenderWomens,
	"women":   catalog.GenderWomens,
	"ladies":  catalog.GenderWomens,
	"wmns":    catalog.GenderWomens,
	"kids":    catalog.GenderKids,
	"kids'":   catalog.GenderKids,
	"kid's":   catalog.GenderKids,
	"youth":   catalog.GenderKids,
	"junior":  catalog.GenderKids,
	"mens":    catalog.GenderUnisex,
	"men's":   catalog.GenderUnisex,
}

// Resolver derives board keys from raw text. The zero value is not
// usable; construct with New.
type Resolver struct {
	noiseTokens map[string]struct{}
	fold        transform.Transformer
	lower       cases.Caser
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNoiseTokens replaces the default noise-token list. Tokens are
// matched against whole words after folding.
func WithNoiseTokens(tokens ...string) Option {
	return func(r *Resolver) {
		r.noiseTokens = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			r.noiseTokens[strings.ToLower(t)] = struct{}{}
		}
	}
}

// New creates a resolver with the default noise-token list.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		noiseTokens: map[string]struct{}{
			"snowboard":  {},
			"snowboards": {},
		},
		// Strip diacritics so "Völkl" and "Volkl" resolve identically.
		fold:  transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		lower: cases.Lower(language.English),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve canonicalizes raw brand and model text plus a gender signal
// into a board key. The gender argument is the caller's
// already-precedence-resolved signal (explicit category beats free-text
// inference); an empty gender means the caller has no signal. Markers
// embedded in the model text are always stripped but act as a segment
// signal only when the caller passes none: an explicit unisex
// suppresses them.
func (r *Resolver) Resolve(brand, model string, gender catalog.Gender) (catalog.BoardKey, error) {
	b := r.normalize(brand)
	m := r.normalize(model)

	// Strip embedded gender markers before anything else so they can't
	// survive into the model component.
	m, embedded := r.stripGenderMarkers(m)

	// Strip size and year markers.
	m = sizePattern.ReplaceAllString(m, " ")
	m = yearPattern.ReplaceAllString(m, " ")
	m = collapse(m)

	// Strip a repeated brand prefix: "Burton Custom" under brand Burton
	// is just "Custom".
	if b != "" {
		m = strings.TrimSpace(strings.TrimPrefix(m, b+" "))
		if m == b {
			m = ""
		}
	}

	// Strip noise tokens word-wise.
	m = r.stripNoise(m)

	if b == "" || m == "" {
		return "", errors.NewIdentityError(brand, model, "empty brand or model after normalization")
	}

	segment := gender
	if segment == "" {
		segment = embedded
	}

	key := b + "|" + m
	if segment == catalog.GenderWomens || segment == catalog.GenderKids {
		key += "|" + segment.String()
	}
	return catalog.BoardKey(key), nil
}

// normalize folds case and diacritics, trims and collapses whitespace.
func (r *Resolver) normalize(s string) string {
	folded, _, err := transform.String(r.fold, s)
	if err != nil {
		// Fold failures only happen on invalid UTF-8; the raw bytes are
		// still usable for key derivation.
		folded = s
	}
	return collapse(r.lower.String(folded))
}

// stripGenderMarkers removes embedded segment tokens from model text and
// returns the strongest segment they implied.
func (r *Resolver) stripGenderMarkers(model string) (string, catalog.Gender) {
	segment := catalog.GenderUnisex
	words := strings.Fields(model)
	kept := words[:0]
	for _, w := range words {
		if g, ok := genderMarkers[w]; ok {
			if g != catalog.GenderUnisex {
				segment = g
			}
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " "), segment
}

// stripNoise removes noise tokens word-wise.
func (r *Resolver) stripNoise(model string) string {
	words := strings.Fields(model)
	kept := words[:0]
	for _, w := range words {
		if _, ok := r.noiseTokens[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// collapse trims and collapses interior whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
