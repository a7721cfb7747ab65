package sources

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/powderline/quiver/internal/httpcache"
	"github.com/powderline/quiver/internal/normalize"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

// HTMLSource is the generic selector-driven adapter. One instance per
// configured site, sharing nothing but the response cache behind its
// fetcher.
type HTMLSource struct {
	cfg     Config
	fetcher *httpcache.Fetcher
	now     func() time.Time
}

// NewHTML creates an adapter for one site config.
func NewHTML(cfg Config, fetcher *httpcache.Fetcher) *HTMLSource {
	return &HTMLSource{cfg: cfg, fetcher: fetcher, now: time.Now}
}

// ID implements Source.
func (h *HTMLSource) ID() string { return h.cfg.ID }

// Kind implements Source.
func (h *HTMLSource) Kind() catalog.SourceKind { return h.cfg.Kind }

// Tier implements Source.
func (h *HTMLSource) Tier() catalog.Tier { return h.cfg.Tier }

// Locale implements Source.
func (h *HTMLSource) Locale() normalize.Locale { return h.cfg.Locale() }

// SearchListings walks every configured listing page and extracts one raw
// record per tile. Tiles with neither a title nor a model are dropped.
func (h *HTMLSource) SearchListings(ctx context.Context) ([]catalog.RawListing, error) {
	var listings []catalog.RawListing
	sel := h.cfg.Listing

	for _, page := range h.cfg.ListingPages {
		doc, err := h.document(ctx, page)
		if err != nil {
			return listings, err
		}

		doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
			raw := catalog.RawListing{
				SourceID:     h.cfg.ID,
				Brand:        firstText(item, sel.Brand),
				Model:        firstText(item, sel.Model),
				Title:        firstText(item, sel.Title),
				URL:          h.link(page, item, sel.Link),
				Price:        firstText(item, sel.Price),
				SalePrice:    firstText(item, sel.SalePrice),
				Condition:    firstText(item, sel.Condition),
				Category:     firstText(item, sel.Category),
				Availability: firstText(item, sel.Availability),
			}
			if raw.Brand == "" {
				raw.Brand = h.cfg.Brand
			}
			if raw.Model == "" && raw.Title == "" {
				return
			}
			listings = append(listings, raw)
		})
	}

	logging.FromContext(ctx).Debug().
		Str("source_id", h.cfg.ID).
		Int("listings", len(listings)).
		Msg("Extracted listing tiles")

	return listings, nil
}

// FetchDetail extracts spec claims from one listing's detail page using
// the config's detail selectors. Sources without detail selectors
// contribute no enrichment.
func (h *HTMLSource) FetchDetail(ctx context.Context, listing catalog.RawListing) ([]catalog.RawSpec, error) {
	if len(h.cfg.Detail) == 0 || listing.URL == "" {
		return nil, nil
	}

	doc, err := h.document(ctx, listing.URL)
	if err != nil {
		return nil, err
	}

	model := listing.Model
	if model == "" {
		model = listing.Title
	}

	// Walk fields in canonical order so claim batches are deterministic.
	var specs []catalog.RawSpec
	for _, field := range catalog.SpecFields() {
		selector, ok := h.cfg.Detail[field]
		if !ok {
			continue
		}
		value := firstText(doc.Selection, selector)
		if value == "" {
			continue
		}
		specs = append(specs, catalog.RawSpec{
			SourceID:   h.cfg.ID,
			Tier:       h.cfg.Tier,
			Brand:      listing.Brand,
			Model:      model,
			Category:   listing.Category,
			Field:      field,
			Value:      value,
			ObservedAt: h.now(),
		})
	}
	return specs, nil
}

// ScrapeSpecs walks every configured spec page and extracts one claim per
// (item, field) with a non-empty value.
func (h *HTMLSource) ScrapeSpecs(ctx context.Context) ([]catalog.RawSpec, error) {
	var specs []catalog.RawSpec
	sel := h.cfg.Spec

	for _, page := range h.cfg.SpecPages {
		doc, err := h.document(ctx, page)
		if err != nil {
			return specs, err
		}

		doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
			brand := firstText(item, sel.Brand)
			if brand == "" {
				brand = h.cfg.Brand
			}
			model := firstText(item, sel.Model)
			if model == "" {
				return
			}
			category := firstText(item, sel.Category)

			for _, field := range catalog.SpecFields() {
				selector, ok := sel.Fields[field]
				if !ok {
					continue
				}
				value := firstText(item, selector)
				if value == "" {
					continue
				}
				specs = append(specs, catalog.RawSpec{
					SourceID:   h.cfg.ID,
					Tier:       h.cfg.Tier,
					Brand:      brand,
					Model:      model,
					Category:   category,
					Field:      field,
					Value:      value,
					ObservedAt: h.now(),
				})
			}
		})
	}

	logging.FromContext(ctx).Debug().
		Str("source_id", h.cfg.ID).
		Int("claims", len(specs)).
		Msg("Extracted spec claims")

	return specs, nil
}

// document fetches a page through the cache and parses it.
func (h *HTMLSource) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := h.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewParseError(h.cfg.ID, pageURL, "malformed html", err)
	}
	return doc, nil
}

// link resolves the tile's product href against the page URL.
func (h *HTMLSource) link(pageURL string, item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	href := item.Find(selector).First().AttrOr("href", "")
	if href == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// firstText returns the trimmed text of the first match, or "" when the
// selector is unconfigured or matches nothing.
func firstText(root *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(root.Find(selector).First().Text())
}
