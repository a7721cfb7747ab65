package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powderline/quiver/internal/identity"
	"github.com/powderline/quiver/internal/normalize"
	"github.com/powderline/quiver/internal/reconcile"
	"github.com/powderline/quiver/internal/sources"
	"github.com/powderline/quiver/internal/store/memory"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

var runTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// stubSource scripts one source's phase responses.
type stubSource struct {
	id        string
	kind      catalog.SourceKind
	tier      catalog.Tier
	listings  []catalog.RawListing
	detail    map[string][]catalog.RawSpec // by listing URL
	specs     []catalog.RawSpec
	searchErr error
	specsErr  error
}

func (s *stubSource) ID() string               { return s.id }
func (s *stubSource) Kind() catalog.SourceKind { return s.kind }
func (s *stubSource) Tier() catalog.Tier       { return s.tier }
func (s *stubSource) Locale() normalize.Locale { return normalize.DefaultLocale }

func (s *stubSource) SearchListings(context.Context) ([]catalog.RawListing, error) {
	return s.listings, s.searchErr
}

func (s *stubSource) FetchDetail(_ context.Context, listing catalog.RawListing) ([]catalog.RawSpec, error) {
	return s.detail[listing.URL], nil
}

func (s *stubSource) ScrapeSpecs(context.Context) ([]catalog.RawSpec, error) {
	return s.specs, s.specsErr
}

func rawListing(source, brand, title, url, price string) catalog.RawListing {
	return catalog.RawListing{SourceID: source, Brand: brand, Title: title, URL: url, Price: price}
}

func rawSpec(source string, tier catalog.Tier, brand, model string, field catalog.SpecField, value string) catalog.RawSpec {
	return catalog.RawSpec{SourceID: source, Tier: tier, Brand: brand, Model: model, Field: field, Value: value}
}

func newTestOrchestrator(t *testing.T, srcs ...sources.Source) (*Orchestrator, *memory.Store) {
	t.Helper()
	st := memory.New()
	reg := sources.NewRegistry()
	for _, src := range srcs {
		require.NoError(t, reg.Register(src))
	}
	resolver := identity.New()
	engine := reconcile.New(st, reconcile.WithClock(func() time.Time { return runTime }))
	return New(st, reg, resolver, engine, WithClock(func() time.Time { return runTime })), st
}

func TestRunEndToEnd(t *testing.T) {
	evo := &stubSource{
		id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{
			rawListing("evo", "GNU", "GNU Money Snowboard", "https://evo.test/gnu-money", "$399.99"),
		},
		detail: map[string][]catalog.RawSpec{
			"https://evo.test/gnu-money": {
				rawSpec("evo", catalog.TierRetailer, "GNU", "Money", catalog.SpecFlex, "medium"),
			},
		},
	}
	gnu := &stubSource{
		id: "gnu", kind: catalog.KindManufacturer, tier: catalog.TierManufacturer,
		specs: []catalog.RawSpec{
			rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money Snowboard", catalog.SpecFlex, "soft"),
			rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money", catalog.SpecProfile, "c3 camber"),
		},
	}

	o, st := newTestOrchestrator(t, evo, gnu)
	result, err := o.Run(context.Background(), Config{})
	require.NoError(t, err)

	assert.Equal(t, catalog.RunComplete, result.Run.Status)
	require.NotNil(t, result.Run.CompletedAt)
	assert.ElementsMatch(t, []string{"evo", "gnu"}, result.Run.SourcesQueried)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Listings)
	assert.Equal(t, 0, result.Dropped)

	// One board, resolved to the same key from every phrasing.
	require.Len(t, result.Boards, 1)
	board := result.Boards[0]
	assert.Equal(t, catalog.BoardKey("gnu|money"), board.Key)

	// Manufacturer claim wins the flex conflict against the retailer.
	flex := board.Spec(catalog.SpecFlex)
	require.NotNil(t, flex)
	assert.Equal(t, "soft", flex.Value)
	assert.Equal(t, catalog.TierManufacturer, flex.Tier)

	profile := board.Spec(catalog.SpecProfile)
	require.NotNil(t, profile)
	assert.Equal(t, "c3 camber", profile.Value)

	// Both claims retained for audit.
	claims, err := st.ClaimsForField(context.Background(), "gnu|money", catalog.SpecFlex)
	require.NoError(t, err)
	assert.Len(t, claims, 2)

	listings, err := st.ListingsForRun(context.Background(), result.Run.ID)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, catalog.BoardKey("gnu|money"), listings[0].BoardKey)
	assert.Equal(t, 399.99, listings[0].Price)
}

func TestSourceFailureIsolation(t *testing.T) {
	working := &stubSource{
		id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{
			rawListing("evo", "GNU", "GNU Money", "https://evo.test/a", "$399.99"),
		},
	}
	broken := &stubSource{
		id: "backcountry", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		searchErr: &errors.FetchError{Source: "backcountry", Blocked: true, Message: "blocked"},
	}

	o, _ := newTestOrchestrator(t, working, broken)
	result, err := o.Run(context.Background(), Config{SkipEnrichment: true})
	require.NoError(t, err, "a failing source never aborts the run")

	assert.Equal(t, catalog.RunComplete, result.Run.Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "backcountry", result.Errors[0].SourceID)

	assert.Equal(t, 1, result.Listings, "the working source's contribution survives")
}

func TestMalformedPriceDropsRecordOnly(t *testing.T) {
	evo := &stubSource{
		id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{
			rawListing("evo", "GNU", "GNU Money", "https://evo.test/a", "Call for price"),
			rawListing("evo", "Burton", "Burton Custom", "https://evo.test/b", "$589.95"),
		},
	}

	o, _ := newTestOrchestrator(t, evo)
	result, err := o.Run(context.Background(), Config{SkipEnrichment: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Listings)
	assert.Equal(t, 1, result.Dropped)
	assert.Empty(t, result.Errors, "a dropped record is not a source failure")
}

func TestConfigFilters(t *testing.T) {
	evo := &stubSource{id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{rawListing("evo", "GNU", "GNU Money", "https://evo.test/a", "$399.99")}}
	bc := &stubSource{id: "backcountry", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{rawListing("backcountry", "GNU", "GNU Money", "https://bc.test/a", "$409.99")}}
	gnu := &stubSource{id: "gnu", kind: catalog.KindManufacturer, tier: catalog.TierManufacturer,
		specs: []catalog.RawSpec{rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money", catalog.SpecFlex, "soft")}}

	o, st := newTestOrchestrator(t, evo, bc, gnu)

	result, err := o.Run(context.Background(), Config{
		Retailers:         []string{"evo"},
		SkipEnrichment:    true,
		SkipManufacturers: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"evo"}, result.Run.SourcesQueried)
	assert.Equal(t, 1, result.Listings)

	// Manufacturers skipped: no claims ingested.
	claims, err := st.Claims(context.Background(), "gnu|money")
	require.NoError(t, err)
	assert.Empty(t, claims)
	assert.Equal(t, reconcile.IngestResult{}, result.Ingest)
}

func TestSitesSelector(t *testing.T) {
	evo := &stubSource{id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{rawListing("evo", "GNU", "GNU Money", "https://evo.test/a", "$399.99")}}
	bc := &stubSource{id: "backcountry", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{rawListing("backcountry", "GNU", "GNU Money", "https://bc.test/a", "$409.99")}}
	gnu := &stubSource{id: "gnu", kind: catalog.KindManufacturer, tier: catalog.TierManufacturer,
		specs: []catalog.RawSpec{rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money", catalog.SpecFlex, "soft")}}

	o, _ := newTestOrchestrator(t, evo, bc, gnu)

	// A mixed explicit source list crosses both kinds and overrides the
	// per-kind filters.
	result, err := o.Run(context.Background(), Config{
		Sites:          []string{"evo", "gnu"},
		Retailers:      []string{"backcountry"},
		SkipEnrichment: true,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"evo", "gnu"}, result.Run.SourcesQueried)
	assert.Equal(t, 1, result.Listings)
	assert.Equal(t, 1, result.Ingest.Inserted)
}

func TestExtraScrapedBoards(t *testing.T) {
	o, st := newTestOrchestrator(t)

	result, err := o.Run(context.Background(), Config{
		ExtraScrapedBoards: []catalog.RawListing{
			{Brand: "Jones", Model: "Flagship Snowboard 162"},
			{Brand: "JONES", Title: "Jones Flagship"},
			{Brand: "GNU", Model: "Money", Category: "Women's"},
		},
	})
	require.NoError(t, err)

	// The two Flagship spellings resolve to one board.
	require.Len(t, result.Boards, 2)

	board, err := st.Board(context.Background(), "jones|flagship")
	require.NoError(t, err)
	assert.Equal(t, "jones", board.Brand)
	assert.Equal(t, "flagship", board.Model)

	_, err = st.Board(context.Background(), "gnu|money|womens")
	require.NoError(t, err)

	_, err = o.Run(context.Background(), Config{
		ExtraScrapedBoards: []catalog.RawListing{{Model: "Custom"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRerunIsDeterministic(t *testing.T) {
	build := func() (*Orchestrator, *memory.Store) {
		evo := &stubSource{
			id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
			listings: []catalog.RawListing{
				rawListing("evo", "GNU", "GNU Money Snowboard", "https://evo.test/a", "$399.99"),
				rawListing("evo", "Burton", "Burton Custom", "https://evo.test/b", "$589.95"),
			},
		}
		gnu := &stubSource{
			id: "gnu", kind: catalog.KindManufacturer, tier: catalog.TierManufacturer,
			specs: []catalog.RawSpec{
				rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money", catalog.SpecFlex, "soft"),
			},
		}
		return newTestOrchestrator(t, evo, gnu)
	}

	o1, st1 := build()
	r1, err := o1.Run(context.Background(), Config{})
	require.NoError(t, err)

	o2, st2 := build()
	r2, err := o2.Run(context.Background(), Config{})
	require.NoError(t, err)

	require.Equal(t, len(r1.Boards), len(r2.Boards))
	for i := range r1.Boards {
		assert.Equal(t, r1.Boards[i].Key, r2.Boards[i].Key)
		assert.Equal(t, r1.Boards[i].Specs, r2.Boards[i].Specs)
	}

	l1, err := st1.ListingsForRun(context.Background(), r1.Run.ID)
	require.NoError(t, err)
	l2, err := st2.ListingsForRun(context.Background(), r2.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, l1, l2)
}

func TestSecondRunUpdatesExistingCatalog(t *testing.T) {
	evo := &stubSource{
		id: "evo", kind: catalog.KindRetailer, tier: catalog.TierRetailer,
		listings: []catalog.RawListing{
			rawListing("evo", "GNU", "GNU Money", "https://evo.test/a", "$399.99"),
		},
	}
	gnu := &stubSource{
		id: "gnu", kind: catalog.KindManufacturer, tier: catalog.TierManufacturer,
		specs: []catalog.RawSpec{
			rawSpec("gnu", catalog.TierManufacturer, "GNU", "Money", catalog.SpecFlex, "soft"),
		},
	}

	o, st := newTestOrchestrator(t, evo, gnu)

	first, err := o.Run(context.Background(), Config{SkipEnrichment: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingest.Inserted)

	// Identical second run: same claims skip, same board, new listing row.
	second, err := o.Run(context.Background(), Config{SkipEnrichment: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Ingest.Inserted)
	assert.Equal(t, 1, second.Ingest.Skipped)
	assert.Len(t, second.Boards, 1)

	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
