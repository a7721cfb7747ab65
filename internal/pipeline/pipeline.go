// Package pipeline orchestrates one catalog run: retailer search,
// detail enrichment, manufacturer spec scraping, reconciliation. Source
// failures are recorded and isolated; a run completes with whatever
// subset of sources cooperated. Only the catalog store aborts a run.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/powderline/quiver/internal/identity"
	"github.com/powderline/quiver/internal/normalize"
	"github.com/powderline/quiver/internal/reconcile"
	"github.com/powderline/quiver/internal/sources"
	"github.com/powderline/quiver/internal/store"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

const (
	defaultBatchSize     = 4
	defaultSourceTimeout = 5 * time.Minute
)

// Config selects what one run covers.
type Config struct {
	// Retailers and Manufacturers restrict each phase to the named
	// source IDs. Empty means every registered source of that kind.
	Retailers     []string
	Manufacturers []string

	// Sites is an explicit mixed list of source IDs across both kinds.
	// When given it overrides Retailers and Manufacturers.
	Sites []string

	// SkipEnrichment disables the detail-page pass over retailer
	// listings.
	SkipEnrichment bool

	// SkipManufacturers disables the manufacturer spec phase.
	SkipManufacturers bool

	// ExtraScrapedBoards are operator-supplied raw records whose boards
	// are materialized even when no source surfaced them this run. They
	// go through the same identity resolution as adapter output.
	ExtraScrapedBoards []catalog.RawListing

	// BatchSize bounds how many sources fetch concurrently per phase.
	BatchSize int

	// SourceTimeout bounds one source's whole phase contribution.
	SourceTimeout time.Duration
}

// Result is the outcome of one run. Errors holds per-source failures;
// their presence does not make the run unsuccessful.
type Result struct {
	Run      *catalog.Run
	Boards   []*catalog.Board
	Errors   []catalog.SourceError
	Listings int
	Dropped  int
	Ingest   reconcile.IngestResult
}

// Orchestrator wires the registry, normalizer and engine over a store.
type Orchestrator struct {
	store      store.Store
	registry   *sources.Registry
	resolver   *identity.Resolver
	normalizer *normalize.Normalizer
	engine     *reconcile.Engine
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the orchestrator clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator.
func New(st store.Store, registry *sources.Registry, resolver *identity.Resolver, engine *reconcile.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		registry:   registry,
		resolver:   resolver,
		normalizer: normalize.New(resolver),
		engine:     engine,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sourceResult is one source's phase contribution coming off the fan-out
// channel.
type sourceResult struct {
	source   sources.Source
	listings []catalog.RawListing
	specs    []catalog.RawSpec
	err      error
}

// Run executes one full pipeline run. The returned error is non-nil only
// for storage failures or run-level cancellation; everything else lands
// in Result.Errors.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}

	retailerIDs, manufacturerIDs := cfg.Retailers, cfg.Manufacturers
	if len(cfg.Sites) > 0 {
		retailerIDs, manufacturerIDs = cfg.Sites, cfg.Sites
	}
	retailers := o.selectSources(catalog.KindRetailer, retailerIDs)
	var manufacturers []sources.Source
	if !cfg.SkipManufacturers {
		manufacturers = o.selectSources(catalog.KindManufacturer, manufacturerIDs)
	}

	run := &catalog.Run{
		StartedAt:      o.now(),
		SourcesQueried: sourceIDs(retailers, manufacturers),
		Status:         catalog.RunPending,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	ctx = logging.WithRun(ctx, run.ID)
	log := logging.FromContext(ctx)
	log.Info().
		Int("retailers", len(retailers)).
		Int("manufacturers", len(manufacturers)).
		Msg("Starting catalog run")

	run.Status = catalog.RunRunning
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	result := &Result{Run: run}

	retailerRaws, err := o.searchPhase(ctx, cfg, retailers, result)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipEnrichment {
		if err := o.enrichPhase(ctx, cfg, retailers, retailerRaws, result); err != nil {
			return nil, err
		}
	}

	if len(manufacturers) > 0 {
		if err := o.specPhase(ctx, cfg, manufacturers, result); err != nil {
			return nil, err
		}
	}

	if err := o.ensureExtraBoards(ctx, cfg.ExtraScrapedBoards); err != nil {
		return nil, err
	}

	boards, err := o.store.Boards(ctx)
	if err != nil {
		return nil, err
	}
	result.Boards = boards

	completed := o.now()
	run.CompletedAt = &completed
	run.Status = catalog.RunComplete
	if err := o.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	log.Info().
		Int("listings", result.Listings).
		Int("dropped", result.Dropped).
		Int("boards", len(result.Boards)).
		Int("source_errors", len(result.Errors)).
		Msg("Catalog run complete")

	return result, nil
}

// searchPhase fans out retailer listing searches, then normalizes and
// persists the results sequentially. Returns the raw records per source
// for the enrichment phase.
func (o *Orchestrator) searchPhase(ctx context.Context, cfg Config, retailers []sources.Source, result *Result) (map[string][]catalog.RawListing, error) {
	raws := make(map[string][]catalog.RawListing)

	results := o.fanOut(ctx, cfg, retailers, func(ctx context.Context, src sources.Source) sourceResult {
		listings, err := src.SearchListings(ctx)
		return sourceResult{source: src, listings: listings, err: err}
	})

	for _, res := range results {
		if res.err != nil {
			result.Errors = append(result.Errors, catalog.SourceError{
				SourceID: res.source.ID(), Message: res.err.Error(),
			})
			continue
		}
		raws[res.source.ID()] = res.listings

		locale := res.source.Locale()
		for _, raw := range res.listings {
			listing, err := o.normalizer.Listing(raw, result.Run.ID, locale, o.now())
			if err != nil {
				if errors.IsValidationError(err) {
					result.Dropped++
					logging.FromContext(ctx).Debug().
						Str("source_id", res.source.ID()).
						Str("url", raw.URL).
						Err(err).
						Msg("Dropped raw record")
					continue
				}
				return nil, err
			}
			if err := o.ensureBoard(ctx, listing.BoardKey); err != nil {
				return nil, err
			}
			if err := o.store.PutListing(ctx, listing); err != nil {
				return nil, err
			}
			result.Listings++
		}
	}

	return raws, nil
}

// enrichPhase fans out detail fetches per retailer and ingests the
// resulting claims.
func (o *Orchestrator) enrichPhase(ctx context.Context, cfg Config, retailers []sources.Source, raws map[string][]catalog.RawListing, result *Result) error {
	var enrichable []sources.Source
	for _, src := range retailers {
		if len(raws[src.ID()]) > 0 {
			enrichable = append(enrichable, src)
		}
	}

	results := o.fanOut(ctx, cfg, enrichable, func(ctx context.Context, src sources.Source) sourceResult {
		var specs []catalog.RawSpec
		for _, raw := range raws[src.ID()] {
			detail, err := src.FetchDetail(ctx, raw)
			if err != nil {
				// Keep what this source already yielded.
				return sourceResult{source: src, specs: specs, err: err}
			}
			specs = append(specs, detail...)
		}
		return sourceResult{source: src, specs: specs}
	})

	return o.ingestResults(ctx, results, result)
}

// specPhase fans out manufacturer spec scraping and ingests the claims.
func (o *Orchestrator) specPhase(ctx context.Context, cfg Config, manufacturers []sources.Source, result *Result) error {
	results := o.fanOut(ctx, cfg, manufacturers, func(ctx context.Context, src sources.Source) sourceResult {
		specs, err := src.ScrapeSpecs(ctx)
		return sourceResult{source: src, specs: specs, err: err}
	})

	return o.ingestResults(ctx, results, result)
}

// ingestResults converts raw specs to claims and runs them through the
// engine. A source error does not discard the specs it managed to yield.
func (o *Orchestrator) ingestResults(ctx context.Context, results []sourceResult, result *Result) error {
	for _, res := range results {
		if res.err != nil {
			result.Errors = append(result.Errors, catalog.SourceError{
				SourceID: res.source.ID(), Message: res.err.Error(),
			})
		}

		claims, dropped := o.claimsFromRaw(ctx, res.specs)
		result.Dropped += dropped
		if len(claims) == 0 {
			continue
		}

		ingested, err := o.engine.Ingest(ctx, claims)
		if err != nil {
			return err
		}
		result.Ingest.Inserted += ingested.Inserted
		result.Ingest.Updated += ingested.Updated
		result.Ingest.Skipped += ingested.Skipped
	}
	return nil
}

// claimsFromRaw resolves raw spec identities into claims, dropping
// records whose identity cannot be resolved.
func (o *Orchestrator) claimsFromRaw(ctx context.Context, specs []catalog.RawSpec) ([]catalog.SpecClaim, int) {
	var (
		claims  []catalog.SpecClaim
		dropped int
	)
	for _, raw := range specs {
		key, err := o.resolver.Resolve(raw.Brand, raw.Model, normalize.CategorySignal(raw.Category))
		if err != nil {
			dropped++
			logging.FromContext(ctx).Debug().
				Str("source_id", raw.SourceID).
				Str("brand", raw.Brand).
				Str("model", raw.Model).
				Err(err).
				Msg("Dropped spec claim")
			continue
		}
		observed := raw.ObservedAt
		if observed.IsZero() {
			observed = o.now()
		}
		claims = append(claims, catalog.SpecClaim{
			BoardKey:   key,
			Field:      raw.Field,
			SourceID:   raw.SourceID,
			Tier:       raw.Tier,
			Value:      raw.Value,
			ObservedAt: observed,
		})
	}
	return claims, dropped
}

// fanOut runs one phase worker per source in fixed-size batches and
// returns results in source order. Each worker gets its own
// timeout-bounded context; a slow source times out alone.
func (o *Orchestrator) fanOut(ctx context.Context, cfg Config, srcs []sources.Source, worker func(context.Context, sources.Source) sourceResult) []sourceResult {
	results := make([]sourceResult, len(srcs))

	for start := 0; start < len(srcs); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(srcs))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				src := srcs[i]
				srcCtx, cancel := context.WithTimeout(logging.WithSource(ctx, src.ID()), cfg.SourceTimeout)
				defer cancel()
				results[i] = worker(srcCtx, src)
			}(i)
		}
		wg.Wait()
	}

	return results
}

// selectSources returns the registered sources of one kind, filtered to
// the requested IDs when given. Unknown IDs are ignored; the run reports
// only sources it actually queried.
func (o *Orchestrator) selectSources(kind catalog.SourceKind, ids []string) []sources.Source {
	all := o.registry.ByKind(kind)
	if len(ids) == 0 {
		return all
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []sources.Source
	for _, src := range all {
		if want[src.ID()] {
			out = append(out, src)
		}
	}
	return out
}

// ensureBoard creates a catalog board on first sighting so every listing
// references a board that went through identity resolution.
func (o *Orchestrator) ensureBoard(ctx context.Context, key catalog.BoardKey) error {
	_, err := o.store.Board(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.IsNotFound(err) {
		return err
	}
	return o.store.PutBoard(ctx, catalog.NewBoard(key, o.now()))
}

// ensureExtraBoards materializes operator-pinned boards. The records run
// through the identity resolver like any adapter output, so two spellings
// of the same board cannot mint distinct catalog entries. Operator input
// that fails identity resolution aborts the run.
func (o *Orchestrator) ensureExtraBoards(ctx context.Context, raws []catalog.RawListing) error {
	for _, raw := range raws {
		model := raw.Model
		if model == "" {
			model = raw.Title
		}
		key, err := o.resolver.Resolve(raw.Brand, model, o.normalizer.GenderSignal(raw))
		if err != nil {
			return err
		}
		if err := o.ensureBoard(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func sourceIDs(groups ...[]sources.Source) []string {
	var ids []string
	for _, group := range groups {
		for _, src := range group {
			ids = append(ids, src.ID())
		}
	}
	return ids
}
