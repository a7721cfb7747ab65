// Package sources defines the adapter capability the orchestrator
// schedules. An adapter produces loosely-typed raw records; everything
// downstream (identity, normalization, reconciliation) is source-agnostic.
// Site specifics live in selector configuration, not code: the one generic
// HTML adapter serves every configured storefront and manufacturer.
package sources

import (
	"context"
	"sort"
	"sync"

	"github.com/powderline/quiver/internal/normalize"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// Source is one configured upstream site.
type Source interface {
	// ID is the stable source identifier used in claims and run errors.
	ID() string

	// Kind reports which orchestrator phase schedules this source.
	Kind() catalog.SourceKind

	// Tier is the trust class of this source's spec claims.
	Tier() catalog.Tier

	// Locale is the fixed currency/region of this source's prices.
	Locale() normalize.Locale

	// SearchListings walks the source's listing pages and extracts one
	// raw record per product tile. Retailer sources only.
	SearchListings(ctx context.Context) ([]catalog.RawListing, error)

	// FetchDetail extracts spec claims from one listing's detail page,
	// attributed at this source's tier. Retailer enrichment phase.
	FetchDetail(ctx context.Context, listing catalog.RawListing) ([]catalog.RawSpec, error)

	// ScrapeSpecs walks the source's spec pages and extracts claims.
	// Manufacturer sources only.
	ScrapeSpecs(ctx context.Context) ([]catalog.RawSpec, error)
}

// Registry holds the configured sources by ID.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Duplicate IDs are rejected.
func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.ID()]; ok {
		return errors.New("source already registered: " + s.ID())
	}
	r.sources[s.ID()] = s
	return nil
}

// Get returns one source by ID.
func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, errors.NewNotFoundError("source", id)
	}
	return s, nil
}

// List returns every registered source ordered by ID.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ByKind returns the registered sources of one kind, ordered by ID.
func (r *Registry) ByKind(kind catalog.SourceKind) []Source {
	var out []Source
	for _, s := range r.List() {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}
