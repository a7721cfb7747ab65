// Package store defines the catalog storage interface the orchestrator
// and reconciliation engine are injected with. All writes are key-scoped
// so concurrent adapter tasks touching disjoint keys never conflict;
// same-key writes are last-writer-wins, acceptable because each key's
// legitimate writer per run is unique.
package store

import (
	"context"

	"github.com/powderline/quiver/pkg/catalog"
)

// Store is the full catalog store. Two implementations exist: memory
// (tests and ephemeral runs) and sqlite (the persistent catalog shared
// across runs).
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *catalog.Run) error // assigns run.ID
	UpdateRun(ctx context.Context, run *catalog.Run) error
	Run(ctx context.Context, id int64) (*catalog.Run, error)
	Runs(ctx context.Context) ([]*catalog.Run, error) // newest first
	LatestRun(ctx context.Context) (*catalog.Run, error)

	// Boards
	Board(ctx context.Context, key catalog.BoardKey) (*catalog.Board, error)
	PutBoard(ctx context.Context, board *catalog.Board) error
	Boards(ctx context.Context) ([]*catalog.Board, error) // ordered by key

	// Listings
	PutListing(ctx context.Context, listing *catalog.Listing) error
	ListingsForRun(ctx context.Context, runID int64) ([]*catalog.Listing, error)

	// Spec claims
	Claim(ctx context.Context, key catalog.BoardKey, field catalog.SpecField, sourceID string) (*catalog.SpecClaim, error)
	PutClaim(ctx context.Context, claim catalog.SpecClaim) error
	Claims(ctx context.Context, key catalog.BoardKey) ([]catalog.SpecClaim, error)
	ClaimsForField(ctx context.Context, key catalog.BoardKey, field catalog.SpecField) ([]catalog.SpecClaim, error)
	DeleteClaimsByTier(ctx context.Context, tier catalog.Tier) ([]catalog.BoardKey, error)

	// HTTP response cache entries
	CacheEntry(ctx context.Context, url string) (*catalog.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry catalog.CacheEntry) error

	Close() error
}
