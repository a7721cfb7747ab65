// Package memory provides an in-memory catalog store. It backs tests and
// ephemeral pipeline runs; nothing survives process exit.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// claimKey identifies one claim row: a later claim from the same source
// for the same (board, field) overwrites its own prior claim.
type claimKey struct {
	board  catalog.BoardKey
	field  catalog.SpecField
	source string
}

// listingKey identifies one per-run priced observation.
type listingKey struct {
	runID    int64
	retailer string
	url      string
}

// Store is a thread-safe in-memory catalog store.
type Store struct {
	mu       sync.RWMutex
	nextRun  int64
	runs     map[int64]catalog.Run
	boards   map[catalog.BoardKey]catalog.Board
	listings map[listingKey]catalog.Listing
	claims   map[claimKey]catalog.SpecClaim
	cache    map[string]catalog.CacheEntry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextRun:  1,
		runs:     make(map[int64]catalog.Run),
		boards:   make(map[catalog.BoardKey]catalog.Board),
		listings: make(map[listingKey]catalog.Listing),
		claims:   make(map[claimKey]catalog.SpecClaim),
		cache:    make(map[string]catalog.CacheEntry),
	}
}

// CreateRun stores a new run and assigns its ID.
func (s *Store) CreateRun(_ context.Context, run *catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = s.nextRun
	s.nextRun++
	s.runs[run.ID] = *run
	return nil
}

// UpdateRun overwrites a stored run.
func (s *Store) UpdateRun(_ context.Context, run *catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return errors.NewNotFoundError("run", itoa(run.ID))
	}
	s.runs[run.ID] = *run
	return nil
}

// Run returns one run by ID.
func (s *Store) Run(_ context.Context, id int64) (*catalog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, errors.NewNotFoundError("run", itoa(id))
	}
	return &run, nil
}

// Runs returns all runs, newest first.
func (s *Store) Runs(_ context.Context) ([]*catalog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]*catalog.Run, 0, len(s.runs))
	for id := range s.runs {
		run := s.runs[id]
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

// LatestRun returns the most recent run.
func (s *Store) LatestRun(ctx context.Context) (*catalog.Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewNotFoundError("run", "latest")
	}
	return runs[0], nil
}

// Board returns one board by key.
func (s *Store) Board(_ context.Context, key catalog.BoardKey) (*catalog.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[key]
	if !ok {
		return nil, errors.NewNotFoundError("board", key.String())
	}
	copied := board
	copied.Specs = copySpecs(board.Specs)
	return &copied, nil
}

// PutBoard stores a board, overwriting any prior version.
func (s *Store) PutBoard(_ context.Context, board *catalog.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *board
	copied.Specs = copySpecs(board.Specs)
	s.boards[board.Key] = copied
	return nil
}

// Boards returns all boards ordered by key.
func (s *Store) Boards(_ context.Context) ([]*catalog.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	boards := make([]*catalog.Board, 0, len(s.boards))
	for key := range s.boards {
		board := s.boards[key]
		board.Specs = copySpecs(board.Specs)
		boards = append(boards, &board)
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].Key < boards[j].Key })
	return boards, nil
}

// PutListing stores one per-run observation, keyed by (run, retailer, url).
func (s *Store) PutListing(_ context.Context, listing *catalog.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listingKey{listing.RunID, listing.Retailer, listing.URL}] = *listing
	return nil
}

// ListingsForRun returns the listings of one run, ordered by retailer
// then URL for deterministic projections.
func (s *Store) ListingsForRun(_ context.Context, runID int64) ([]*catalog.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var listings []*catalog.Listing
	for k := range s.listings {
		if k.runID != runID {
			continue
		}
		l := s.listings[k]
		listings = append(listings, &l)
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].Retailer != listings[j].Retailer {
			return listings[i].Retailer < listings[j].Retailer
		}
		return listings[i].URL < listings[j].URL
	})
	return listings, nil
}

// Claim returns one claim row, or ErrNotFound.
func (s *Store) Claim(_ context.Context, key catalog.BoardKey, field catalog.SpecField, sourceID string) (*catalog.SpecClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[claimKey{key, field, sourceID}]
	if !ok {
		return nil, errors.NewNotFoundError("claim", key.String()+"/"+string(field)+"/"+sourceID)
	}
	return &claim, nil
}

// PutClaim stores a claim, overwriting the same source's prior claim for
// that (board, field).
func (s *Store) PutClaim(_ context.Context, claim catalog.SpecClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claimKey{claim.BoardKey, claim.Field, claim.SourceID}] = claim
	return nil
}

// Claims returns every claim for one board, in deterministic order.
func (s *Store) Claims(_ context.Context, key catalog.BoardKey) ([]catalog.SpecClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []catalog.SpecClaim
	for k := range s.claims {
		if k.board == key {
			claims = append(claims, s.claims[k])
		}
	}
	sortClaims(claims)
	return claims, nil
}

// ClaimsForField returns every claim for one (board, field).
func (s *Store) ClaimsForField(_ context.Context, key catalog.BoardKey, field catalog.SpecField) ([]catalog.SpecClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var claims []catalog.SpecClaim
	for k := range s.claims {
		if k.board == key && k.field == field {
			claims = append(claims, s.claims[k])
		}
	}
	sortClaims(claims)
	return claims, nil
}

// DeleteClaimsByTier removes every claim of one tier and returns the
// affected board keys.
func (s *Store) DeleteClaimsByTier(_ context.Context, tier catalog.Tier) ([]catalog.BoardKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	affected := make(map[catalog.BoardKey]struct{})
	for k, claim := range s.claims {
		if claim.Tier == tier {
			affected[k.board] = struct{}{}
			delete(s.claims, k)
		}
	}
	keys := make([]catalog.BoardKey, 0, len(affected))
	for key := range affected {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// CacheEntry returns one cached response body, or ErrNotFound.
func (s *Store) CacheEntry(_ context.Context, url string) (*catalog.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[url]
	if !ok {
		return nil, errors.NewNotFoundError("cache_entry", url)
	}
	copied := entry
	copied.Body = append([]byte(nil), entry.Body...)
	return &copied, nil
}

// PutCacheEntry stores one cached response body, overwriting any prior
// entry for the URL.
func (s *Store) PutCacheEntry(_ context.Context, entry catalog.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Body = append([]byte(nil), entry.Body...)
	s.cache[entry.URL] = entry
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func copySpecs(specs map[catalog.SpecField]*catalog.ResolvedSpec) map[catalog.SpecField]*catalog.ResolvedSpec {
	if specs == nil {
		return nil
	}
	copied := make(map[catalog.SpecField]*catalog.ResolvedSpec, len(specs))
	for field, spec := range specs {
		if spec == nil {
			continue
		}
		s := *spec
		copied[field] = &s
	}
	return copied
}

func sortClaims(claims []catalog.SpecClaim) {
	sort.Slice(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.SourceID < b.SourceID
	})
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
