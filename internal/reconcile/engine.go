package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
	"github.com/powderline/quiver/pkg/logging"
)

// Store is the slice of catalog storage the engine needs. The full store
// in internal/store satisfies it.
type Store interface {
	Board(ctx context.Context, key catalog.BoardKey) (*catalog.Board, error)
	PutBoard(ctx context.Context, board *catalog.Board) error
	Boards(ctx context.Context) ([]*catalog.Board, error)

	Claim(ctx context.Context, key catalog.BoardKey, field catalog.SpecField, sourceID string) (*catalog.SpecClaim, error)
	PutClaim(ctx context.Context, claim catalog.SpecClaim) error
	Claims(ctx context.Context, key catalog.BoardKey) ([]catalog.SpecClaim, error)
	ClaimsForField(ctx context.Context, key catalog.BoardKey, field catalog.SpecField) ([]catalog.SpecClaim, error)
	DeleteClaimsByTier(ctx context.Context, tier catalog.Tier) ([]catalog.BoardKey, error)
}

// IngestResult accounts for one batch of claims.
type IngestResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// FieldProvenance exposes one field's resolution with every claim that
// competed for it, for audit display.
type FieldProvenance struct {
	Field    catalog.SpecField     `json:"field" yaml:"field"`
	Resolved *catalog.ResolvedSpec `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	Claims   []catalog.SpecClaim   `json:"claims" yaml:"claims"`
}

// Engine reconciles spec claims against a store.
type Engine struct {
	store Store
	order Order
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithOrder replaces the default tier precedence list.
func WithOrder(order Order) Option {
	return func(e *Engine) {
		if len(order) > 0 {
			e.order = order
		}
	}
}

// WithClock replaces the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine over a store with the default tier order.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		order: DefaultOrder(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Order returns the engine's tier precedence list.
func (e *Engine) Order() Order {
	return e.order
}

// Resolve picks the winning claim for one (board, field) from the given
// claims. It is pure: same claims and same order always yield the same
// result regardless of slice order. Returns nil when no claim carries a
// value.
func (e *Engine) Resolve(key catalog.BoardKey, field catalog.SpecField, claims []catalog.SpecClaim) *catalog.ResolvedSpec {
	var best *catalog.SpecClaim
	for i := range claims {
		c := &claims[i]
		if c.BoardKey != key || c.Field != field || c.Value == "" {
			continue
		}
		if best == nil || e.beats(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return &catalog.ResolvedSpec{
		Field:      field,
		Value:      best.Value,
		SourceID:   best.SourceID,
		Tier:       best.Tier,
		ObservedAt: best.ObservedAt,
	}
}

// beats reports whether claim a outranks claim b: higher tier first,
// then more recent observation, then source id for a stable total order.
func (e *Engine) beats(a, b *catalog.SpecClaim) bool {
	ra, rb := e.order.Rank(a.Tier), e.order.Rank(b.Tier)
	if ra != rb {
		return ra < rb
	}
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.SourceID < b.SourceID
}

// Ingest stores a batch of claims and re-reconciles every affected
// (board, field). A claim is "updated" when the same (board, field,
// source) existed with a different value, "skipped" when identical, and
// "inserted" otherwise. Boards are created on first sighting.
func (e *Engine) Ingest(ctx context.Context, claims []catalog.SpecClaim) (IngestResult, error) {
	var result IngestResult
	log := logging.FromContext(ctx)

	for _, claim := range claims {
		if !claim.BoardKey.IsValid() {
			return result, errors.NewValidationError("board_key", claim.BoardKey.String(), "invalid board key")
		}
		if claim.ObservedAt.IsZero() {
			claim.ObservedAt = e.now()
		}

		prior, err := e.store.Claim(ctx, claim.BoardKey, claim.Field, claim.SourceID)
		if err != nil && !errors.IsNotFound(err) {
			return result, err
		}

		switch {
		case prior == nil:
			result.Inserted++
		case prior.Value == claim.Value:
			result.Skipped++
			continue
		default:
			result.Updated++
			log.Debug().
				Str("board_key", claim.BoardKey.String()).
				Str("field", string(claim.Field)).
				Str("source_id", claim.SourceID).
				Str("old", prior.Value).
				Str("new", claim.Value).
				Msg("Source revised its claim")
		}

		if err := e.store.PutClaim(ctx, claim); err != nil {
			return result, err
		}
		if err := e.reresolveField(ctx, claim.BoardKey, claim.Field); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ReconcileBoard re-resolves every field of one board from its stored
// claims.
func (e *Engine) ReconcileBoard(ctx context.Context, key catalog.BoardKey) error {
	claims, err := e.store.Claims(ctx, key)
	if err != nil {
		return err
	}

	board, err := e.boardFor(ctx, key)
	if err != nil {
		return err
	}

	for _, field := range catalog.SpecFields() {
		board.SetSpec(field, e.Resolve(key, field, claims))
	}
	board.UpdatedAt = e.now()
	return e.store.PutBoard(ctx, board)
}

// ReconcileAll re-resolves every board in the catalog. Used by the
// maintenance surface after precedence-order changes.
func (e *Engine) ReconcileAll(ctx context.Context) (int, error) {
	boards, err := e.store.Boards(ctx)
	if err != nil {
		return 0, err
	}
	for _, board := range boards {
		if err := e.ReconcileBoard(ctx, board.Key); err != nil {
			return 0, err
		}
	}
	return len(boards), nil
}

// PurgeTier deletes every claim of one source tier and re-reconciles the
// affected boards over the remaining claims, falling back to null where
// none remain. Returns the affected board keys.
func (e *Engine) PurgeTier(ctx context.Context, tier catalog.Tier) ([]catalog.BoardKey, error) {
	if !tier.IsValid() {
		return nil, errors.NewValidationError("tier", tier.String(), "unknown source tier")
	}

	affected, err := e.store.DeleteClaimsByTier(ctx, tier)
	if err != nil {
		return nil, err
	}

	for _, key := range affected {
		if err := e.ReconcileBoard(ctx, key); err != nil {
			return affected, err
		}
	}

	logging.FromContext(ctx).Info().
		Str("tier", tier.String()).
		Int("boards_affected", len(affected)).
		Msg("Purged source tier and re-reconciled")

	return affected, nil
}

// Audit returns per-field provenance for one board: the resolved value
// and every claim that competed for it, ordered by precedence then
// recency.
func (e *Engine) Audit(ctx context.Context, key catalog.BoardKey) ([]FieldProvenance, error) {
	board, err := e.store.Board(ctx, key)
	if err != nil {
		return nil, err
	}
	claims, err := e.store.Claims(ctx, key)
	if err != nil {
		return nil, err
	}

	var audit []FieldProvenance
	for _, field := range catalog.SpecFields() {
		var fieldClaims []catalog.SpecClaim
		for _, c := range claims {
			if c.Field == field {
				fieldClaims = append(fieldClaims, c)
			}
		}
		if len(fieldClaims) == 0 && board.Spec(field) == nil {
			continue
		}
		sort.Slice(fieldClaims, func(i, j int) bool {
			return e.beats(&fieldClaims[i], &fieldClaims[j])
		})
		audit = append(audit, FieldProvenance{
			Field:    field,
			Resolved: board.Spec(field),
			Claims:   fieldClaims,
		})
	}
	return audit, nil
}

// reresolveField re-resolves a single (board, field) after ingestion.
func (e *Engine) reresolveField(ctx context.Context, key catalog.BoardKey, field catalog.SpecField) error {
	claims, err := e.store.ClaimsForField(ctx, key, field)
	if err != nil {
		return err
	}
	board, err := e.boardFor(ctx, key)
	if err != nil {
		return err
	}
	board.SetSpec(field, e.Resolve(key, field, claims))
	board.UpdatedAt = e.now()
	return e.store.PutBoard(ctx, board)
}

// boardFor loads a board, creating it on first sighting.
func (e *Engine) boardFor(ctx context.Context, key catalog.BoardKey) (*catalog.Board, error) {
	board, err := e.store.Board(ctx, key)
	if err == nil {
		return board, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return catalog.NewBoard(key, e.now()), nil
}
