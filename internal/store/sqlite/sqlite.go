// Package sqlite provides the persistent catalog store. Boards, claims
// and the HTTP response cache are shared across runs; listings accumulate
// per run as price history. Failures here are the one error class that
// aborts a run, so every method wraps its cause as a StorageError.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// Store is a sqlite-backed catalog store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a catalog database at path and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapStorage("open", "database", path, err)
	}

	// modernc sqlite serializes writes per connection; a single
	// connection avoids table-lock errors under concurrent adapters.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.WrapStorage("open", "database", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapStorage("open", "schema", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run and assigns its ID.
func (s *Store) CreateRun(ctx context.Context, run *catalog.Run) error {
	sources, err := json.Marshal(run.SourcesQueried)
	if err != nil {
		return errors.WrapStorage("put", "run", "", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, completed_at, sources_queried, status) VALUES (?, ?, ?, ?)`,
		formatTime(run.StartedAt), formatTimePtr(run.CompletedAt), string(sources), run.Status.String())
	if err != nil {
		return errors.WrapStorage("put", "run", "", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.WrapStorage("put", "run", "", err)
	}
	run.ID = id
	return nil
}

// UpdateRun overwrites a stored run.
func (s *Store) UpdateRun(ctx context.Context, run *catalog.Run) error {
	sources, err := json.Marshal(run.SourcesQueried)
	if err != nil {
		return errors.WrapStorage("put", "run", itoa(run.ID), err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET started_at = ?, completed_at = ?, sources_queried = ?, status = ? WHERE id = ?`,
		formatTime(run.StartedAt), formatTimePtr(run.CompletedAt), string(sources), run.Status.String(), run.ID)
	if err != nil {
		return errors.WrapStorage("put", "run", itoa(run.ID), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("run", itoa(run.ID))
	}
	return nil
}

// Run returns one run by ID.
func (s *Store) Run(ctx context.Context, id int64) (*catalog.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, sources_queried, status FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run", itoa(id))
	}
	if err != nil {
		return nil, errors.WrapStorage("get", "run", itoa(id), err)
	}
	return run, nil
}

// Runs returns all runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]*catalog.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, completed_at, sources_queried, status FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, errors.WrapStorage("list", "run", "", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*catalog.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.WrapStorage("list", "run", "", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run.
func (s *Store) LatestRun(ctx context.Context) (*catalog.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, sources_queried, status FROM runs ORDER BY id DESC LIMIT 1`)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run", "latest")
	}
	if err != nil {
		return nil, errors.WrapStorage("get", "run", "latest", err)
	}
	return run, nil
}

// Board returns one board by key.
func (s *Store) Board(ctx context.Context, key catalog.BoardKey) (*catalog.Board, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT board_key, brand, model, specs, created_at, updated_at FROM boards WHERE board_key = ?`, key.String())
	board, err := scanBoard(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("board", key.String())
	}
	if err != nil {
		return nil, errors.WrapStorage("get", "board", key.String(), err)
	}
	return board, nil
}

// PutBoard stores a board, overwriting any prior version.
func (s *Store) PutBoard(ctx context.Context, board *catalog.Board) error {
	specs, err := json.Marshal(board.Specs)
	if err != nil {
		return errors.WrapStorage("put", "board", board.Key.String(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (board_key, brand, model, specs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (board_key) DO UPDATE SET
			brand = excluded.brand,
			model = excluded.model,
			specs = excluded.specs,
			updated_at = excluded.updated_at`,
		board.Key.String(), board.Brand, board.Model, string(specs),
		formatTime(board.CreatedAt), formatTime(board.UpdatedAt))
	if err != nil {
		return errors.WrapStorage("put", "board", board.Key.String(), err)
	}
	return nil
}

// Boards returns all boards ordered by key.
func (s *Store) Boards(ctx context.Context) ([]*catalog.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT board_key, brand, model, specs, created_at, updated_at FROM boards ORDER BY board_key`)
	if err != nil {
		return nil, errors.WrapStorage("list", "board", "", err)
	}
	defer func() { _ = rows.Close() }()

	var boards []*catalog.Board
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, errors.WrapStorage("list", "board", "", err)
		}
		boards = append(boards, board)
	}
	return boards, rows.Err()
}

// PutListing stores one per-run observation.
func (s *Store) PutListing(ctx context.Context, l *catalog.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (run_id, retailer, url, board_key, price, currency, region,
			condition, gender, stock_count, discount_percent, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, retailer, url) DO UPDATE SET
			board_key = excluded.board_key,
			price = excluded.price,
			currency = excluded.currency,
			region = excluded.region,
			condition = excluded.condition,
			gender = excluded.gender,
			stock_count = excluded.stock_count,
			discount_percent = excluded.discount_percent,
			observed_at = excluded.observed_at`,
		l.RunID, l.Retailer, l.URL, l.BoardKey.String(), l.Price, l.Currency, l.Region,
		l.Condition.String(), l.Gender.String(), nullInt(l.StockCount), nullFloat(l.DiscountPercent),
		formatTime(l.ObservedAt))
	if err != nil {
		return errors.WrapStorage("put", "listing", l.URL, err)
	}
	return nil
}

// ListingsForRun returns the listings of one run ordered by retailer then
// URL.
func (s *Store) ListingsForRun(ctx context.Context, runID int64) ([]*catalog.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, retailer, url, board_key, price, currency, region,
			condition, gender, stock_count, discount_percent, observed_at
		FROM listings WHERE run_id = ? ORDER BY retailer, url`, runID)
	if err != nil {
		return nil, errors.WrapStorage("list", "listing", itoa(runID), err)
	}
	defer func() { _ = rows.Close() }()

	var listings []*catalog.Listing
	for rows.Next() {
		var (
			l          catalog.Listing
			key        string
			condition  string
			gender     string
			stock      sql.NullInt64
			discount   sql.NullFloat64
			observedAt string
		)
		if err := rows.Scan(&l.RunID, &l.Retailer, &l.URL, &key, &l.Price, &l.Currency, &l.Region,
			&condition, &gender, &stock, &discount, &observedAt); err != nil {
			return nil, errors.WrapStorage("list", "listing", itoa(runID), err)
		}
		l.BoardKey = catalog.BoardKey(key)
		l.Condition = catalog.Condition(condition)
		l.Gender = catalog.Gender(gender)
		if stock.Valid {
			v := int(stock.Int64)
			l.StockCount = &v
		}
		if discount.Valid {
			v := discount.Float64
			l.DiscountPercent = &v
		}
		l.ObservedAt = parseTime(observedAt)
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// Claim returns one claim row, or ErrNotFound.
func (s *Store) Claim(ctx context.Context, key catalog.BoardKey, field catalog.SpecField, sourceID string) (*catalog.SpecClaim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT board_key, field, source_id, tier, value, observed_at
		FROM claims WHERE board_key = ? AND field = ? AND source_id = ?`,
		key.String(), string(field), sourceID)
	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("claim", key.String()+"/"+string(field)+"/"+sourceID)
	}
	if err != nil {
		return nil, errors.WrapStorage("get", "claim", key.String(), err)
	}
	return claim, nil
}

// PutClaim stores a claim, overwriting the same source's prior claim for
// that (board, field).
func (s *Store) PutClaim(ctx context.Context, claim catalog.SpecClaim) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (board_key, field, source_id, tier, value, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (board_key, field, source_id) DO UPDATE SET
			tier = excluded.tier,
			value = excluded.value,
			observed_at = excluded.observed_at`,
		claim.BoardKey.String(), string(claim.Field), claim.SourceID,
		claim.Tier.String(), claim.Value, formatTime(claim.ObservedAt))
	if err != nil {
		return errors.WrapStorage("put", "claim", claim.BoardKey.String(), err)
	}
	return nil
}

// Claims returns every claim for one board.
func (s *Store) Claims(ctx context.Context, key catalog.BoardKey) ([]catalog.SpecClaim, error) {
	return s.queryClaims(ctx, `
		SELECT board_key, field, source_id, tier, value, observed_at
		FROM claims WHERE board_key = ? ORDER BY field, source_id`, key.String())
}

// ClaimsForField returns every claim for one (board, field).
func (s *Store) ClaimsForField(ctx context.Context, key catalog.BoardKey, field catalog.SpecField) ([]catalog.SpecClaim, error) {
	return s.queryClaims(ctx, `
		SELECT board_key, field, source_id, tier, value, observed_at
		FROM claims WHERE board_key = ? AND field = ? ORDER BY source_id`, key.String(), string(field))
}

// DeleteClaimsByTier removes every claim of one tier and returns the
// affected board keys.
func (s *Store) DeleteClaimsByTier(ctx context.Context, tier catalog.Tier) ([]catalog.BoardKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT board_key FROM claims WHERE tier = ? ORDER BY board_key`, tier.String())
	if err != nil {
		return nil, errors.WrapStorage("delete", "claim", tier.String(), err)
	}
	var affected []catalog.BoardKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return nil, errors.WrapStorage("delete", "claim", tier.String(), err)
		}
		affected = append(affected, catalog.BoardKey(key))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.WrapStorage("delete", "claim", tier.String(), err)
	}
	_ = rows.Close()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE tier = ?`, tier.String()); err != nil {
		return nil, errors.WrapStorage("delete", "claim", tier.String(), err)
	}
	return affected, nil
}

// CacheEntry returns one cached response body, or ErrNotFound.
func (s *Store) CacheEntry(ctx context.Context, url string) (*catalog.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, body, fetched_at FROM cache_entries WHERE url = ?`, url)
	var (
		entry     catalog.CacheEntry
		fetchedAt string
	)
	err := row.Scan(&entry.URL, &entry.Body, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("cache_entry", url)
	}
	if err != nil {
		return nil, errors.WrapStorage("get", "cache_entry", url, err)
	}
	entry.FetchedAt = parseTime(fetchedAt)
	return &entry, nil
}

// PutCacheEntry stores one cached response body, overwriting any prior
// entry for the URL.
func (s *Store) PutCacheEntry(ctx context.Context, entry catalog.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (url, body, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		entry.URL, entry.Body, formatTime(entry.FetchedAt))
	if err != nil {
		return errors.WrapStorage("put", "cache_entry", entry.URL, err)
	}
	return nil
}

func (s *Store) queryClaims(ctx context.Context, query string, args ...any) ([]catalog.SpecClaim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapStorage("list", "claim", "", err)
	}
	defer func() { _ = rows.Close() }()

	var claims []catalog.SpecClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, errors.WrapStorage("list", "claim", "", err)
		}
		claims = append(claims, *claim)
	}
	return claims, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*catalog.Run, error) {
	var (
		run         catalog.Run
		startedAt   string
		completedAt sql.NullString
		sources     string
		status      string
	)
	if err := sc.Scan(&run.ID, &startedAt, &completedAt, &sources, &status); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(sources), &run.SourcesQueried); err != nil {
		return nil, err
	}
	run.Status = catalog.RunStatus(status)
	return &run, nil
}

func scanBoard(sc scanner) (*catalog.Board, error) {
	var (
		board     catalog.Board
		key       string
		specs     string
		createdAt string
		updatedAt string
	)
	if err := sc.Scan(&key, &board.Brand, &board.Model, &specs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	board.Key = catalog.BoardKey(key)
	if err := json.Unmarshal([]byte(specs), &board.Specs); err != nil {
		return nil, err
	}
	board.CreatedAt = parseTime(createdAt)
	board.UpdatedAt = parseTime(updatedAt)
	return &board, nil
}

func scanClaim(sc scanner) (*catalog.SpecClaim, error) {
	var (
		claim      catalog.SpecClaim
		key        string
		field      string
		tier       string
		observedAt string
	)
	if err := sc.Scan(&key, &field, &claim.SourceID, &tier, &claim.Value, &observedAt); err != nil {
		return nil, err
	}
	claim.BoardKey = catalog.BoardKey(key)
	claim.Field = catalog.SpecField(field)
	claim.Tier = catalog.Tier(tier)
	claim.ObservedAt = parseTime(observedAt)
	return &claim, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
