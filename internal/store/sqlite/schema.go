package sqlite

// schema creates every table on open. One row per cache URL; listings
// keep one row per (run, retailer, url) so prior runs' observations
// survive as price history.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      TEXT NOT NULL,
	completed_at    TEXT,
	sources_queried TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS boards (
	board_key  TEXT PRIMARY KEY,
	brand      TEXT NOT NULL,
	model      TEXT NOT NULL,
	specs      TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	run_id           INTEGER NOT NULL,
	retailer         TEXT NOT NULL,
	url              TEXT NOT NULL,
	board_key        TEXT NOT NULL,
	price            REAL NOT NULL,
	currency         TEXT NOT NULL,
	region           TEXT NOT NULL,
	condition        TEXT NOT NULL,
	gender           TEXT NOT NULL,
	stock_count      INTEGER,
	discount_percent REAL,
	observed_at      TEXT NOT NULL,
	PRIMARY KEY (run_id, retailer, url)
);

CREATE INDEX IF NOT EXISTS idx_listings_board ON listings (board_key);

CREATE TABLE IF NOT EXISTS claims (
	board_key   TEXT NOT NULL,
	field       TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	tier        TEXT NOT NULL,
	value       TEXT NOT NULL,
	observed_at TEXT NOT NULL,
	PRIMARY KEY (board_key, field, source_id)
);

CREATE INDEX IF NOT EXISTS idx_claims_tier ON claims (tier);

CREATE TABLE IF NOT EXISTS cache_entries (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at TEXT NOT NULL
);
`
