package catalog

import "time"

// SpecClaim is one source's assertion about one attribute of one board.
// Multiple claims per (board, field) from distinct sources are expected;
// a later claim from the same source overwrites its own prior claim for
// that (board, field).
type SpecClaim struct {
	BoardKey   BoardKey  `json:"board_key" yaml:"board_key"`
	Field      SpecField `json:"field" yaml:"field"`
	SourceID   string    `json:"source_id" yaml:"source_id"`
	Tier       Tier      `json:"tier" yaml:"tier"`
	Value      string    `json:"value" yaml:"value"`
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`
}

// CacheEntry is one cached HTTP response body, keyed by URL and shared
// across all runs. It is the unit of idempotent replay.
type CacheEntry struct {
	URL       string    `json:"url" yaml:"url"`
	Body      []byte    `json:"-" yaml:"-"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}
