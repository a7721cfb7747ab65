package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &catalog.Run{
		StartedAt:      time.Now().UTC(),
		SourcesQueried: []string{"evo", "burton"},
		Status:         catalog.RunPending,
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == 0 {
		t.Fatal("CreateRun() did not assign an ID")
	}

	run.Status = catalog.RunComplete
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}

	got, err := s.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Status != catalog.RunComplete {
		t.Errorf("Status = %q, want complete", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
	if len(got.SourcesQueried) != 2 || got.SourcesQueried[0] != "evo" {
		t.Errorf("SourcesQueried = %v", got.SourcesQueried)
	}

	if _, err := s.Run(ctx, 999); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestRunOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestRun(ctx); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound for empty store, got %v", err)
	}

	var last int64
	for i := 0; i < 3; i++ {
		run := &catalog.Run{StartedAt: time.Now().UTC(), Status: catalog.RunComplete}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		last = run.ID
	}

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.ID != last {
		t.Errorf("LatestRun().ID = %d, want %d", latest.ID, last)
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 3 || runs[0].ID != last {
		t.Errorf("Runs() not newest first: %+v", runs)
	}
}

func TestBoardRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	board := catalog.NewBoard("gnu|money", now)
	board.SetSpec(catalog.SpecFlex, &catalog.ResolvedSpec{
		Field: catalog.SpecFlex, Value: "soft", SourceID: "gnu", Tier: catalog.TierManufacturer, ObservedAt: now,
	})
	if err := s.PutBoard(ctx, board); err != nil {
		t.Fatalf("PutBoard() error = %v", err)
	}

	got, err := s.Board(ctx, "gnu|money")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if got.Brand != "gnu" || got.Model != "money" {
		t.Errorf("brand/model = %q/%q", got.Brand, got.Model)
	}
	spec := got.Spec(catalog.SpecFlex)
	if spec == nil || spec.Value != "soft" || spec.Tier != catalog.TierManufacturer {
		t.Errorf("flex spec = %+v", spec)
	}

	// Upsert replaces the spec map.
	board.SetSpec(catalog.SpecFlex, nil)
	if err := s.PutBoard(ctx, board); err != nil {
		t.Fatalf("PutBoard() error = %v", err)
	}
	got, err = s.Board(ctx, "gnu|money")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if got.Spec(catalog.SpecFlex) != nil {
		t.Error("cleared spec survived upsert")
	}

	if _, err := s.Board(ctx, "missing|board"); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimUpsertAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	claims := []catalog.SpecClaim{
		{BoardKey: "gnu|money", Field: catalog.SpecFlex, SourceID: "gnu", Tier: catalog.TierManufacturer, Value: "soft", ObservedAt: now},
		{BoardKey: "gnu|money", Field: catalog.SpecFlex, SourceID: "evo", Tier: catalog.TierRetailer, Value: "medium", ObservedAt: now},
		{BoardKey: "burton|custom", Field: catalog.SpecShape, SourceID: "burton", Tier: catalog.TierManufacturer, Value: "directional", ObservedAt: now},
	}
	for _, c := range claims {
		if err := s.PutClaim(ctx, c); err != nil {
			t.Fatalf("PutClaim() error = %v", err)
		}
	}

	// Same source overwrites its own prior claim instead of adding a row.
	update := claims[0]
	update.Value = "medium-soft"
	if err := s.PutClaim(ctx, update); err != nil {
		t.Fatalf("PutClaim() error = %v", err)
	}
	forField, err := s.ClaimsForField(ctx, "gnu|money", catalog.SpecFlex)
	if err != nil {
		t.Fatalf("ClaimsForField() error = %v", err)
	}
	if len(forField) != 2 {
		t.Fatalf("len(claims) = %d, want 2", len(forField))
	}

	got, err := s.Claim(ctx, "gnu|money", catalog.SpecFlex, "gnu")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if got.Value != "medium-soft" {
		t.Errorf("Value = %q, want medium-soft", got.Value)
	}

	affected, err := s.DeleteClaimsByTier(ctx, catalog.TierManufacturer)
	if err != nil {
		t.Fatalf("DeleteClaimsByTier() error = %v", err)
	}
	if len(affected) != 2 || affected[0] != "burton|custom" || affected[1] != "gnu|money" {
		t.Errorf("affected = %v, want sorted board keys", affected)
	}

	remaining, err := s.Claims(ctx, "gnu|money")
	if err != nil {
		t.Fatalf("Claims() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Tier != catalog.TierRetailer {
		t.Errorf("remaining = %+v, want only the retailer claim", remaining)
	}
}

func TestListingsNullableColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stock := 3
	discount := 25.0
	full := &catalog.Listing{
		RunID: 1, Retailer: "evo", URL: "https://evo.test/a",
		BoardKey: "gnu|money", Price: 449.99, Currency: "USD", Region: "US",
		Condition: catalog.ConditionNew, Gender: catalog.GenderUnisex,
		StockCount: &stock, DiscountPercent: &discount, ObservedAt: now,
	}
	bare := &catalog.Listing{
		RunID: 1, Retailer: "backcountry", URL: "https://bc.test/b",
		BoardKey: "burton|custom", Price: 589.95, Currency: "USD", Region: "US",
		Condition: catalog.ConditionNew, Gender: catalog.GenderUnisex, ObservedAt: now,
	}
	for _, l := range []*catalog.Listing{full, bare} {
		if err := s.PutListing(ctx, l); err != nil {
			t.Fatalf("PutListing() error = %v", err)
		}
	}

	listings, err := s.ListingsForRun(ctx, 1)
	if err != nil {
		t.Fatalf("ListingsForRun() error = %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("len = %d, want 2", len(listings))
	}
	if listings[0].Retailer != "backcountry" {
		t.Errorf("expected retailer-ordered listings, got %q first", listings[0].Retailer)
	}
	if listings[0].StockCount != nil || listings[0].DiscountPercent != nil {
		t.Errorf("nullable columns should round-trip as nil: %+v", listings[0])
	}
	if listings[1].StockCount == nil || *listings[1].StockCount != 3 {
		t.Errorf("StockCount = %v, want 3", listings[1].StockCount)
	}
	if listings[1].DiscountPercent == nil || *listings[1].DiscountPercent != 25.0 {
		t.Errorf("DiscountPercent = %v, want 25", listings[1].DiscountPercent)
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := catalog.CacheEntry{
		URL:       "https://evo.test/snowboards",
		Body:      []byte("<html>boards</html>"),
		FetchedAt: time.Now().UTC(),
	}
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry() error = %v", err)
	}

	got, err := s.CacheEntry(ctx, entry.URL)
	if err != nil {
		t.Fatalf("CacheEntry() error = %v", err)
	}
	if string(got.Body) != "<html>boards</html>" {
		t.Errorf("Body = %q", got.Body)
	}

	entry.Body = []byte("fresh")
	if err := s.PutCacheEntry(ctx, entry); err != nil {
		t.Fatalf("PutCacheEntry() error = %v", err)
	}
	got, err = s.CacheEntry(ctx, entry.URL)
	if err != nil {
		t.Fatalf("CacheEntry() error = %v", err)
	}
	if string(got.Body) != "fresh" {
		t.Errorf("Body = %q, want fresh", got.Body)
	}

	if _, err := s.CacheEntry(ctx, "https://missing.test"); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	board := catalog.NewBoard("lib tech|orca", time.Now().UTC())
	if err := s.PutBoard(ctx, board); err != nil {
		t.Fatalf("PutBoard() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.Board(ctx, "lib tech|orca")
	if err != nil {
		t.Fatalf("Board() after reopen error = %v", err)
	}
	if got.Brand != "lib tech" || got.Model != "orca" {
		t.Errorf("brand/model = %q/%q", got.Brand, got.Model)
	}
}
