package memory

import (
	"context"
	"testing"
	"time"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

func TestRunLifecycle(t *testing.T) {
	s := New()
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

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.ID != run.ID {
		t.Errorf("LatestRun().ID = %d, want %d", latest.ID, run.ID)
	}
}

func TestLatestRunOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := &catalog.Run{StartedAt: time.Now().UTC(), Status: catalog.RunComplete}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].ID != 3 || runs[2].ID != 1 {
		t.Errorf("runs not ordered newest first: %d, %d, %d", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestRunNotFound(t *testing.T) {
	s := New()
	if _, err := s.Run(context.Background(), 99); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LatestRun(context.Background()); !errors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound for empty store, got %v", err)
	}
}

func TestBoardRoundTrip(t *testing.T) {
	s := New()
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
	if spec := got.Spec(catalog.SpecFlex); spec == nil || spec.Value != "soft" {
		t.Errorf("flex spec = %+v, want soft", spec)
	}

	// Mutating the returned board must not leak into the store.
	got.SetSpec(catalog.SpecFlex, nil)
	again, err := s.Board(ctx, "gnu|money")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if again.Spec(catalog.SpecFlex) == nil {
		t.Error("store board mutated through returned copy")
	}
}

func TestClaimOverwriteSameSource(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := catalog.SpecClaim{
		BoardKey: "gnu|money", Field: catalog.SpecFlex, SourceID: "gnu",
		Tier: catalog.TierManufacturer, Value: "soft", ObservedAt: time.Now().UTC(),
	}
	if err := s.PutClaim(ctx, first); err != nil {
		t.Fatalf("PutClaim() error = %v", err)
	}

	second := first
	second.Value = "medium"
	if err := s.PutClaim(ctx, second); err != nil {
		t.Fatalf("PutClaim() error = %v", err)
	}

	claims, err := s.ClaimsForField(ctx, "gnu|money", catalog.SpecFlex)
	if err != nil {
		t.Fatalf("ClaimsForField() error = %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("len(claims) = %d, want 1 (same source overwrites)", len(claims))
	}
	if claims[0].Value != "medium" {
		t.Errorf("Value = %q, want medium", claims[0].Value)
	}
}

func TestDeleteClaimsByTier(t *testing.T) {
	s := New()
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

	affected, err := s.DeleteClaimsByTier(ctx, catalog.TierManufacturer)
	if err != nil {
		t.Fatalf("DeleteClaimsByTier() error = %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("affected = %v, want 2 boards", affected)
	}
	if affected[0] != "burton|custom" || affected[1] != "gnu|money" {
		t.Errorf("affected = %v, want sorted keys", affected)
	}

	remaining, err := s.Claims(ctx, "gnu|money")
	if err != nil {
		t.Fatalf("Claims() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Tier != catalog.TierRetailer {
		t.Errorf("remaining = %+v, want only the retailer claim", remaining)
	}
}

func TestListingsForRun(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, l := range []catalog.Listing{
		{RunID: 1, Retailer: "evo", URL: "https://evo.test/a", BoardKey: "gnu|money", Price: 399.99},
		{RunID: 1, Retailer: "backcountry", URL: "https://bc.test/b", BoardKey: "burton|custom", Price: 589.95},
		{RunID: 2, Retailer: "evo", URL: "https://evo.test/a", BoardKey: "gnu|money", Price: 379.99},
	} {
		listing := l
		if err := s.PutListing(ctx, &listing); err != nil {
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
}

func TestCacheEntryRoundTrip(t *testing.T) {
	s := New()
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

	// Overwrite replaces the body.
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
