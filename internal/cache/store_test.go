package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pressline/internal/cache"
	"pressline/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry for missing fingerprint, got %#v", entry)
	}
}

func TestAdvanceWithCanceledContextIsNotAStorageFault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Advance(ctx, "cafe0123cafe0123", cache.StageGenerated, nil)
	if err == nil {
		t.Fatal("expected an error from a canceled context")
	}
	if errors.Is(err, cache.ErrIO) {
		t.Fatalf("caller cancellation misreported as storage fault: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAdvanceCreatesEntryAtGenerated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry, err := store.Advance(ctx, "fp-1", cache.StageGenerated, func(e *cache.Entry) {
		e.Topic = "Test Topic"
		e.Title = "A Title"
		e.ArticleBody = "# A Title\n\nBody."
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if entry.Stage != cache.StageGenerated {
		t.Fatalf("expected stage generated, got %s", entry.Stage)
	}

	fetched, err := store.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.Title != "A Title" || fetched.Topic != "Test Topic" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}
}

func TestAdvanceRejectsBackwardAndRepeatTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.AdvanceEntry(t, store, "fp-1", cache.StageGenerated, nil)
	testsupport.AdvanceEntry(t, store, "fp-1", cache.StageMediaResolved, nil)

	cases := []cache.Stage{cache.StageGenerated, cache.StageMediaResolved}
	for _, stage := range cases {
		_, err := store.Advance(ctx, "fp-1", stage, nil)
		if !errors.Is(err, cache.ErrStaleStage) {
			t.Fatalf("advance to %s: expected ErrStaleStage, got %v", stage, err)
		}
	}

	// The failed advances must not have touched the row.
	entry, err := store.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Stage != cache.StageMediaResolved {
		t.Fatalf("expected stage media_resolved after rejected advances, got %s", entry.Stage)
	}
}

func TestAdvanceSkippingStagesIsAllowed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// Forward by more than one stage is still strictly forward.
	entry := testsupport.AdvanceEntry(t, store, "fp-skip", cache.StageMediaResolved, nil)
	if entry.Stage != cache.StageMediaResolved {
		t.Fatalf("expected media_resolved, got %s", entry.Stage)
	}
}

func TestAdvanceUnknownStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Advance(context.Background(), "fp-1", cache.Stage("bogus"), nil); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.AdvanceEntry(t, store, "fp-1", cache.StageGenerated, func(e *cache.Entry) {
		e.Topic = "Durable Topic"
		e.ArticleBody = "body"
	})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	entry, err := reopened.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if entry == nil || entry.Stage != cache.StageGenerated || entry.Topic != "Durable Topic" {
		t.Fatalf("unexpected entry after reopen: %#v", entry)
	}
}

func TestMediaReferenceRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ref := cache.MediaReference{
		ImageURL:    "https://images.example/photo.jpg",
		ImageCredit: "Jordan Photographer",
		VideoRef:    "https://www.youtube.com/embed/abc123",
	}
	testsupport.AdvanceEntry(t, store, "fp-1", cache.StageMediaResolved, func(e *cache.Entry) {
		if err := e.SetMedia(ref); err != nil {
			t.Fatalf("SetMedia failed: %v", err)
		}
	})

	entry, err := store.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, err := entry.Media()
	if err != nil {
		t.Fatalf("Media failed: %v", err)
	}
	if got != ref {
		t.Fatalf("expected %#v, got %#v", ref, got)
	}
}

func TestZeroMediaReferenceStoresEmpty(t *testing.T) {
	entry := &cache.Entry{}
	if err := entry.SetMedia(cache.MediaReference{}); err != nil {
		t.Fatalf("SetMedia failed: %v", err)
	}
	if entry.MediaJSON != "" {
		t.Fatalf("expected empty media column, got %q", entry.MediaJSON)
	}
	got, err := entry.Media()
	if err != nil {
		t.Fatalf("Media failed: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero reference, got %#v", got)
	}
}

func TestStatsCountsPerStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	for i := 0; i < 3; i++ {
		testsupport.AdvanceEntry(t, store, fmt.Sprintf("fp-gen-%d", i), cache.StageGenerated, nil)
	}
	testsupport.AdvanceEntry(t, store, "fp-media", cache.StageMediaResolved, nil)
	testsupport.AdvanceEntry(t, store, "fp-pub", cache.StagePublished, nil)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 5 || stats.Generated != 3 || stats.MediaResolved != 1 || stats.Published != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestListFiltersByStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.AdvanceEntry(t, store, "fp-a", cache.StageGenerated, nil)
	testsupport.AdvanceEntry(t, store, "fp-b", cache.StagePublished, nil)

	published, err := store.List(context.Background(), cache.StagePublished)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(published) != 1 || published[0].Fingerprint != "fp-b" {
		t.Fatalf("unexpected published list: %#v", published)
	}

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
}

func TestResetPartialKeepsPublished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.AdvanceEntry(t, store, "fp-gen", cache.StageGenerated, nil)
	testsupport.AdvanceEntry(t, store, "fp-media", cache.StageMediaResolved, nil)
	testsupport.AdvanceEntry(t, store, "fp-pub", cache.StagePublished, func(e *cache.Entry) {
		e.RemotePostID = 42
	})

	removed, err := store.ResetPartial(context.Background())
	if err != nil {
		t.Fatalf("ResetPartial failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 entries removed, got %d", removed)
	}

	entry, err := store.Get(context.Background(), "fp-pub")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.RemotePostID != 42 {
		t.Fatalf("expected published entry retained, got %#v", entry)
	}
}

func TestStageOrdering(t *testing.T) {
	if !cache.StageMediaResolved.After(cache.StageGenerated) {
		t.Fatal("media_resolved should be after generated")
	}
	if !cache.StageGenerated.After(cache.Stage("")) {
		t.Fatal("generated should be after the empty stage")
	}
	if cache.StageGenerated.After(cache.StageGenerated) {
		t.Fatal("a stage is not after itself")
	}
	if cache.StageGenerated.After(cache.StagePublished) {
		t.Fatal("generated is not after published")
	}
}

func TestParseStage(t *testing.T) {
	stage, ok := cache.ParseStage("  Media_Resolved ")
	if !ok || stage != cache.StageMediaResolved {
		t.Fatalf("expected media_resolved, got %q ok=%v", stage, ok)
	}
	if _, ok := cache.ParseStage("ripping"); ok {
		t.Fatal("expected unknown stage to fail parsing")
	}
}
