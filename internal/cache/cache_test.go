package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t, time.Hour)

	papers := []paper.Paper{
		{Title: "A Paper", DOI: "10.1/a", Year: 2020, Authors: []string{"A. One"}, Source: "s2"},
		{Title: "B Paper", Year: 2021, Source: "s2"},
	}
	if err := store.Put("s2", "a paper", 25, papers); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get("s2", "a paper", 25)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("cache miss after Put")
	}
	if len(got) != 2 || got[0].DOI != "10.1/a" || got[0].Authors[0] != "A. One" {
		t.Errorf("got %+v", got)
	}

	// Different limit is a different key.
	if _, ok, _ := store.Get("s2", "a paper", 10); ok {
		t.Error("hit on a different limit")
	}
	if _, ok, _ := store.Get("openalex", "a paper", 25); ok {
		t.Error("hit on a different provider")
	}
}

func TestStoreEmptyResultIsCached(t *testing.T) {
	store := openTestStore(t, time.Hour)
	if err := store.Put("arxiv", "nothing here", 25, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get("arxiv", "nothing here", 25)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want cached empty set", ok, err)
	}
	if len(got) != 0 {
		t.Errorf("got %d papers, want 0", len(got))
	}
}

func TestStoreExpiry(t *testing.T) {
	store := openTestStore(t, time.Hour)
	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.Put("s2", "q", 25, []paper.Paper{{Title: "T"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok, err := store.Get("s2", "q", 25); err != nil || ok {
		t.Fatalf("ok=%v err=%v, want expired miss", ok, err)
	}

	// The expired row is gone even at the original time.
	store.now = func() time.Time { return base }
	if _, ok, _ := store.Get("s2", "q", 25); ok {
		t.Error("expired row not removed")
	}
}

type countingProvider struct {
	name    string
	calls   int
	results []paper.Paper
	err     error
}

func (c *countingProvider) Name() string { return c.name }

func (c *countingProvider) Search(_ context.Context, _ string, _ int) ([]paper.Paper, error) {
	c.calls++
	return c.results, c.err
}

func TestWrappedProviderHitsCache(t *testing.T) {
	store := openTestStore(t, time.Hour)
	inner := &countingProvider{name: "s2", results: []paper.Paper{{Title: "T", DOI: "10.1/t"}}}
	cached := Wrap(inner, store)

	for i := 0; i < 3; i++ {
		got, err := cached.Search(context.Background(), "q", 25)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].DOI != "10.1/t" {
			t.Fatalf("got %+v", got)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

func TestWrappedProviderDoesNotCacheFailures(t *testing.T) {
	store := openTestStore(t, time.Hour)
	inner := &countingProvider{name: "s2", err: errors.New("boom")}
	cached := Wrap(inner, store)

	for i := 0; i < 2; i++ {
		if _, err := cached.Search(context.Background(), "q", 25); err == nil {
			t.Fatal("error swallowed")
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2 (failures not cached)", inner.calls)
	}
}
