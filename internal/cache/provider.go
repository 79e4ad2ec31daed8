package cache

import (
	"context"
	"fmt"
	"os"

	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/provider"
)

// Provider decorates a search provider with the store. Lookups by DOI
// are intentionally not cached; they only run once per record anyway.
type Provider struct {
	inner provider.Provider
	store *Store
}

// Wrap returns a caching view of inner.
func Wrap(inner provider.Provider, store *Store) *Provider {
	return &Provider{inner: inner, store: store}
}

// Name returns the wrapped provider's name.
func (p *Provider) Name() string { return p.inner.Name() }

// Search serves from the cache when possible. Cache errors degrade to
// a live search; a broken cache must not break the run.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	if hit, ok, err := p.store.Get(p.inner.Name(), query, limit); err == nil && ok {
		return hit, nil
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "cache read for %s failed: %v\n", p.inner.Name(), err)
	}

	results, err := p.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(p.inner.Name(), query, limit, results); err != nil {
		fmt.Fprintf(os.Stderr, "cache write for %s failed: %v\n", p.inner.Name(), err)
	}
	return results, nil
}
