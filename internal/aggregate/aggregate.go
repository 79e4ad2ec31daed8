package aggregate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/provider"
)

const (
	// DefaultCap is the overall candidate cap per provider.
	DefaultCap = 50

	// Title queries are narrower than keyword queries, so the per-title
	// limit is clamped to this range regardless of the overall cap.
	minTitleQueryLimit = 10
	maxTitleQueryLimit = 30
)

// Failure records one provider that errored during aggregation. A
// failing provider degrades the pool but does not abort the run.
type Failure struct {
	Provider string
	Query    string
	Err      error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: query %q: %v", f.Provider, f.Query, f.Err)
}

// Result is the outcome of one aggregation pass.
type Result struct {
	Pool     *Pool
	Failures []Failure
}

// Aggregator issues searches against a fixed set of providers.
// Providers run concurrently with each other; ordering of the merged
// pool stays deterministic (provider registration order, then result
// rank) regardless of completion order. Any provider that throttles
// internally (Semantic Scholar) keeps its own requests serialized.
type Aggregator struct {
	providers []provider.Provider
	cap       int
}

// New creates an aggregator over the given providers. Provider order
// determines merge order.
func New(providers []provider.Provider, cap int) *Aggregator {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Aggregator{providers: providers, cap: cap}
}

// Providers returns the registered providers.
func (a *Aggregator) Providers() []provider.Provider {
	return a.providers
}

// SearchTitles issues one search per (title, provider) pair and merges
// everything into a deduplicated pool. Provider errors are collected,
// not returned: the pool simply lacks that provider's results.
func (a *Aggregator) SearchTitles(ctx context.Context, titles []string) *Result {
	perTitleLimit := a.cap
	if perTitleLimit < minTitleQueryLimit {
		perTitleLimit = minTitleQueryLimit
	}
	if perTitleLimit > maxTitleQueryLimit {
		perTitleLimit = maxTitleQueryLimit
	}
	return a.search(ctx, titles, perTitleLimit)
}

// SearchKeyword issues one keyword search per provider with the full
// per-provider cap.
func (a *Aggregator) SearchKeyword(ctx context.Context, keyword string) *Result {
	return a.search(ctx, []string{keyword}, a.cap)
}

func (a *Aggregator) search(ctx context.Context, queries []string, perQueryLimit int) *Result {
	type providerOutput struct {
		papers   []paper.Paper
		failures []Failure
	}
	outputs := make([]providerOutput, len(a.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, prov := range a.providers {
		g.Go(func() error {
			out := &outputs[i]
			for _, query := range queries {
				if len(out.papers) >= a.cap {
					break
				}
				papers, err := prov.Search(gctx, query, perQueryLimit)
				if err != nil {
					out.failures = append(out.failures, Failure{
						Provider: prov.Name(),
						Query:    query,
						Err:      err,
					})
					continue
				}
				out.papers = append(out.papers, papers...)
			}
			if len(out.papers) > a.cap {
				out.papers = out.papers[:a.cap]
			}
			return nil
		})
	}
	// Goroutines never return errors; failures are collected per slot.
	_ = g.Wait()

	result := &Result{Pool: NewPool()}
	for _, out := range outputs {
		result.Pool.AddAll(out.papers)
		result.Failures = append(result.Failures, out.failures...)
	}
	return result
}
