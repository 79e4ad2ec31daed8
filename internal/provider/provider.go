// Package provider implements bibliographic search clients that all
// normalize their results into the common paper.Paper record.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// Provider names. These appear in Paper.Source and in trace output.
const (
	NameArXiv    = "arxiv"
	NameOpenAlex = "openalex"
	NameS2       = "s2"
)

const (
	// DefaultTimeout is the per-request HTTP timeout for search calls.
	DefaultTimeout = 30 * time.Second

	// DefaultLimit is the default number of candidates per search.
	DefaultLimit = 25

	// userAgent identifies this tool to provider APIs.
	userAgent = "paperfetch/0.1"

	// maxAttempts bounds retries on transient failures.
	maxAttempts = 3

	// retryBackoff is the base delay between retry attempts. Attempt n
	// waits n*retryBackoff.
	retryBackoff = 500 * time.Millisecond
)

// Provider searches one external bibliographic index.
type Provider interface {
	// Name returns the provider identifier (e.g. "arxiv").
	Name() string

	// Search returns up to limit normalized records for a title or
	// keyword query. An empty result is not an error.
	Search(ctx context.Context, query string, limit int) ([]paper.Paper, error)
}

// DOILookuper is implemented by providers that can resolve a single
// record by DOI. Used by metadata reconciliation.
type DOILookuper interface {
	// LookupDOI returns the record for a DOI, or ErrNotFound.
	LookupDOI(ctx context.Context, doi string) (*paper.Paper, error)
}

// withRetry runs fn up to maxAttempts times, backing off between
// attempts on retryable errors. Rate limits and 4xx errors fail fast.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

// newHTTPClient returns the shared HTTP client configuration.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// clampLimit bounds a caller-supplied limit to [1, max].
func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > max {
		return max
	}
	return limit
}
