// Package aggregate fans search queries out to the enabled providers
// and merges the results into a deduplicated candidate pool.
package aggregate

import (
	"github.com/paperfetch/paperfetch/internal/paper"
)

// Pool is a deduplicated, insertion-ordered set of candidate records.
// The key is the normalized DOI when present, otherwise the normalized
// title. Insertion order is preserved for deterministic tie-breaking.
type Pool struct {
	papers []paper.Paper
	seen   map[string]bool
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{seen: make(map[string]bool)}
}

// Add inserts a record unless its dedup key is already present or
// empty. Returns true if the record was inserted.
func (p *Pool) Add(record paper.Paper) bool {
	key := record.DedupKey()
	if key == "" || p.seen[key] {
		return false
	}
	p.seen[key] = true
	p.papers = append(p.papers, record)
	return true
}

// AddAll inserts records in order.
func (p *Pool) AddAll(records []paper.Paper) {
	for _, record := range records {
		p.Add(record)
	}
}

// Papers returns the pool contents in insertion order.
func (p *Pool) Papers() []paper.Paper {
	return p.papers
}

// Len returns the number of distinct records.
func (p *Pool) Len() int {
	return len(p.papers)
}
