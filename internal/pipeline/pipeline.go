// Package pipeline sequences one keyword-to-citation run: title
// proposal, provider aggregation, selection, similarity gating,
// metadata reconciliation, citation rendering and the optional PDF
// download.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paperfetch/paperfetch/internal/aggregate"
	"github.com/paperfetch/paperfetch/internal/cache"
	"github.com/paperfetch/paperfetch/internal/citation"
	"github.com/paperfetch/paperfetch/internal/config"
	"github.com/paperfetch/paperfetch/internal/llm"
	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/pdfget"
	"github.com/paperfetch/paperfetch/internal/provider"
	"github.com/paperfetch/paperfetch/internal/reconcile"
	"github.com/paperfetch/paperfetch/internal/selector"
)

// Provider modes.
const (
	ModeAll      = "all"
	ModeAuto     = "auto"
	ModeS2       = provider.NameS2
	ModeOpenAlex = provider.NameOpenAlex
	ModeArXiv    = provider.NameArXiv
)

// Fatal pipeline errors. Provider failures degrade the pool instead.
var (
	// ErrProposalFailed means the title-proposal model call failed;
	// without proposals the llm path cannot proceed.
	ErrProposalFailed = errors.New("title proposal failed")

	// ErrNoCandidates means every provider search came back empty.
	ErrNoCandidates = errors.New("no candidates found")

	// ErrSelectionFailed means the selection strategy could not pick a
	// record.
	ErrSelectionFailed = errors.New("candidate selection failed")
)

// Options are the per-run knobs, populated from CLI flags.
type Options struct {
	OutDir        string
	Limit         int
	ProviderMode  string
	Selector      string
	LLMCandidates int
	LLMTimeout    time.Duration

	MinTitleSimilarity float64

	DownloadPDF      bool
	PDFOutDir        string
	PDFTimeout       time.Duration
	PDFArXivFallback bool

	// CacheDir enables the search cache when non-empty.
	CacheDir string
}

// Result is a successful run's outcome. PDFErr is a warning, never a
// failure: the citation was already written.
type Result struct {
	Paper         paper.Paper
	CitationPath  string
	CitationIndex int

	PDFPath string
	PDFErr  error

	// Failures lists providers that errored during aggregation.
	Failures []aggregate.Failure
}

// Pipeline is a configured, reusable runner.
type Pipeline struct {
	cfg  *config.Config
	opts Options

	s2       provider.Provider
	openAlex provider.Provider
	arXiv    provider.Provider

	store *cache.Store
	now   func() time.Time
}

// New validates options against the loaded config and builds a runner.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if opts.ProviderMode == "" {
		opts.ProviderMode = ModeAll
	}
	switch opts.ProviderMode {
	case ModeAll, ModeAuto, ModeS2, ModeOpenAlex, ModeArXiv:
	default:
		return nil, fmt.Errorf("unknown provider mode %q", opts.ProviderMode)
	}
	if opts.Selector == "" {
		opts.Selector = selector.StrategyLLM
	}
	if opts.Selector != selector.StrategyLLM && opts.Selector != selector.StrategyRule {
		return nil, fmt.Errorf("unknown selector %q", opts.Selector)
	}
	if opts.Selector == selector.StrategyLLM && !cfg.LLMConfigured() {
		return nil, fmt.Errorf("llm selector requires llm.base_url, llm.api_key and llm.model in config")
	}
	if opts.Limit <= 0 {
		opts.Limit = aggregate.DefaultCap
	}

	p := &Pipeline{cfg: cfg, opts: opts, now: time.Now}

	var s2Opts []provider.S2Option
	if key := cfg.Providers.S2APIKey; key != "" {
		s2Opts = append(s2Opts, provider.WithS2APIKey(key))
	}
	p.s2 = provider.NewS2(s2Opts...)

	var oaOpts []provider.OpenAlexOption
	if email := cfg.Providers.OpenAlexEmail; email != "" {
		oaOpts = append(oaOpts, provider.WithContactEmail(email))
	}
	p.openAlex = provider.NewOpenAlex(oaOpts...)
	p.arXiv = provider.NewArXiv()

	if opts.CacheDir != "" {
		store, err := cache.Open(opts.CacheDir, cache.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("opening search cache: %w", err)
		}
		p.store = store
	}
	return p, nil
}

// Close releases the cache handle, if any.
func (p *Pipeline) Close() error {
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Run turns one keyword into one appended citation entry.
func (p *Pipeline) Run(ctx context.Context, keyword string) (*Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("keyword is empty")
	}

	var client *llm.Client
	if p.opts.Selector == selector.StrategyLLM {
		client = llm.NewClient(llm.Config{
			BaseURL:          p.cfg.LLM.BaseURL,
			APIKey:           p.cfg.LLM.APIKey,
			Model:            p.cfg.LLM.Model,
			DisableReasoning: p.cfg.LLM.DisableReasoning,
			SystemPrompt:     p.cfg.LLM.SystemPrompt,
			Timeout:          p.opts.LLMTimeout,
		})
	}

	// Title proposal (llm path only; the rule path searches the raw
	// keyword).
	var proposals []string
	var proposal llm.Proposal
	if client != nil {
		var err error
		proposal, err = client.ProposeTitles(ctx, keyword)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProposalFailed, err)
		}
		proposals = proposal.Titles
	}

	searchResult := p.search(ctx, keyword, proposals)
	if searchResult.Pool.Len() == 0 {
		return nil, fmt.Errorf("%w (provider failures: %d)", ErrNoCandidates, len(searchResult.Failures))
	}

	strategy := p.strategy(client)
	selection, err := strategy.Select(ctx, keyword, proposals, searchResult.Pool)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSelectionFailed, err)
	}
	chosen := selection.Paper

	// The gate only applies when the model proposed titles; the rule
	// path has no reference title to compare against.
	trace := citation.Trace{
		Keyword:    keyword,
		Provider:   p.opts.ProviderMode,
		SelectedBy: strategy.Name(),
		Reason:     selection.Reason,
	}
	if len(proposals) > 0 {
		gate := selector.NewGate(p.opts.MinTitleSimilarity)
		similarity, err := gate.Check(chosen.Title, proposals[0])
		if err != nil {
			return nil, err
		}
		trace.MatchedTitle = proposals[0]
		trace.Similarity = similarity
		trace.HasSimilarity = true
		trace.ProposedTitles = proposals
		if trace.Reason == "" {
			trace.Reason = proposal.Reason
		}
		// A zero score means the strategy short-circuited without
		// consulting the model; report the proposal confidence instead.
		switch {
		case selection.Score > 0:
			trace.Confidence = selection.Score
			trace.HasConfidence = true
		case proposal.Confidence > 0:
			trace.Confidence = proposal.Confidence
			trace.HasConfidence = true
		}
	} else {
		trace.Score = selection.Score
		trace.HasScore = true
	}

	// Best effort; the unenriched record is still citable.
	reconciler := reconcile.New(p.reconcileProviders()...)
	enriched, _ := reconciler.Enrich(ctx, chosen)

	writer := citation.NewWriter(p.opts.OutDir)
	now := p.now()
	path, index, err := writer.Append(citation.Entry(enriched, trace, now), now)
	if err != nil {
		return nil, fmt.Errorf("writing citation: %w", err)
	}

	result := &Result{
		Paper:         enriched,
		CitationPath:  path,
		CitationIndex: index,
		Failures:      searchResult.Failures,
	}

	if p.opts.DownloadPDF {
		result.PDFPath, result.PDFErr = p.downloadPDF(ctx, enriched)
	}
	return result, nil
}

func (p *Pipeline) strategy(client *llm.Client) selector.Strategy {
	if p.opts.Selector == selector.StrategyLLM {
		return &selector.LLMStrategy{Client: client, PoolSize: p.opts.LLMCandidates}
	}
	return selector.RuleStrategy{}
}

// search runs the aggregation for the configured provider mode. Auto
// mode tries S2 alone and falls back to OpenAlex when S2 rate-limits.
func (p *Pipeline) search(ctx context.Context, keyword string, proposals []string) *aggregate.Result {
	run := func(providers []provider.Provider) *aggregate.Result {
		agg := aggregate.New(providers, p.opts.Limit)
		if len(proposals) > 0 {
			return agg.SearchTitles(ctx, proposals)
		}
		return agg.SearchKeyword(ctx, keyword)
	}

	if p.opts.ProviderMode != ModeAuto {
		return run(p.searchProviders(p.opts.ProviderMode))
	}

	result := run([]provider.Provider{p.cached(p.s2)})
	if result.Pool.Len() > 0 || !allRateLimited(result.Failures) {
		return result
	}
	return run([]provider.Provider{p.cached(p.openAlex)})
}

func allRateLimited(failures []aggregate.Failure) bool {
	if len(failures) == 0 {
		return false
	}
	for _, f := range failures {
		if !provider.IsRateLimited(f.Err) {
			return false
		}
	}
	return true
}

// searchProviders builds the provider set for a non-auto mode.
func (p *Pipeline) searchProviders(mode string) []provider.Provider {
	switch mode {
	case ModeS2:
		return []provider.Provider{p.cached(p.s2)}
	case ModeOpenAlex:
		return []provider.Provider{p.cached(p.openAlex)}
	case ModeArXiv:
		return []provider.Provider{p.cached(p.arXiv)}
	default: // all
		return []provider.Provider{
			p.cached(p.s2),
			p.cached(p.openAlex),
			p.cached(p.arXiv),
		}
	}
}

// reconcileProviders lists backup sources for metadata backfill, in
// preference order. Uncached: reconciliation wants fresh field values.
func (p *Pipeline) reconcileProviders() []provider.Provider {
	return []provider.Provider{p.s2, p.openAlex}
}

func (p *Pipeline) cached(inner provider.Provider) provider.Provider {
	if p.store == nil {
		return inner
	}
	return cache.Wrap(inner, p.store)
}

func (p *Pipeline) downloadPDF(ctx context.Context, record paper.Paper) (string, error) {
	opts := []pdfget.Option{pdfget.WithTimeout(p.opts.PDFTimeout)}
	if p.opts.PDFArXivFallback {
		opts = append(opts, pdfget.WithArXivFallback(p.arXiv))
	}
	fetcher := pdfget.New(opts...)

	dir := p.opts.PDFOutDir
	if dir == "" {
		dir = pdfget.DefaultOutputDir
	}
	return fetcher.Download(ctx, record, dir)
}
