// Package pdfget downloads an open-access PDF for a selected record.
// Candidate URLs are tried in order until one yields a real PDF; an
// optional arXiv re-search supplies extra URLs when everything fails.
package pdfget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/provider"
)

// DefaultTimeout bounds each download attempt, not the whole run.
const DefaultTimeout = 45 * time.Second

// DefaultOutputDir is where PDFs land when no directory is given.
const DefaultOutputDir = "./papers"

const userAgent = "paperfetch/0.1"

// fallbackSearchLimit caps the arXiv re-search.
const fallbackSearchLimit = 3

// ErrNoCandidateURL means the record carries nothing downloadable.
var ErrNoCandidateURL = errors.New("no pdf candidate url in metadata")

// Fetcher downloads PDFs for records.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration

	// fallback, when set, is searched by title after all candidate
	// URLs fail. In practice this is the arXiv provider.
	fallback provider.Provider

	// validate is swappable in tests; real PDF bytes are awkward to
	// fixture.
	validate func(path string) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithArXivFallback enables the title re-search on p.
func WithArXivFallback(p provider.Provider) Option {
	return func(f *Fetcher) { f.fallback = p }
}

// New builds a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.validate == nil {
		f.validate = Validate
	}
	return f
}

// Download fetches the record's PDF into dir and returns the file path.
// When the straight attempts fail and a fallback provider is
// configured, the record is re-searched on it by title and the download
// retried once with the extra URLs.
func (f *Fetcher) Download(ctx context.Context, p paper.Paper, dir string) (string, error) {
	path, err := f.tryURLs(ctx, p, dir)
	if err == nil {
		return path, nil
	}
	if f.fallback == nil || !worthFallback(err) {
		return "", err
	}

	enriched, changed := f.mergeFallback(ctx, p)
	if !changed {
		return "", err
	}
	path, retryErr := f.tryURLs(ctx, enriched, dir)
	if retryErr != nil {
		return "", fmt.Errorf("%w (arxiv fallback: %v)", err, retryErr)
	}
	return path, nil
}

// worthFallback mirrors the failure modes a fresh arXiv URL can fix:
// no URL at all, paywalled landing pages served as HTML, and hosts that
// refuse bot downloads.
func worthFallback(err error) bool {
	if errors.Is(err, ErrNoCandidateURL) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "418") || strings.Contains(msg, "non-pdf")
}

// mergeFallback re-searches the fallback provider by title and grafts
// the best hit's download URLs onto the record.
func (f *Fetcher) mergeFallback(ctx context.Context, p paper.Paper) (paper.Paper, bool) {
	if p.Title == "" {
		return p, false
	}
	hits, err := f.fallback.Search(ctx, p.Title, fallbackSearchLimit)
	if err != nil || len(hits) == 0 {
		return p, false
	}

	// Prefer the exact title match; otherwise the first hit.
	best := hits[0]
	want := paper.NormalizeText(p.Title)
	for _, hit := range hits {
		if paper.NormalizeText(hit.Title) == want {
			best = hit
			break
		}
	}

	before := len(p.PDFURLs)
	p.PDFURLs = append([]string(nil), p.PDFURLs...)
	for _, u := range best.PDFURLs {
		p.AddPDFURL(u)
	}
	if id := best.ArXivID(); id != "" && p.ArXivID() == "" {
		ids := make(map[string]string, len(p.ExternalIDs)+1)
		for k, v := range p.ExternalIDs {
			ids[k] = v
		}
		ids["ArXiv"] = id
		p.ExternalIDs = ids
		return p, true
	}
	return p, len(p.PDFURLs) > before
}

// tryURLs attempts every candidate URL in order.
func (f *Fetcher) tryURLs(ctx context.Context, p paper.Paper, dir string) (string, error) {
	urls := CandidateURLs(p)
	if len(urls) == 0 {
		return "", ErrNoCandidateURL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating pdf dir: %w", err)
	}

	var lastErr error
	for _, u := range urls {
		path, err := f.fetchOne(ctx, u, p, dir)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", u, err)
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("all %d pdf candidate urls failed, last: %w", len(urls), lastErr)
}

// fetchOne downloads a single URL, verifying it actually serves a PDF
// before anything is written.
func (f *Fetcher) fetchOne(ctx context.Context, url string, p paper.Paper, dir string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	head := make([]byte, 8192)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]
	if n == 0 {
		return "", errors.New("empty body")
	}
	if !looksLikePDF(resp, head, url) {
		return "", errors.New("non-pdf response")
	}

	path := targetPath(dir, p)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := out.Write(head); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}

	if err := f.validate(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("downloaded file unreadable: %w", err)
	}
	return path, nil
}

// looksLikePDF accepts a response by Content-Type, magic bytes, or a
// .pdf final URL after redirects.
func looksLikePDF(resp *http.Response, head []byte, sourceURL string) bool {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/pdf") {
		return true
	}
	if strings.HasPrefix(string(head), "%PDF") {
		return true
	}
	finalURL := sourceURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return strings.HasSuffix(strings.ToLower(finalURL), ".pdf")
}
