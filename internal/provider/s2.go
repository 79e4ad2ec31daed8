package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/paperfetch/paperfetch/internal/paper"
)

const (
	// S2BaseURL is the Semantic Scholar graph API base URL.
	S2BaseURL = "https://api.semanticscholar.org/graph/v1"

	// s2MinInterval spaces requests to stay under the unauthenticated
	// 1 req/s limit with a small safety margin.
	s2MinInterval = 1050 * time.Millisecond

	// s2Fields are the paper fields requested on every call.
	s2Fields = "paperId,title,abstract,authors,year,venue,publicationTypes," +
		"publicationDate,citationCount,openAccessPdf,externalIds,url"
)

// s2TypeTags maps Semantic Scholar publicationTypes to document type
// tags, checked in order.
var s2TypeTags = []struct {
	pubType string
	tag     paper.DocType
}{
	{"journalarticle", paper.TypeJournal},
	{"review", paper.TypeJournal},
	{"conference", paper.TypeConference},
	{"book", paper.TypeBook},
	{"bookchapter", paper.TypeBookChapter},
	{"thesis", paper.TypeThesis},
	{"report", paper.TypeReport},
	{"preprint", paper.TypeOnline},
}

// S2 is a rate-limited client for the Semantic Scholar graph API. All
// requests through one client are serialized by its limiter, so
// concurrent callers cannot overlap into a rate-limit rejection.
type S2 struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// S2Option configures an S2 provider.
type S2Option func(*S2)

// WithS2APIKey sets the API key sent in the x-api-key header.
func WithS2APIKey(key string) S2Option {
	return func(s *S2) { s.apiKey = key }
}

// WithS2BaseURL sets a custom endpoint (for testing).
func WithS2BaseURL(u string) S2Option {
	return func(s *S2) { s.baseURL = u }
}

// WithS2HTTPClient sets a custom HTTP client.
func WithS2HTTPClient(hc *http.Client) S2Option {
	return func(s *S2) { s.httpClient = hc }
}

// WithS2Limiter replaces the request limiter (for testing).
func WithS2Limiter(l *rate.Limiter) S2Option {
	return func(s *S2) { s.limiter = l }
}

// NewS2 creates a Semantic Scholar provider.
func NewS2(opts ...S2Option) *S2 {
	s := &S2{
		httpClient: newHTTPClient(),
		limiter:    rate.NewLimiter(rate.Every(s2MinInterval), 1),
		baseURL:    S2BaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the provider identifier.
func (s *S2) Name() string { return NameS2 }

// s2Paper models the subset of a Semantic Scholar record we consume.
type s2Paper struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Abstract         string                     `json:"abstract"`
	Year             int                        `json:"year"`
	Venue            string                     `json:"venue"`
	PublicationTypes []string                   `json:"publicationTypes"`
	PublicationDate  string                     `json:"publicationDate"`
	CitationCount    int                        `json:"citationCount"`
	ExternalIDs      map[string]json.RawMessage `json:"externalIds"`
	URL              string                     `json:"url"`
	OpenAccessPDF    *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// Search queries Semantic Scholar for the given title or keyword.
func (s *S2) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit, DefaultLimit, 100)

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("fields", s2Fields)

	var payload struct {
		Data []s2Paper `json:"data"`
	}
	if err := s.get(ctx, s.baseURL+"/paper/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	papers := make([]paper.Paper, 0, len(payload.Data))
	for _, item := range payload.Data {
		papers = append(papers, mapS2Paper(item))
	}
	return papers, nil
}

// LookupDOI fetches a single record by DOI.
func (s *S2) LookupDOI(ctx context.Context, doi string) (*paper.Paper, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, ErrNotFound
	}

	endpoint := s.baseURL + "/paper/" + url.PathEscape("DOI:"+doi) +
		"?fields=" + url.QueryEscape(s2Fields)

	var item s2Paper
	if err := s.get(ctx, endpoint, &item); err != nil {
		return nil, err
	}
	if item.PaperID == "" {
		return nil, ErrNotFound
	}
	p := mapS2Paper(item)
	return &p, nil
}

// get performs one rate-limited GET with retries on transient errors.
// The limiter wait sits inside the retry loop so retries are also
// spaced.
func (s *S2) get(ctx context.Context, endpoint string, out any) error {
	return withRetry(ctx, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if s.apiKey != "" {
			req.Header.Set("x-api-key", s.apiKey)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: semantic scholar", ErrRateLimited)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode != http.StatusOK:
			return &APIError{Provider: NameS2, StatusCode: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrInvalidResponse, err)
		}
		return nil
	})
}

// s2ExternalIDs flattens externalIds to strings. The API mixes value
// types: DOI and ArXiv are strings while CorpusId is a number.
func s2ExternalIDs(raw map[string]json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	ids := make(map[string]string, len(raw))
	for key, val := range raw {
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			ids[key] = s
			continue
		}
		if v := strings.TrimSpace(string(val)); v != "" && v != "null" {
			ids[key] = v
		}
	}
	return ids
}

// mapS2Paper converts one Semantic Scholar record to the common record.
func mapS2Paper(item s2Paper) paper.Paper {
	externalIDs := s2ExternalIDs(item.ExternalIDs)
	doi := paper.NormalizeDOI(externalIDs["DOI"])

	p := paper.Paper{
		ID:            item.PaperID,
		DOI:           doi,
		Title:         strings.TrimSpace(item.Title),
		Abstract:      strings.TrimSpace(item.Abstract),
		Year:          item.Year,
		Venue:         strings.TrimSpace(item.Venue),
		DocType:       mapS2Types(item, externalIDs),
		RawType:       strings.Join(item.PublicationTypes, ","),
		PubDate:       strings.TrimSpace(item.PublicationDate),
		CitationCount: item.CitationCount,
		ExternalIDs:   externalIDs,
		Source:        NameS2,
		URL:           strings.TrimSpace(item.URL),
	}

	for _, author := range item.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	if item.OpenAccessPDF != nil {
		p.AddPDFURL(item.OpenAccessPDF.URL)
	}
	if arxivID := p.ArXivID(); arxivID != "" {
		p.AddPDFURL("https://arxiv.org/pdf/" + arxivID + ".pdf")
	}

	return p
}

// mapS2Types maps publicationTypes to a tag, falling back to textual
// classification when no structured type matches.
func mapS2Types(item s2Paper, externalIDs map[string]string) paper.DocType {
	normalized := make(map[string]bool, len(item.PublicationTypes))
	for _, t := range item.PublicationTypes {
		normalized[strings.ToLower(strings.TrimSpace(t))] = true
	}
	for _, mapping := range s2TypeTags {
		if normalized[mapping.pubType] {
			return mapping.tag
		}
	}
	return paper.ClassifyFallback(item.Title, item.Venue, externalIDs["DOI"], externalIDs)
}
