package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// ArXivBaseURL is the arXiv Atom query API endpoint.
const ArXivBaseURL = "http://export.arxiv.org/api/query"

// ArXiv searches the arXiv Atom API. All results are preprints and are
// typed EB/OL.
type ArXiv struct {
	httpClient *http.Client
	baseURL    string
}

// ArXivOption configures an ArXiv provider.
type ArXivOption func(*ArXiv)

// WithArXivBaseURL sets a custom endpoint (for testing).
func WithArXivBaseURL(u string) ArXivOption {
	return func(a *ArXiv) { a.baseURL = u }
}

// WithArXivHTTPClient sets a custom HTTP client.
func WithArXivHTTPClient(hc *http.Client) ArXivOption {
	return func(a *ArXiv) { a.httpClient = hc }
}

// NewArXiv creates an arXiv provider.
func NewArXiv(opts ...ArXivOption) *ArXiv {
	a := &ArXiv{
		httpClient: newHTTPClient(),
		baseURL:    ArXivBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *ArXiv) Name() string { return NameArXiv }

// atomFeed models the subset of the arXiv Atom response we consume.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

// Search queries arXiv for the given title or keyword.
func (a *ArXiv) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit, DefaultLimit, 100)

	params := url.Values{}
	params.Set("search_query", fmt.Sprintf("all:%q", query))
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprint(limit))

	var feed atomFeed
	err := withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &APIError{Provider: NameArXiv, StatusCode: resp.StatusCode}
		}

		feed = atomFeed{}
		if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
			return fmt.Errorf("%w: parsing atom feed: %v", ErrInvalidResponse, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	papers := make([]paper.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		papers = append(papers, mapArXivEntry(entry))
	}
	return papers, nil
}

// mapArXivEntry converts one Atom entry to the common record.
func mapArXivEntry(entry atomEntry) paper.Paper {
	arxivID := extractArXivID(entry.ID)

	p := paper.Paper{
		ID:       arxivID,
		Title:    collapseWhitespace(entry.Title),
		Abstract: collapseWhitespace(entry.Summary),
		Year:     parseAtomYear(entry.Published),
		Venue:    "arXiv",
		DocType:  paper.TypeOnline,
		RawType:  "preprint",
		Source:   NameArXiv,
		URL:      strings.TrimSpace(entry.ID),
		PubDate:  datePart(entry.Published),
	}
	if p.ID == "" {
		p.ID = p.URL
	}
	if arxivID != "" {
		p.ExternalIDs = map[string]string{"ArXiv": arxivID}
	}

	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	for _, link := range entry.Links {
		if link.Type == "application/pdf" && link.Href != "" {
			p.AddPDFURL(link.Href)
		}
	}
	if arxivID != "" {
		p.AddPDFURL("https://arxiv.org/pdf/" + arxivID + ".pdf")
	}
	return p
}

// extractArXivID returns the trailing identifier from an abs URL like
// http://arxiv.org/abs/2005.12872v3.
func extractArXivID(idURL string) string {
	idURL = strings.TrimSpace(idURL)
	if idURL == "" {
		return ""
	}
	parts := strings.Split(idURL, "/")
	return parts[len(parts)-1]
}

// parseAtomYear extracts the year from an RFC 3339 timestamp.
func parseAtomYear(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0
	}
	return t.Year()
}

// datePart returns the YYYY-MM-DD prefix of an RFC 3339 timestamp.
func datePart(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 10 {
		return value[:10]
	}
	return ""
}

// collapseWhitespace flattens newlines and runs of spaces to single
// spaces. arXiv wraps titles and abstracts across lines.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
