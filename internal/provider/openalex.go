package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// OpenAlexBaseURL is the OpenAlex works API endpoint.
const OpenAlexBaseURL = "https://api.openalex.org/works"

// openAlexTypeTags maps OpenAlex work types to document type tags.
var openAlexTypeTags = map[string]paper.DocType{
	"journal-article":     paper.TypeJournal,
	"proceedings-article": paper.TypeConference,
	"book":                paper.TypeBook,
	"book-chapter":        paper.TypeBookChapter,
	"dissertation":        paper.TypeThesis,
	"report":              paper.TypeReport,
	"dataset":             paper.TypeDataset,
	"posted-content":      paper.TypeOnline,
}

// OpenAlex searches the OpenAlex works API. No API key is required; an
// optional contact email joins the polite pool for higher rate limits.
type OpenAlex struct {
	httpClient   *http.Client
	baseURL      string
	contactEmail string
}

// OpenAlexOption configures an OpenAlex provider.
type OpenAlexOption func(*OpenAlex)

// WithOpenAlexBaseURL sets a custom endpoint (for testing).
func WithOpenAlexBaseURL(u string) OpenAlexOption {
	return func(o *OpenAlex) { o.baseURL = u }
}

// WithOpenAlexHTTPClient sets a custom HTTP client.
func WithOpenAlexHTTPClient(hc *http.Client) OpenAlexOption {
	return func(o *OpenAlex) { o.httpClient = hc }
}

// WithContactEmail sets the mailto parameter on every request.
func WithContactEmail(email string) OpenAlexOption {
	return func(o *OpenAlex) { o.contactEmail = email }
}

// NewOpenAlex creates an OpenAlex provider.
func NewOpenAlex(opts ...OpenAlexOption) *OpenAlex {
	o := &OpenAlex{
		httpClient: newHTTPClient(),
		baseURL:    OpenAlexBaseURL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the provider identifier.
func (o *OpenAlex) Name() string { return NameOpenAlex }

// openAlexWork models the subset of an OpenAlex work we consume.
type openAlexWork struct {
	ID              string `json:"id"`
	DOI             string `json:"doi"`
	DisplayName     string `json:"display_name"`
	PublicationYear int    `json:"publication_year"`
	PublicationDate string `json:"publication_date"`
	Type            string `json:"type"`
	CitedByCount    int    `json:"cited_by_count"`
	IDs             struct {
		ArXiv string `json:"arxiv"`
	} `json:"ids"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation *openAlexLocation  `json:"primary_location"`
	BestOALocation  *openAlexLocation  `json:"best_oa_location"`
	Locations       []openAlexLocation `json:"locations"`
	OpenAccess      struct {
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	Biblio struct {
		Volume    string `json:"volume"`
		Issue     string `json:"issue"`
		FirstPage string `json:"first_page"`
		LastPage  string `json:"last_page"`
	} `json:"biblio"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type openAlexLocation struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
	Source         *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

// Search queries OpenAlex for the given title or keyword.
func (o *OpenAlex) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	limit = clampLimit(limit, DefaultLimit, 200)

	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", fmt.Sprint(limit))
	if o.contactEmail != "" {
		params.Set("mailto", o.contactEmail)
	}

	var payload struct {
		Results []openAlexWork `json:"results"`
	}
	if err := o.get(ctx, params, &payload); err != nil {
		return nil, err
	}

	papers := make([]paper.Paper, 0, len(payload.Results))
	for _, work := range payload.Results {
		papers = append(papers, mapOpenAlexWork(work))
	}
	return papers, nil
}

// LookupDOI fetches a single work by DOI filter.
func (o *OpenAlex) LookupDOI(ctx context.Context, doi string) (*paper.Paper, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return nil, ErrNotFound
	}

	// OpenAlex accepts both bare DOIs and doi.org URLs in the filter.
	for _, filter := range []string{"doi:" + doi, "doi:https://doi.org/" + doi} {
		params := url.Values{}
		params.Set("filter", filter)
		params.Set("per-page", "3")
		if o.contactEmail != "" {
			params.Set("mailto", o.contactEmail)
		}

		var payload struct {
			Results []openAlexWork `json:"results"`
		}
		if err := o.get(ctx, params, &payload); err != nil {
			return nil, err
		}
		if len(payload.Results) > 0 {
			p := mapOpenAlexWork(payload.Results[0])
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// get performs one GET against the works endpoint with retries.
func (o *OpenAlex) get(ctx context.Context, params url.Values, out any) error {
	return withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: openalex", ErrRateLimited)
		}
		if resp.StatusCode != http.StatusOK {
			return &APIError{Provider: NameOpenAlex, StatusCode: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding works: %v", ErrInvalidResponse, err)
		}
		return nil
	})
}

// mapOpenAlexWork converts one OpenAlex work to the common record.
func mapOpenAlexWork(work openAlexWork) paper.Paper {
	doi := paper.NormalizeDOI(work.DOI)
	venue := openAlexVenue(work)

	externalIDs := map[string]string{}
	if doi != "" {
		externalIDs["DOI"] = doi
	}
	if arxivID := normalizeArXivID(work.IDs.ArXiv); arxivID != "" {
		externalIDs["ArXiv"] = arxivID
	}
	if len(externalIDs) == 0 {
		externalIDs = nil
	}

	docType, ok := openAlexTypeTags[strings.ToLower(strings.TrimSpace(work.Type))]
	if !ok {
		docType = paper.ClassifyFallback(work.DisplayName, venue, doi, externalIDs)
	}

	p := paper.Paper{
		ID:            strings.TrimSpace(work.ID),
		DOI:           doi,
		Title:         strings.TrimSpace(work.DisplayName),
		Abstract:      restoreInvertedAbstract(work.AbstractInvertedIndex),
		Year:          work.PublicationYear,
		PubDate:       strings.TrimSpace(work.PublicationDate),
		Venue:         venue,
		DocType:       docType,
		RawType:       strings.TrimSpace(work.Type),
		Volume:        strings.TrimSpace(work.Biblio.Volume),
		Issue:         strings.TrimSpace(work.Biblio.Issue),
		Pages:         joinPages(work.Biblio.FirstPage, work.Biblio.LastPage),
		CitationCount: work.CitedByCount,
		ExternalIDs:   externalIDs,
		Source:        NameOpenAlex,
		URL:           strings.TrimSpace(work.ID),
	}

	for _, authorship := range work.Authorships {
		if name := strings.TrimSpace(authorship.Author.DisplayName); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}

	// PDF candidates, best open-access location first.
	if work.BestOALocation != nil {
		p.AddPDFURL(work.BestOALocation.PDFURL)
		p.AddPDFURL(work.BestOALocation.LandingPageURL)
	}
	if work.PrimaryLocation != nil {
		p.AddPDFURL(work.PrimaryLocation.PDFURL)
		p.AddPDFURL(work.PrimaryLocation.LandingPageURL)
	}
	p.AddPDFURL(work.OpenAccess.OAURL)
	for _, loc := range work.Locations {
		p.AddPDFURL(loc.PDFURL)
		p.AddPDFURL(loc.LandingPageURL)
	}
	if arxivID := p.ArXivID(); arxivID != "" {
		p.AddPDFURL("https://arxiv.org/pdf/" + arxivID + ".pdf")
	}

	return p
}

// openAlexVenue picks the first available source display name: primary
// location, then any other location.
func openAlexVenue(work openAlexWork) string {
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		if name := strings.TrimSpace(work.PrimaryLocation.Source.DisplayName); name != "" {
			return name
		}
	}
	for _, loc := range work.Locations {
		if loc.Source != nil {
			if name := strings.TrimSpace(loc.Source.DisplayName); name != "" {
				return name
			}
		}
	}
	return ""
}

// normalizeArXivID strips abs URLs and scheme prefixes from an arXiv id.
func normalizeArXivID(value string) string {
	v := strings.TrimSpace(value)
	for _, prefix := range []string{
		"https://arxiv.org/abs/",
		"http://arxiv.org/abs/",
		"arXiv:",
		"arxiv:",
	} {
		v = strings.TrimPrefix(v, prefix)
	}
	return v
}

// joinPages renders a page range from first/last page fields.
func joinPages(first, last string) string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	switch {
	case first != "" && last != "":
		return first + "-" + last
	case first != "":
		return first
	default:
		return last
	}
}

// restoreInvertedAbstract rebuilds abstract text from OpenAlex's
// inverted index representation (token -> positions).
func restoreInvertedAbstract(inverted map[string][]int) string {
	if len(inverted) == 0 {
		return ""
	}

	type positioned struct {
		pos   int
		token string
	}
	var tokens []positioned
	for token, positions := range inverted {
		for _, pos := range positions {
			tokens = append(tokens, positioned{pos: pos, token: token})
		}
	}
	// Map iteration order is random; break position ties on the token
	// so the restored text is stable across runs.
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].pos != tokens[j].pos {
			return tokens[i].pos < tokens[j].pos
		}
		return tokens[i].token < tokens[j].token
	})

	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.token
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
