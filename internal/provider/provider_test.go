package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"golang.org/x/time/rate"

	"github.com/paperfetch/paperfetch/internal/paper"
)

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2005.12872v3</id>
    <title>End-to-End Object Detection
 with Transformers</title>
    <summary>We present a new method that views object detection as a
 direct set prediction problem.</summary>
    <published>2020-05-26T17:06:25Z</published>
    <author><name>Nicolas Carion</name></author>
    <author><name>Francisco Massa</name></author>
    <link rel="alternate" href="http://arxiv.org/abs/2005.12872v3"/>
    <link title="pdf" type="application/pdf" href="http://arxiv.org/pdf/2005.12872v3"/>
  </entry>
</feed>`

func TestArXivSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != `all:"DETR"` {
			t.Errorf("search_query = %q, want all:\"DETR\"", got)
		}
		w.Write([]byte(arxivFeed))
	}))
	defer server.Close()

	client := NewArXiv(WithArXivBaseURL(server.URL))
	papers, err := client.Search(context.Background(), "DETR", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}

	p := papers[0]
	if p.Title != "End-to-End Object Detection with Transformers" {
		t.Errorf("title = %q (newlines should collapse)", p.Title)
	}
	if p.Year != 2020 {
		t.Errorf("year = %d, want 2020", p.Year)
	}
	if p.Source != NameArXiv {
		t.Errorf("source = %q, want %q", p.Source, NameArXiv)
	}
	if p.DocType != paper.TypeOnline {
		t.Errorf("docType = %q, want EB/OL", p.DocType)
	}
	if p.ArXivID() != "2005.12872v3" {
		t.Errorf("arXiv id = %q", p.ArXivID())
	}
	if len(p.Authors) != 2 || p.Authors[0] != "Nicolas Carion" {
		t.Errorf("authors = %v", p.Authors)
	}
	if len(p.PDFURLs) == 0 {
		t.Error("expected PDF candidate URLs")
	}
}

func TestArXivSearchEmptyQuery(t *testing.T) {
	client := NewArXiv()
	papers, err := client.Search(context.Background(), "   ", 10)
	if err != nil || papers != nil {
		t.Errorf("empty query should return nothing, got %v, %v", papers, err)
	}
}

const openAlexWorkJSON = `{
  "results": [{
    "id": "https://openalex.org/W3035223700",
    "doi": "https://doi.org/10.1007/978-3-030-58452-8_13",
    "display_name": "End-to-End Object Detection with Transformers",
    "publication_year": 2020,
    "publication_date": "2020-08-19",
    "type": "book-chapter",
    "cited_by_count": 10000,
    "ids": {"arxiv": "https://arxiv.org/abs/2005.12872"},
    "authorships": [
      {"author": {"display_name": "Nicolas Carion"}},
      {"author": {"display_name": "Francisco Massa"}},
      {"author": {"display_name": "Gabriel Synnaeve"}}
    ],
    "primary_location": {"source": {"display_name": "European Conference on Computer Vision"}},
    "best_oa_location": {"pdf_url": "https://arxiv.org/pdf/2005.12872"},
    "biblio": {"volume": "12346", "first_page": "213", "last_page": "229"},
    "abstract_inverted_index": {"We": [0], "detection": [2], "present": [1]}
  }]
}`

func TestOpenAlexSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("mailto"); got != "me@example.org" {
			t.Errorf("mailto = %q", got)
		}
		w.Write([]byte(openAlexWorkJSON))
	}))
	defer server.Close()

	client := NewOpenAlex(WithOpenAlexBaseURL(server.URL), WithContactEmail("me@example.org"))
	papers, err := client.Search(context.Background(), "DETR", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}

	p := papers[0]
	if p.DOI != "10.1007/978-3-030-58452-8_13" {
		t.Errorf("doi = %q (url prefix should strip)", p.DOI)
	}
	if p.DocType != paper.TypeBookChapter {
		t.Errorf("docType = %q, want A", p.DocType)
	}
	if p.Venue != "European Conference on Computer Vision" {
		t.Errorf("venue = %q", p.Venue)
	}
	if p.Volume != "12346" || p.Pages != "213-229" {
		t.Errorf("volume/pages = %q/%q", p.Volume, p.Pages)
	}
	if p.Abstract != "We present detection" {
		t.Errorf("abstract = %q (inverted index should restore in order)", p.Abstract)
	}
	if p.ExternalIDs["ArXiv"] != "2005.12872" {
		t.Errorf("arXiv id = %q", p.ExternalIDs["ArXiv"])
	}
	if p.CitationCount != 10000 {
		t.Errorf("citationCount = %d", p.CitationCount)
	}
}

func TestRestoreInvertedAbstractDeterministic(t *testing.T) {
	// "spatial" and "spectral" share a position; the restored text must
	// not depend on map iteration order.
	inverted := map[string][]int{
		"combines": {1},
		"spatial":  {2},
		"spectral": {2},
		"features": {3},
		"It":       {0},
	}
	want := restoreInvertedAbstract(inverted)
	if want == "" {
		t.Fatal("empty restored abstract")
	}
	for i := 0; i < 20; i++ {
		if got := restoreInvertedAbstract(inverted); got != want {
			t.Fatalf("restore varied: %q vs %q", got, want)
		}
	}
}

func TestOpenAlexLookupDOITriesBothFilters(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Write([]byte(`{"results": []}`))
			return
		}
		w.Write([]byte(openAlexWorkJSON))
	}))
	defer server.Close()

	client := NewOpenAlex(WithOpenAlexBaseURL(server.URL))
	p, err := client.LookupDOI(context.Background(), "10.1007/978-3-030-58452-8_13")
	if err != nil {
		t.Fatalf("LookupDOI: %v", err)
	}
	if p.Title == "" {
		t.Error("expected a populated record from the second filter form")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

const s2SearchJSON = `{
  "data": [{
    "paperId": "abc123",
    "title": "End-to-End Object Detection with Transformers",
    "authors": [{"name": "Nicolas Carion"}],
    "year": 2020,
    "venue": "European Conference on Computer Vision",
    "publicationTypes": ["JournalArticle", "Conference"],
    "citationCount": 9000,
    "externalIds": {"DOI": "10.1007/978-3-030-58452-8_13", "ArXiv": "2005.12872", "CorpusId": 218889832},
    "openAccessPdf": {"url": "https://arxiv.org/pdf/2005.12872"},
    "url": "https://www.semanticscholar.org/paper/abc123"
  }]
}`

func TestS2Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Write([]byte(s2SearchJSON))
	}))
	defer server.Close()

	client := NewS2(
		WithS2BaseURL(server.URL),
		WithS2APIKey("secret"),
		WithS2Limiter(rate.NewLimiter(rate.Inf, 1)),
	)
	papers, err := client.Search(context.Background(), "DETR", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers, want 1", len(papers))
	}

	p := papers[0]
	// JournalArticle wins over Conference in mapping priority.
	if p.DocType != paper.TypeJournal {
		t.Errorf("docType = %q, want J", p.DocType)
	}
	if p.DOI != "10.1007/978-3-030-58452-8_13" {
		t.Errorf("doi = %q", p.DOI)
	}
	if p.Source != NameS2 {
		t.Errorf("source = %q", p.Source)
	}
	if len(p.PDFURLs) < 2 {
		t.Errorf("expected openAccessPdf plus derived arXiv URL, got %v", p.PDFURLs)
	}
	// CorpusId arrives as a JSON number and must survive as a string.
	if got := p.ExternalIDs["CorpusId"]; got != "218889832" {
		t.Errorf("externalIDs[CorpusId] = %q, want 218889832", got)
	}
	if got := p.ExternalIDs["ArXiv"]; got != "2005.12872" {
		t.Errorf("externalIDs[ArXiv] = %q", got)
	}
}

func TestS2RateLimitIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewS2(WithS2BaseURL(server.URL), WithS2Limiter(rate.NewLimiter(rate.Inf, 1)))
	_, err := client.Search(context.Background(), "DETR", 10)
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("429 should fail fast, got %d calls", calls)
	}
}

func TestS2LookupDOINotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewS2(WithS2BaseURL(server.URL), WithS2Limiter(rate.NewLimiter(rate.Inf, 1)))
	_, err := client.LookupDOI(context.Background(), "10.1/none")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestWithRetryRecoversTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := NewOpenAlex(WithOpenAlexBaseURL(server.URL))
	_, err := client.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("expected recovery after transient 502s, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
