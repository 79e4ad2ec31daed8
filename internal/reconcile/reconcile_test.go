package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/paperfetch/paperfetch/internal/paper"
	"github.com/paperfetch/paperfetch/internal/provider"
)

type fakeBackup struct {
	name string

	lookupResult *paper.Paper
	lookupErr    error
	lookupCalls  int

	searchResults []paper.Paper
	searchErr     error
	searchCalls   int
	searchLimit   int
}

func (f *fakeBackup) Name() string { return f.name }

func (f *fakeBackup) Search(_ context.Context, _ string, limit int) ([]paper.Paper, error) {
	f.searchCalls++
	f.searchLimit = limit
	return f.searchResults, f.searchErr
}

func (f *fakeBackup) LookupDOI(_ context.Context, _ string) (*paper.Paper, error) {
	f.lookupCalls++
	return f.lookupResult, f.lookupErr
}

// searchOnly hides LookupDOI, modeling a provider without DOI lookup.
type searchOnly struct{ inner *fakeBackup }

func (s searchOnly) Name() string { return s.inner.name }

func (s searchOnly) Search(ctx context.Context, query string, limit int) ([]paper.Paper, error) {
	return s.inner.Search(ctx, query, limit)
}

func TestEnrichSkipsPrimarySource(t *testing.T) {
	same := &fakeBackup{name: "s2"}
	other := &fakeBackup{name: "openalex", lookupResult: &paper.Paper{
		Title: "A Paper", DOI: "10.1/x", Venue: "Nature", Year: 2020,
	}}
	r := New(same, other)

	primary := paper.Paper{Title: "A Paper", DOI: "10.1/x", Year: 2020, Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if report.Provider != "openalex" {
		t.Fatalf("Provider = %q, want openalex", report.Provider)
	}
	if same.lookupCalls+same.searchCalls != 0 {
		t.Error("the record's own source was consulted")
	}
	if got.Venue != "Nature" {
		t.Errorf("Venue = %q, want backfilled Nature", got.Venue)
	}
}

func TestEnrichNoBackupAvailable(t *testing.T) {
	only := &fakeBackup{name: "s2"}
	r := New(only)

	primary := paper.Paper{Title: "A Paper", Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if report.Provider != "" {
		t.Errorf("Provider = %q, want empty", report.Provider)
	}
	if got.Title != primary.Title {
		t.Error("record changed without a backup")
	}
}

func TestEnrichDOILookupPreferred(t *testing.T) {
	backup := &fakeBackup{name: "openalex", lookupResult: &paper.Paper{
		Title: "A Paper", DOI: "10.1/x", Pages: "1-10",
	}}
	r := New(backup)

	primary := paper.Paper{Title: "A Paper", DOI: "10.1/x", Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if backup.lookupCalls != 1 || backup.searchCalls != 0 {
		t.Fatalf("lookup=%d search=%d, want DOI lookup only", backup.lookupCalls, backup.searchCalls)
	}
	if !report.Matched {
		t.Fatal("report.Matched = false")
	}
	if got.Pages != "1-10" {
		t.Errorf("Pages = %q", got.Pages)
	}
}

func TestEnrichFallsBackToTitleSearch(t *testing.T) {
	backup := &fakeBackup{
		name:      "openalex",
		lookupErr: provider.ErrNotFound,
		searchResults: []paper.Paper{
			{Title: "Another Paper Entirely", Year: 1999},
			{Title: "A Very Specific Paper", Year: 2020, Venue: "ICML"},
		},
	}
	r := New(backup)

	primary := paper.Paper{Title: "A Very Specific Paper", DOI: "10.1/x", Year: 2020, Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if backup.searchCalls != 1 {
		t.Fatalf("searchCalls = %d", backup.searchCalls)
	}
	if backup.searchLimit != titleSearchLimit {
		t.Errorf("search limit = %d, want %d", backup.searchLimit, titleSearchLimit)
	}
	if !report.Matched {
		t.Fatalf("no match: %s", report)
	}
	if got.Venue != "ICML" {
		t.Errorf("Venue = %q", got.Venue)
	}
}

func TestEnrichRejectsWeakMatch(t *testing.T) {
	backup := &fakeBackup{
		name: "openalex",
		searchResults: []paper.Paper{
			{Title: "Totally Unrelated Work", Year: 1987},
		},
	}
	r := New(backup)

	primary := paper.Paper{Title: "A Very Specific Paper", Year: 2020, Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if report.Matched {
		t.Fatal("weak match accepted")
	}
	if got.Year != 2020 || got.Venue != "" {
		t.Error("record changed despite rejected match")
	}
}

func TestEnrichLookupFailureIsNotFatal(t *testing.T) {
	backup := &fakeBackup{
		name:      "openalex",
		lookupErr: &provider.APIError{Provider: "openalex", StatusCode: 500, Message: "boom"},
	}
	r := New(backup)

	primary := paper.Paper{Title: "A Paper", DOI: "10.1/x", Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if report.Err == nil {
		t.Fatal("report.Err = nil, want lookup error")
	}
	if got.Title != primary.Title {
		t.Error("record changed on lookup failure")
	}
}

func TestEnrichSearchOnlyProvider(t *testing.T) {
	inner := &fakeBackup{
		name: "arxiv",
		searchResults: []paper.Paper{
			{Title: "A Paper", Year: 2020, PDFURLs: []string{"https://arxiv.org/pdf/2001.00001.pdf"}},
		},
	}
	r := New(searchOnly{inner})

	primary := paper.Paper{Title: "A Paper", DOI: "10.1/x", Year: 2020, Source: "s2"}
	got, report := r.Enrich(context.Background(), primary)
	if inner.lookupCalls != 0 {
		t.Error("LookupDOI called on a search-only provider")
	}
	if !report.Matched {
		t.Fatalf("no match: %s", report)
	}
	if len(got.PDFURLs) != 1 {
		t.Errorf("PDFURLs = %v", got.PDFURLs)
	}
}

func TestMergePrimaryWins(t *testing.T) {
	primary := paper.Paper{
		Title:         "Primary Title",
		DOI:           "10.1/primary",
		Year:          2020,
		Venue:         "NeurIPS",
		Authors:       []string{"A. Author"},
		DocType:       paper.TypeConference,
		CitationCount: 100,
		ExternalIDs:   map[string]string{"ArXiv": "2001.00001"},
	}
	backup := paper.Paper{
		Title:         "Backup Title",
		DOI:           "10.1/backup",
		Year:          2019,
		Venue:         "Other Venue",
		Authors:       []string{"B. Other"},
		DocType:       paper.TypeJournal,
		CitationCount: 50,
		Volume:        "12",
		Pages:         "1-20",
		ExternalIDs:   map[string]string{"ArXiv": "9999.99999", "MAG": "123"},
	}

	got, filled := merge(primary, backup)
	if got.Title != "Primary Title" || got.DOI != "10.1/primary" || got.Year != 2020 {
		t.Error("primary identity fields were overwritten")
	}
	if got.Venue != "NeurIPS" || got.Authors[0] != "A. Author" || got.DocType != paper.TypeConference {
		t.Error("non-empty primary fields were overwritten")
	}
	if got.CitationCount != 100 {
		t.Errorf("CitationCount = %d", got.CitationCount)
	}
	if got.Volume != "12" || got.Pages != "1-20" {
		t.Error("empty fields not backfilled")
	}
	if got.ExternalIDs["ArXiv"] != "2001.00001" {
		t.Error("primary external id overwritten")
	}
	if got.ExternalIDs["MAG"] != "123" {
		t.Error("new external id not merged")
	}
	if primary.ExternalIDs["MAG"] != "" {
		t.Error("caller's map mutated")
	}

	want := map[string]bool{"volume": true, "pages": true, "externalIDs": true}
	for _, name := range filled {
		if !want[name] {
			t.Errorf("unexpected filled field %q", name)
		}
		delete(want, name)
	}
	for name := range want {
		t.Errorf("field %q not reported as filled", name)
	}
}

func TestMergeDocTypeOnlyWhenUnknown(t *testing.T) {
	primary := paper.Paper{Title: "T", DocType: paper.TypeUnknown}
	backup := paper.Paper{Title: "T", DocType: paper.TypeJournal}
	got, _ := merge(primary, backup)
	if got.DocType != paper.TypeJournal {
		t.Errorf("DocType = %q, want journal backfill", got.DocType)
	}

	primary.DocType = paper.TypeOnline
	got, _ = merge(primary, backup)
	if got.DocType != paper.TypeOnline {
		t.Errorf("DocType = %q, want primary kept", got.DocType)
	}
}

func TestMatchScore(t *testing.T) {
	base := paper.Paper{Title: "A Very Specific Paper", DOI: "10.1/x", Year: 2020}
	tests := []struct {
		name      string
		candidate paper.Paper
		want      int
	}{
		{"same doi and title and year", paper.Paper{Title: "A Very Specific Paper", DOI: "10.1/X", Year: 2020}, 158},
		{"title and year only", paper.Paper{Title: "a very specific paper!", Year: 2020}, 58},
		{"containment adjacent year", paper.Paper{Title: "A Very Specific Paper: Extended Version", Year: 2021}, 23},
		{"unrelated", paper.Paper{Title: "Something Else", Year: 1980}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchScore(base, tt.candidate); got != tt.want {
				t.Errorf("matchScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEnrichNotFoundEverywhere(t *testing.T) {
	backup := &fakeBackup{name: "openalex", lookupErr: provider.ErrNotFound, searchErr: errors.New("offline")}
	r := New(backup)

	primary := paper.Paper{Title: "A Paper", DOI: "10.1/x", Source: "s2"}
	_, report := r.Enrich(context.Background(), primary)
	if report.Err == nil {
		t.Fatal("search error not reported")
	}
}
