package pdfget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paperfetch/paperfetch/internal/paper"
)

func noValidation(f *Fetcher) { f.validate = func(string) error { return nil } }

func TestCandidateURLs(t *testing.T) {
	p := paper.Paper{
		URL: "https://example.com/landing.PDF",
		PDFURLs: []string{
			"https://publisher.example/articles/42",
			"https://host.example/files/paper.pdf",
		},
		ExternalIDs: map[string]string{"ArXiv": "2005.12872"},
	}
	got := CandidateURLs(p)
	want := []string{
		"https://arxiv.org/pdf/2005.12872.pdf",
		"https://host.example/files/paper.pdf",
		"https://example.com/landing.PDF",
		"https://publisher.example/articles/42",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidateURLsEmpty(t *testing.T) {
	if got := CandidateURLs(paper.Paper{Title: "No Links"}); len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestSanitizeStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2020-End-to-End Object Detection", "2020-End-to-End Object Detection"},
		{`bad/name:with*chars?`, "bad_name_with_chars_"},
		{"  spaced   out  ", "spaced out"},
		{"...", "paper"},
		{"", "paper"},
		{strings.Repeat("x", 200), strings.Repeat("x", 120)},
	}
	for _, tt := range tests {
		if got := sanitizeStem(tt.in); got != tt.want {
			t.Errorf("sanitizeStem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTargetPathDedup(t *testing.T) {
	dir := t.TempDir()
	p := paper.Paper{Title: "A Paper", Year: 2020}

	first := targetPath(dir, p)
	if filepath.Base(first) != "2020-A Paper.pdf" {
		t.Fatalf("first = %q", first)
	}
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	second := targetPath(dir, p)
	if filepath.Base(second) != "2020-A Paper-2.pdf" {
		t.Errorf("second = %q", second)
	}
}

func TestDownloadFirstURLWins(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake body"))
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	noValidation(f)

	p := paper.Paper{
		Title:   "A Paper",
		Year:    2021,
		PDFURLs: []string{srv.URL + "/a.pdf", srv.URL + "/b.pdf"},
	}
	dir := t.TempDir()
	path, err := f.Download(context.Background(), p, dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(hits) != 1 || hits[0] != "/a.pdf" {
		t.Errorf("hits = %v, want only /a.pdf", hits)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Errorf("file content %q", data)
	}
}

func TestDownloadSkipsNonPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/landing":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>click here for pdf</html>"))
		case "/real":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 body"))
		}
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	noValidation(f)

	p := paper.Paper{
		Title:   "A Paper",
		PDFURLs: []string{srv.URL + "/landing", srv.URL + "/real"},
	}
	if _, err := f.Download(context.Background(), p, t.TempDir()); err != nil {
		t.Fatalf("Download: %v", err)
	}
}

func TestDownloadNoCandidates(t *testing.T) {
	f := New()
	noValidation(f)
	_, err := f.Download(context.Background(), paper.Paper{Title: "No Links"}, t.TempDir())
	if !errors.Is(err, ErrNoCandidateURL) {
		t.Fatalf("err = %v, want ErrNoCandidateURL", err)
	}
}

func TestDownloadRemovesInvalidFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 truncated garbage"))
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	f.validate = func(string) error { return errors.New("unparseable") }

	dir := t.TempDir()
	p := paper.Paper{Title: "Broken", PDFURLs: []string{srv.URL + "/x.pdf"}}
	if _, err := f.Download(context.Background(), p, dir); err == nil {
		t.Fatal("Download succeeded with failing validation")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("invalid file left behind: %v", entries)
	}
}

type fakeArXiv struct {
	results []paper.Paper
	calls   int
}

func (f *fakeArXiv) Name() string { return "arxiv" }

func (f *fakeArXiv) Search(_ context.Context, _ string, _ int) ([]paper.Paper, error) {
	f.calls++
	return f.results, nil
}

func TestDownloadArXivFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paywalled":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>subscribe</html>"))
		case "/fallback.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.4 open access"))
		}
	}))
	defer srv.Close()

	arxiv := &fakeArXiv{results: []paper.Paper{
		{Title: "A Paper", PDFURLs: []string{srv.URL + "/fallback.pdf"}},
	}}
	f := New(WithHTTPClient(srv.Client()), WithArXivFallback(arxiv))
	noValidation(f)

	p := paper.Paper{Title: "A Paper", PDFURLs: []string{srv.URL + "/paywalled"}}
	path, err := f.Download(context.Background(), p, t.TempDir())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if arxiv.calls != 1 {
		t.Errorf("fallback searched %d times, want 1", arxiv.calls)
	}
	if path == "" {
		t.Error("empty path")
	}
}

func TestDownloadNoFallbackWithoutProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("not a pdf"))
	}))
	defer srv.Close()

	f := New(WithHTTPClient(srv.Client()))
	noValidation(f)

	p := paper.Paper{Title: "A Paper", PDFURLs: []string{srv.URL + "/x"}}
	if _, err := f.Download(context.Background(), p, t.TempDir()); err == nil {
		t.Fatal("Download succeeded without any pdf source")
	}
}
