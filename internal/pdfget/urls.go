package pdfget

import (
	"fmt"
	"strings"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// CandidateURLs orders the record's download candidates: a derived
// arXiv URL first, then URLs that look like direct PDF links, then
// everything else, including a .pdf landing URL.
func CandidateURLs(p paper.Paper) []string {
	var pdfLike, rest []string
	seen := map[string]bool{}

	add := func(url string) {
		url = strings.TrimSpace(url)
		if !strings.HasPrefix(url, "http") {
			return
		}
		lowered := strings.ToLower(url)
		if seen[lowered] {
			return
		}
		seen[lowered] = true
		if strings.HasSuffix(lowered, ".pdf") || strings.Contains(lowered, "/pdf/") || strings.Contains(lowered, "pdf=") {
			pdfLike = append(pdfLike, url)
		} else {
			rest = append(rest, url)
		}
	}

	// arXiv is open access; try it before publisher links.
	if id := p.ArXivID(); id != "" {
		add(fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id))
	}
	for _, u := range p.PDFURLs {
		add(u)
	}
	if strings.HasSuffix(strings.ToLower(p.URL), ".pdf") {
		add(p.URL)
	}

	return append(pdfLike, rest...)
}
