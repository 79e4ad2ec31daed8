// Package paper defines the common bibliographic record produced by all
// search providers and consumed by the rest of the pipeline.
package paper

import "strings"

// DocType is the GB/T 7714 document type tag.
type DocType string

// Document type tags. Unknown sorts last during classification and is
// never rendered directly; the formatter resolves it before templating.
const (
	TypeJournal     DocType = "J"
	TypeConference  DocType = "C"
	TypeBook        DocType = "M"
	TypeBookChapter DocType = "A"
	TypeThesis      DocType = "D"
	TypeReport      DocType = "R"
	TypeDataset     DocType = "DB"
	TypeOnline      DocType = "EB/OL"
	TypeUnknown     DocType = "Z"
)

// ValidDocTypes lists every tag a provider may assign.
var ValidDocTypes = map[DocType]bool{
	TypeJournal:     true,
	TypeConference:  true,
	TypeBook:        true,
	TypeBookChapter: true,
	TypeThesis:      true,
	TypeReport:      true,
	TypeDataset:     true,
	TypeOnline:      true,
	TypeUnknown:     true,
}

// Paper is a normalized bibliographic record. Title and Source are always
// set; every other field is best-effort depending on the provider.
type Paper struct {
	// Identity
	ID  string `json:"paper_id"` // Provider-native identifier
	DOI string `json:"doi,omitempty"`

	// Metadata
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Year     int      `json:"year,omitempty"` // 0 if unknown
	Venue    string   `json:"venue,omitempty"`
	DocType  DocType  `json:"doc_type,omitempty"`
	RawType  string   `json:"raw_type,omitempty"` // Provider's native type string

	// Bibliographic detail
	Volume  string `json:"volume,omitempty"`
	Issue   string `json:"issue,omitempty"`
	Pages   string `json:"pages,omitempty"`
	PubDate string `json:"publication_date,omitempty"` // YYYY-MM-DD when known

	// Signals
	CitationCount int `json:"citation_count,omitempty"`

	// External identifiers (DOI, ArXiv, ...)
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	// Provenance and access
	Source  string   `json:"source"` // Provider that produced the record
	URL     string   `json:"url,omitempty"`
	PDFURLs []string `json:"pdf_urls,omitempty"`
}

// ArXivID returns the arXiv identifier if the record carries one.
func (p *Paper) ArXivID() string {
	if p.ExternalIDs == nil {
		return ""
	}
	if id := p.ExternalIDs["ArXiv"]; id != "" {
		return id
	}
	return p.ExternalIDs["arXiv"]
}

// IsPreprint reports whether the record looks like an arXiv preprint
// rather than a published version.
func (p *Paper) IsPreprint() bool {
	if p.ArXivID() != "" && p.DOI == "" {
		return true
	}
	return NormalizeText(p.Venue) == "arxiv"
}

// DedupKey returns the key used for candidate pool deduplication:
// normalized DOI when present, otherwise the normalized title.
func (p *Paper) DedupKey() string {
	if doi := NormalizeDOI(p.DOI); doi != "" {
		return "doi:" + doi
	}
	if title := NormalizeText(p.Title); title != "" {
		return "title:" + title
	}
	return ""
}

// AddPDFURL appends a PDF candidate URL, skipping duplicates and
// non-http values. Order of first appearance is preserved.
func (p *Paper) AddPDFURL(url string) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http") {
		return
	}
	lowered := strings.ToLower(url)
	for _, existing := range p.PDFURLs {
		if strings.ToLower(existing) == lowered {
			return
		}
	}
	p.PDFURLs = append(p.PDFURLs, url)
}
