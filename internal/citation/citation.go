// Package citation classifies a record's document type and renders a
// GB/T 7714-style citation line with a trace block for later auditing.
package citation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// Placeholders keep the template's field count intact when metadata is
// missing. An empty gap would make entries unparseable later.
const (
	unknownAuthor     = "Unknown Author"
	unknownTitle      = "Unknown Title"
	unknownVenue      = "Unknown Venue"
	unknownConference = "Unknown Conference"
	unknownSource     = "Unknown Source"
	noDate            = "n.d."
)

// maxNamedAuthors is how many authors are spelled out before "et al".
const maxNamedAuthors = 2

// ResolveType returns the document type driving the citation template.
// Priority: the provider's structured tag, then venue/title/DOI
// heuristics, then DOI-present as a journal signal, and online as the
// last resort.
func ResolveType(p paper.Paper) paper.DocType {
	if p.DocType != "" && p.DocType != paper.TypeUnknown && paper.ValidDocTypes[p.DocType] {
		return p.DocType
	}
	if t := paper.ClassifyFallback(p.Title, p.Venue, p.DOI, p.ExternalIDs); t != paper.TypeUnknown {
		return t
	}
	if p.DOI != "" {
		return paper.TypeJournal
	}
	return paper.TypeOnline
}

// Format renders the single citation line for the record, access-dated
// at now (used only by the online template).
func Format(p paper.Paper, now time.Time) string {
	docType := ResolveType(p)
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = unknownTitle
	}

	line := fmt.Sprintf("%s. %s[%s]. %s.", authorsText(p.Authors), title, docType, sourceSegment(p, docType, now))
	if p.DOI != "" {
		line += fmt.Sprintf(" DOI:%s.", p.DOI)
	}
	return line
}

// authorsText spells out at most two authors, then "et al".
func authorsText(authors []string) string {
	var names []string
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return unknownAuthor
	}
	if len(names) <= maxNamedAuthors {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxNamedAuthors], ", ") + ", et al"
}

func yearText(year int) string {
	if year <= 0 {
		return noDate
	}
	return strconv.Itoa(year)
}

// sourceSegment renders the per-type publication segment.
func sourceSegment(p paper.Paper, docType paper.DocType, now time.Time) string {
	switch docType {
	case paper.TypeJournal:
		return journalSegment(p)
	case paper.TypeConference:
		return conferenceSegment(p)
	case paper.TypeOnline:
		return onlineSegment(p, now)
	default:
		return genericSegment(p)
	}
}

// journalSegment renders "Journal, Year, Volume(Issue): Pages" with the
// volume/issue/pages parts dropped when absent.
func journalSegment(p paper.Paper) string {
	venue := p.Venue
	if venue == "" {
		venue = unknownVenue
	}
	segment := fmt.Sprintf("%s, %s", venue, yearText(p.Year))
	if p.Volume != "" {
		segment += ", " + p.Volume
		if p.Issue != "" {
			segment += "(" + p.Issue + ")"
		}
	}
	if p.Pages != "" {
		segment += ": " + p.Pages
	}
	return segment
}

func conferenceSegment(p paper.Paper) string {
	venue := p.Venue
	if venue == "" {
		venue = unknownConference
	}
	segment := fmt.Sprintf("%s, %s", venue, yearText(p.Year))
	if p.Pages != "" {
		segment += ": " + p.Pages
	}
	return segment
}

// onlineSegment renders "(PublishDate)[AccessDate]. URL" for web-only
// material, arXiv preprints included.
func onlineSegment(p paper.Paper, now time.Time) string {
	published := p.PubDate
	if published == "" {
		published = yearText(p.Year)
	}
	url := p.URL
	if url == "" && len(p.PDFURLs) > 0 {
		url = p.PDFURLs[0]
	}
	if url == "" {
		url = unknownSource
	}
	return fmt.Sprintf("(%s)[%s]. %s", published, now.Format("2006-01-02"), url)
}

func genericSegment(p paper.Paper) string {
	venue := p.Venue
	if venue == "" {
		venue = unknownSource
	}
	segment := fmt.Sprintf("%s, %s", venue, yearText(p.Year))
	if p.Pages != "" {
		segment += ": " + p.Pages
	}
	return segment
}
