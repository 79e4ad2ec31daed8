package paper

import "strings"

// conferenceHints are venue/title/DOI substrings that indicate a
// conference publication. Major CS venue acronyms are included because
// providers often report them without the word "conference".
var conferenceHints = []string{
	"conference", "proceedings", "symposium", "workshop",
	"cvpr", "iccv", "eccv", "neurips", "nips", "icml", "iclr",
	"aaai", "ijcai", "acl", "emnlp", "naacl", "coling", "kdd", "siggraph",
}

// journalHints are venue substrings that indicate a journal.
var journalHints = []string{"journal", "transactions", "letters", "review"}

// thesisHints are venue/title substrings that indicate a thesis.
var thesisHints = []string{"thesis", "dissertation"}

func containsAny(text string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

// ClassifyFallback infers a document type from textual signals when a
// provider supplies no usable structured type. Priority: arXiv markers →
// conference hints → thesis hints → journal hints → unknown. Records that
// stay unknown are resolved by the citation formatter.
func ClassifyFallback(title, venue, doi string, externalIDs map[string]string) DocType {
	venueL := strings.ToLower(venue)
	titleL := strings.ToLower(title)
	doiL := strings.ToLower(doi)

	_, hasArXivID := externalIDs["ArXiv"]
	if !hasArXivID {
		_, hasArXivID = externalIDs["arXiv"]
	}
	if hasArXivID || strings.Contains(venueL, "arxiv") ||
		strings.Contains(titleL, "arxiv") || strings.Contains(doiL, "arxiv") {
		return TypeOnline
	}
	if containsAny(venueL, conferenceHints) || containsAny(titleL, conferenceHints) ||
		containsAny(doiL, conferenceHints) {
		return TypeConference
	}
	if containsAny(venueL, thesisHints) || containsAny(titleL, thesisHints) {
		return TypeThesis
	}
	if containsAny(venueL, journalHints) {
		return TypeJournal
	}
	return TypeUnknown
}
