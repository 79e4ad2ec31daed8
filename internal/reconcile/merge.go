package reconcile

import "github.com/paperfetch/paperfetch/internal/paper"

// merge backfills empty fields of primary from backup. Non-empty
// primary fields always win; the backup only supplements. The returned
// slice names the fields that changed.
func merge(primary, backup paper.Paper) (paper.Paper, []string) {
	out := primary
	var filled []string

	fillString := func(name string, dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			filled = append(filled, name)
		}
	}

	fillString("title", &out.Title, backup.Title)
	fillString("doi", &out.DOI, backup.DOI)
	fillString("abstract", &out.Abstract, backup.Abstract)
	fillString("venue", &out.Venue, backup.Venue)
	fillString("volume", &out.Volume, backup.Volume)
	fillString("issue", &out.Issue, backup.Issue)
	fillString("pages", &out.Pages, backup.Pages)
	fillString("pubDate", &out.PubDate, backup.PubDate)
	fillString("rawType", &out.RawType, backup.RawType)
	fillString("url", &out.URL, backup.URL)

	if out.Year == 0 && backup.Year > 0 {
		out.Year = backup.Year
		filled = append(filled, "year")
	}
	if len(out.Authors) == 0 && len(backup.Authors) > 0 {
		out.Authors = append([]string(nil), backup.Authors...)
		filled = append(filled, "authors")
	}

	// Document type is only trusted from the backup when the primary
	// provider could not classify the record.
	if (out.DocType == "" || out.DocType == paper.TypeUnknown) &&
		backup.DocType != "" && backup.DocType != paper.TypeUnknown {
		out.DocType = backup.DocType
		filled = append(filled, "docType")
	}

	if backup.CitationCount > out.CitationCount {
		out.CitationCount = backup.CitationCount
		filled = append(filled, "citationCount")
	}

	if len(backup.ExternalIDs) > 0 {
		added := false
		// Copy before writing so the caller's map is never mutated.
		ids := make(map[string]string, len(out.ExternalIDs)+len(backup.ExternalIDs))
		for key, value := range out.ExternalIDs {
			ids[key] = value
		}
		for key, value := range backup.ExternalIDs {
			if _, ok := ids[key]; !ok {
				ids[key] = value
				added = true
			}
		}
		if added {
			out.ExternalIDs = ids
			filled = append(filled, "externalIDs")
		}
	}

	before := len(out.PDFURLs)
	if before > 0 {
		// Detach from the caller's backing array before appending.
		out.PDFURLs = append([]string(nil), out.PDFURLs...)
	}
	for _, u := range backup.PDFURLs {
		out.AddPDFURL(u)
	}
	if len(out.PDFURLs) > before {
		filled = append(filled, "pdfURLs")
	}

	return out, filled
}
