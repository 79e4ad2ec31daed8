package pdfget

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/paperfetch/paperfetch/internal/paper"
)

const maxStemLength = 120

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// sanitizeStem makes a string safe as a file name stem.
func sanitizeStem(text string) string {
	cleaned := whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	cleaned = unsafeChars.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, " .")
	if len(cleaned) > maxStemLength {
		cleaned = strings.TrimRight(cleaned[:maxStemLength], " .")
	}
	if cleaned == "" {
		return "paper"
	}
	return cleaned
}

// targetPath picks "<year>-<title>.pdf" under dir, suffixing -2, -3,
// ... when the name is taken.
func targetPath(dir string, p paper.Paper) string {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "paper"
	}
	stem := title
	if p.Year > 0 {
		stem = strconv.Itoa(p.Year) + "-" + title
	}
	stem = sanitizeStem(stem)

	path := filepath.Join(dir, stem+".pdf")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	for index := 2; ; index++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d.pdf", stem, index))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
