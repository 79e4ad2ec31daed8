package pdfget

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Validate checks that the file at path is a parseable PDF with at
// least one page. Publishers sometimes serve error pages with a pdf
// Content-Type; this catches those before the file is reported as a
// successful download.
func Validate(path string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return fmt.Errorf("pdf has no pages")
	}
	return nil
}
