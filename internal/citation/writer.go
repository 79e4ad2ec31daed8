package citation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultOutputDir is where dated citation files are appended when the
// caller gives no explicit directory.
const DefaultOutputDir = "./citations"

var entryIndexPattern = regexp.MustCompile(`^\[(\d+)\]`)

// Writer appends citation entries to one flat text file per day,
// prefixing each entry with an auto-incrementing bracketed index.
type Writer struct {
	Dir string
}

// NewWriter creates a writer rooted at dir, falling back to
// DefaultOutputDir when dir is empty.
func NewWriter(dir string) Writer {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return Writer{Dir: dir}
}

// Path returns the dated file the next entry would land in.
func (w Writer) Path(now time.Time) string {
	return filepath.Join(w.Dir, now.Format("2006-01-02")+".txt")
}

// Append writes one rendered entry to today's file and returns the file
// path and the index assigned to the entry.
func (w Writer) Append(entry string, now time.Time) (string, int, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating output dir: %w", err)
	}
	path := w.Path(now)

	index, err := nextIndex(path)
	if err != nil {
		return "", 0, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("opening citation file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "[%d] %s", index, entry); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("appending citation: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("flushing citation file: %w", err)
	}
	return path, index, nil
}

// nextIndex scans the existing dated file for bracketed entry indexes
// and returns the next one. A missing file starts at 1.
func nextIndex(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("reading citation file: %w", err)
	}

	max := 0
	for _, line := range strings.Split(string(data), "\n") {
		m := entryIndexPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}
