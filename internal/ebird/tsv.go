package ebird

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// tsvFile is a streaming reader over one EBD tab-separated file. It resolves
// the header row to column indexes by name so downstream parsing is immune to
// column reordering between EBD releases.
type tsvFile struct {
	f    *os.File
	r    *csv.Reader
	cols map[string]int
}

// openTSV opens path and reads its header row. The named columns must all be
// present; EBD releases occasionally add columns but do not remove these.
func openTSV(path string, required []string) (*tsvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := csv.NewReader(f)
	r.Comma = '\t'
	// EBD files are unquoted TSV; free-text fields (locality names, comments)
	// may contain stray double quotes that would otherwise abort the read.
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			f.Close()
			return nil, fmt.Errorf("%s: missing required column %q", path, name)
		}
	}

	return &tsvFile{f: f, r: r, cols: cols}, nil
}

// next returns the next data row. Rows stay valid only until the following
// call (ReuseRecord); callers must copy any field they keep.
func (t *tsvFile) next() ([]string, error) {
	return t.r.Read()
}

// field returns the trimmed value of the named column, or "" when the row is
// short. The column is known to exist; openTSV verified it.
func (t *tsvFile) field(row []string, name string) string {
	i := t.cols[name]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *tsvFile) Close() error {
	return t.f.Close()
}

// parseMonth extracts the month from an EBD OBSERVATION DATE ("2024-06-15").
// Returns 0 when the date is malformed.
func parseMonth(date string) int {
	if len(date) < 7 || date[4] != '-' {
		return 0
	}
	m, err := strconv.Atoi(date[5:7])
	if err != nil || m < 1 || m > 12 {
		return 0
	}
	return m
}
