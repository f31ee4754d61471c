// Package tabular turns raw string records into a types.ParsedFile.
// CSV and XLSX parsers feed records here so header and row handling is identical.
package tabular

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kosarica/analytics-service/internal/types"
)

var (
	// ErrEmptyFile is returned when no non-empty line was found
	ErrEmptyFile = errors.New("file is empty")
	// ErrNoHeader is returned when the header row is unusable
	ErrNoHeader = errors.New("no header row")
	// ErrDuplicateHeader is returned when two columns share a name
	ErrDuplicateHeader = errors.New("duplicate column name")
)

// Options controls header handling and row limits
type Options struct {
	HasHeader bool
	// MaxRows caps the number of data rows kept (0 = unlimited)
	MaxRows int
}

// Builder accumulates records into a ParsedFile
type Builder struct {
	file    *types.ParsedFile
	opts    Options
	headers []string
	done    bool
}

// NewBuilder creates a builder for the named file
func NewBuilder(name string, format types.FileFormat, opts Options) *Builder {
	return &Builder{
		file: &types.ParsedFile{
			Name:   name,
			Format: format,
			Rows:   make([]types.ParsedRow, 0),
		},
		opts: opts,
	}
}

// Add consumes one raw record. Cells are trimmed and fully empty records are
// skipped. It returns false once the row limit is reached and further
// records would be ignored.
func (b *Builder) Add(record []string) (bool, error) {
	if b.done {
		return false, nil
	}

	cells := make([]string, len(record))
	for i, c := range record {
		cells[i] = strings.TrimSpace(c)
	}
	if isEmptyRow(cells) {
		return true, nil
	}

	if b.headers == nil {
		if b.opts.HasHeader {
			headers, err := buildHeaders(cells)
			if err != nil {
				return false, err
			}
			b.headers = headers
			return true, nil
		}
		b.headers = syntheticHeaders(len(cells))
	}

	if b.opts.MaxRows > 0 && len(b.file.Rows) >= b.opts.MaxRows {
		b.file.Truncated = true
		b.file.MaxRows = b.opts.MaxRows
		b.done = true
		return false, nil
	}

	row := make(types.ParsedRow, len(b.headers))
	for i, h := range b.headers {
		if i < len(cells) {
			row[h] = types.TextCell(cells[i])
		} else {
			row[h] = types.TextCell("")
		}
	}
	b.file.Rows = append(b.file.Rows, row)
	return true, nil
}

// File returns the parsed file. It fails if no header row was seen.
func (b *Builder) File() (*types.ParsedFile, error) {
	if b.headers == nil {
		return nil, ErrEmptyFile
	}
	b.file.Headers = b.headers
	return b.file, nil
}

// buildHeaders trims trailing blank header cells and rejects blank or
// duplicate names elsewhere
func buildHeaders(cells []string) ([]string, error) {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	if end == 0 {
		return nil, ErrNoHeader
	}

	headers := make([]string, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		name := cells[i]
		if name == "" {
			return nil, fmt.Errorf("%w: blank column name at position %d", ErrNoHeader, i+1)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %q appears at positions %d and %d", ErrDuplicateHeader, name, prev+1, i+1)
		}
		seen[name] = i
		headers[i] = name
	}
	return headers, nil
}

func syntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i+1)
	}
	return headers
}

// isEmptyRow checks if a row is empty
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
