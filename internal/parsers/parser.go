// Package parsers reads uploaded CSV and Excel files into types.ParsedFile.
package parsers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kosarica/analytics-service/internal/parsers/charset"
	"github.com/kosarica/analytics-service/internal/parsers/csv"
	"github.com/kosarica/analytics-service/internal/parsers/tabular"
	"github.com/kosarica/analytics-service/internal/parsers/xlsx"
	"github.com/kosarica/analytics-service/internal/types"
)

// Options configures parsing for every supported format
type Options struct {
	Delimiter csv.CsvDelimiter `json:"delimiter,omitempty" mapstructure:"delimiter"`
	Encoding  charset.Encoding `json:"encoding,omitempty" mapstructure:"encoding"`
	HasHeader bool             `json:"hasHeader" mapstructure:"has_header"`
	MaxRows   int              `json:"maxRows,omitempty" mapstructure:"max_rows"`
	Sheet     string           `json:"sheet,omitempty" mapstructure:"sheet"`
}

// DefaultOptions returns options with a header row and auto detection
func DefaultOptions() Options {
	return Options{
		Delimiter: csv.DelimiterAuto,
		Encoding:  charset.EncodingAuto,
		HasHeader: true,
	}
}

// ParseError reports a file that could not be read into rows. It is fatal
// for that file; data-content problems are validation issues instead.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return fmt.Sprintf("cannot parse %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const (
	ReasonEmpty       = "file is empty"
	ReasonNoHeader    = "no header row"
	ReasonDuplicate   = "duplicate column"
	ReasonEncoding    = "malformed encoding"
	ReasonUnsupported = "unsupported format"
	ReasonUnreadable  = "unreadable file"
)

// Parse reads content according to the format implied by name
func Parse(name string, content []byte, opts Options) (*types.ParsedFile, error) {
	format, ok := types.DetectFormat(name)
	if !ok {
		return nil, &ParseError{File: name, Reason: ReasonUnsupported, Err: fmt.Errorf("extension %q", filepath.Ext(name))}
	}
	return ParseAs(name, format, content, opts)
}

// ParseAs reads content in an explicit format
func ParseAs(name string, format types.FileFormat, content []byte, opts Options) (*types.ParsedFile, error) {
	if len(content) == 0 {
		return nil, &ParseError{File: name, Reason: ReasonEmpty}
	}

	var (
		file *types.ParsedFile
		err  error
	)
	switch format {
	case types.FormatCSV:
		file, err = csv.NewParser(csv.CsvParserOptions{
			Delimiter: opts.Delimiter,
			Encoding:  opts.Encoding,
			HasHeader: opts.HasHeader,
			MaxRows:   opts.MaxRows,
		}).Parse(name, content)
	case types.FormatXLSX:
		file, err = xlsx.NewParser(xlsx.XlsxParserOptions{
			HasHeader: opts.HasHeader,
			MaxRows:   opts.MaxRows,
			Sheet:     opts.Sheet,
		}).Parse(name, content)
	case types.FormatXLS:
		return nil, &ParseError{File: name, Reason: ReasonUnsupported, Err: errors.New("legacy .xls workbooks are not supported, save the sheet as .xlsx or .csv")}
	default:
		return nil, &ParseError{File: name, Reason: ReasonUnsupported, Err: fmt.Errorf("format %q", format)}
	}
	if err != nil {
		return nil, &ParseError{File: name, Reason: reasonFor(err), Err: err}
	}
	return file, nil
}

// ParseFile reads a file from disk
func ParseFile(path string, opts Options) (*types.ParsedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{File: filepath.Base(path), Reason: ReasonUnreadable, Err: err}
	}
	return Parse(filepath.Base(path), content, opts)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, tabular.ErrEmptyFile):
		return ReasonEmpty
	case errors.Is(err, tabular.ErrNoHeader):
		return ReasonNoHeader
	case errors.Is(err, tabular.ErrDuplicateHeader):
		return ReasonDuplicate
	case errors.Is(err, charset.ErrMalformed), errors.Is(err, charset.ErrBinary):
		return ReasonEncoding
	default:
		return ReasonUnreadable
	}
}
