package xlsx

import (
	"bytes"
	"fmt"

	"github.com/kosarica/analytics-service/internal/parsers/tabular"
	"github.com/kosarica/analytics-service/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Parser is an XLSX parser implementation
type Parser struct {
	options XlsxParserOptions
}

// NewParser creates a new XLSX parser
func NewParser(options XlsxParserOptions) *Parser {
	return &Parser{
		options: options,
	}
}

// Parse reads the selected worksheet into a ParsedFile. Cells are read as
// their formatted text so numbers stay raw strings.
func (p *Parser) Parse(name string, content []byte) (*types.ParsedFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("file", name).Msg("Failed to close workbook")
		}
	}()

	sheetName, err := p.selectSheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheetName, err)
	}
	defer rows.Close()

	builder := tabular.NewBuilder(name, types.FormatXLSX, tabular.Options{
		HasHeader: p.options.HasHeader,
		MaxRows:   p.options.MaxRows,
	})

	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		more, err := builder.Add(record)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate worksheet %q: %w", sheetName, err)
	}

	return builder.File()
}

// selectSheet returns the configured sheet or the first one
func (p *Parser) selectSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if p.options.Sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == p.options.Sheet {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %v)", p.options.Sheet, sheets)
}
