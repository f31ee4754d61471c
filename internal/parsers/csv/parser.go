package csv

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kosarica/analytics-service/internal/parsers/charset"
	"github.com/kosarica/analytics-service/internal/parsers/tabular"
	"github.com/kosarica/analytics-service/internal/types"
	"github.com/rs/zerolog/log"
)

// Parser implements CSV parsing with encoding and delimiter detection
type Parser struct {
	options CsvParserOptions
}

// NewParser creates a new CSV parser with the given options
func NewParser(options CsvParserOptions) *Parser {
	return &Parser{
		options: options,
	}
}

// Parse decodes content and reads it into a ParsedFile. The first non-empty
// line is the header, empty lines are skipped and every cell is trimmed.
// Values are kept as raw text.
func (p *Parser) Parse(name string, content []byte) (*types.ParsedFile, error) {
	opts := p.resolveOptions()

	decoded, err := charset.Decode(content, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	if opts.Delimiter == DelimiterAuto {
		opts.Delimiter = DetectDelimiter(decoded)
		log.Debug().Str("file", name).Str("delimiter", string(opts.Delimiter)).Msg("Detected delimiter")
	}

	reader := stdcsv.NewReader(strings.NewReader(decoded))
	reader.Comma = rune(opts.Delimiter[0])
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	builder := tabular.NewBuilder(name, types.FormatCSV, tabular.Options{
		HasHeader: opts.HasHeader,
		MaxRows:   opts.MaxRows,
	})

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *stdcsv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("malformed CSV at line %d: %w", perr.Line, perr.Err)
			}
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		more, err := builder.Add(record)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	return builder.File()
}

// resolveOptions returns options with defaults filled in
func (p *Parser) resolveOptions() CsvParserOptions {
	opts := p.options
	if opts.Encoding == "" {
		opts.Encoding = charset.EncodingAuto
	}
	return opts
}
