package csv

import "github.com/kosarica/analytics-service/internal/parsers/charset"

// CsvDelimiter represents supported CSV delimiters
type CsvDelimiter string

const (
	DelimiterAuto      CsvDelimiter = ""
	DelimiterComma     CsvDelimiter = ","
	DelimiterSemicolon CsvDelimiter = ";"
	DelimiterTab       CsvDelimiter = "\t"
	DelimiterPipe      CsvDelimiter = "|"
)

// ParseDelimiter maps a flag value ("auto", ",", "comma", "tab", ...) to a delimiter
func ParseDelimiter(s string) (CsvDelimiter, bool) {
	switch s {
	case "", "auto":
		return DelimiterAuto, true
	case ",", "comma":
		return DelimiterComma, true
	case ";", "semicolon":
		return DelimiterSemicolon, true
	case "\t", `\t`, "tab":
		return DelimiterTab, true
	case "|", "pipe":
		return DelimiterPipe, true
	}
	return "", false
}

// CsvParserOptions represents CSV parser options
type CsvParserOptions struct {
	Delimiter CsvDelimiter     `json:"delimiter,omitempty"`
	Encoding  charset.Encoding `json:"encoding,omitempty"`
	HasHeader bool             `json:"hasHeader"`
	MaxRows   int              `json:"maxRows,omitempty"`
}

// DefaultOptions returns default CSV parser options
func DefaultOptions() CsvParserOptions {
	return CsvParserOptions{
		Delimiter: DelimiterAuto,
		Encoding:  charset.EncodingAuto,
		HasHeader: true,
	}
}
