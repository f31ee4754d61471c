package types

// CellKind tags a RawCell as empty or holding text
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
)

// RawCell is an uncoerced cell value. Parsers never infer types; coercion is
// left to the validator so type mismatches can be reported.
type RawCell struct {
	Kind CellKind `json:"kind"`
	Text string   `json:"text,omitempty"`
}

// TextCell builds a cell from already-trimmed text. Empty text yields an empty cell.
func TextCell(s string) RawCell {
	if s == "" {
		return RawCell{Kind: CellEmpty}
	}
	return RawCell{Kind: CellText, Text: s}
}

// IsEmpty reports whether the cell holds no value
func (c RawCell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String returns the raw text, or "" for empty cells
func (c RawCell) String() string {
	return c.Text
}

// ParsedRow maps header names to raw cell values
type ParsedRow map[string]RawCell

// Cell returns the cell for a column; absent columns read as empty
func (r ParsedRow) Cell(column string) RawCell {
	if c, ok := r[column]; ok {
		return c
	}
	return RawCell{}
}

// ParsedFile is the in-memory table produced by a parser.
// It is treated as immutable once returned.
type ParsedFile struct {
	Name    string      `json:"name"`
	Format  FileFormat  `json:"format"`
	Headers []string    `json:"headers"`
	Rows    []ParsedRow `json:"rows"`
	// Truncated is set when parsing stopped at the configured row limit
	Truncated bool `json:"truncated,omitempty"`
	// MaxRows is the limit that caused truncation
	MaxRows int `json:"maxRows,omitempty"`
}

// HasHeader reports whether the file has the named column (exact match)
func (f *ParsedFile) HasHeader(name string) bool {
	for _, h := range f.Headers {
		if h == name {
			return true
		}
	}
	return false
}
