package xlsx

// XlsxParserOptions represents XLSX parser options
type XlsxParserOptions struct {
	// HasHeader indicates whether the first non-empty row is a header
	HasHeader bool `json:"hasHeader"`
	// MaxRows caps the number of data rows read (0 = unlimited)
	MaxRows int `json:"maxRows,omitempty"`
	// Sheet selects a worksheet by name; empty means the first sheet
	Sheet string `json:"sheet,omitempty"`
}

// DefaultOptions returns default XLSX parser options
func DefaultOptions() XlsxParserOptions {
	return XlsxParserOptions{
		HasHeader: true,
	}
}
