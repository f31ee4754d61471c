package types

import (
	"path/filepath"
	"strings"
)

// FileFormat represents supported upload formats
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
	FormatXLS  FileFormat = "xls"
	FormatZIP  FileFormat = "zip"
)

// DetectFormat returns the format implied by a filename extension
func DetectFormat(filename string) (FileFormat, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	case ".zip":
		return FormatZIP, true
	default:
		return "", false
	}
}

// FileCategory identifies which dataset table an uploaded file feeds
type FileCategory string

const (
	CategoryTransaction   FileCategory = "transaction"
	CategoryProductLookup FileCategory = "product_lookup"
	CategoryCausalLookup  FileCategory = "causal_lookup"
)

// FileCategories lists the categories in ingestion order
var FileCategories = []FileCategory{
	CategoryTransaction,
	CategoryProductLookup,
	CategoryCausalLookup,
}

// IsValidCategory checks whether s names a known file category
func IsValidCategory(s string) bool {
	for _, c := range FileCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Label returns a human readable name ("causal lookup")
func (c FileCategory) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to the given int
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr returns a pointer to the given float64
func Float64Ptr(f float64) *float64 {
	return &f
}

// BoolPtr returns a pointer to the given bool
func BoolPtr(b bool) *bool {
	return &b
}
