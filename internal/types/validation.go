package types

// ColumnKind is the expected type of a schema column
type ColumnKind string

const (
	KindString ColumnKind = "string"
	KindNumber ColumnKind = "number"
	KindDate   ColumnKind = "date"
)

// ColumnSpec describes one required column
type ColumnSpec struct {
	Name        string     `json:"name"`
	Kind        ColumnKind `json:"expectedKind"`
	Description string     `json:"description"`
	// NonNegative marks numeric columns where negative values are suspicious
	NonNegative bool `json:"nonNegative,omitempty"`
}

// FileSchema lists the columns the backend requires for a file category
type FileSchema struct {
	Category FileCategory `json:"fileType"`
	Columns  []ColumnSpec `json:"requiredColumns"`
}

// ColumnNames returns the required column names in declaration order
func (s FileSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// IssueType classifies a validation issue
type IssueType string

const (
	IssueMissingColumn      IssueType = "missing_column"
	IssueInvalidDataType    IssueType = "invalid_data_type"
	IssueEmptyRequiredField IssueType = "empty_required_field"
	IssueOther              IssueType = "other"
)

// ValidationIssue is a single problem found in an uploaded file
type ValidationIssue struct {
	Type     IssueType `json:"type"`
	Column   *string   `json:"column,omitempty"`
	RowIndex *int      `json:"rowIndex,omitempty"`
	Value    *string   `json:"value,omitempty"`
	Message  string    `json:"message"`
}

// ValidationResult aggregates errors (blocking) and warnings (informational)
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// CountByType counts errors of the given type
func (r ValidationResult) CountByType(t IssueType) int {
	n := 0
	for _, e := range r.Errors {
		if e.Type == t {
			n++
		}
	}
	return n
}
