// Package validation checks parsed files against the schema registry.
package validation

import (
	"errors"
	"fmt"

	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
)

var (
	// ErrSchemaNotFound is returned for an unknown file category
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrNoFile is returned when there is no parsed file to validate
	ErrNoFile = errors.New("no parsed file")
)

// ValidateFile validates a parsed file against the schema registered for
// category. Data problems are reported in the result; only structural
// problems are returned as errors.
func ValidateFile(category types.FileCategory, parsed *types.ParsedFile) (types.ValidationResult, error) {
	s, ok := schema.Get(category)
	if !ok {
		return types.ValidationResult{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, category)
	}
	if parsed == nil {
		return types.ValidationResult{}, ErrNoFile
	}
	return Validate(s, parsed), nil
}

// Validate applies s to parsed. It has no side effects and returns the same
// result for the same inputs.
func Validate(s types.FileSchema, parsed *types.ParsedFile) types.ValidationResult {
	result := types.ValidationResult{
		Errors:   []types.ValidationIssue{},
		Warnings: []types.ValidationIssue{},
	}

	// required column name -> header as it appears in the file
	headers := make(map[string]string, len(parsed.Headers))
	for _, h := range parsed.Headers {
		key := schema.NormalizeColumn(h)
		if _, dup := headers[key]; !dup {
			headers[key] = h
		}
	}

	present := make([]types.ColumnSpec, 0, len(s.Columns))
	actual := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		h, ok := headers[col.Name]
		if !ok {
			result.Errors = append(result.Errors, types.ValidationIssue{
				Type:    types.IssueMissingColumn,
				Column:  types.StringPtr(col.Name),
				Message: fmt.Sprintf("Missing required column '%s'", col.Name),
			})
			continue
		}
		present = append(present, col)
		actual = append(actual, h)
	}

	negatives := make([]int, len(present))
	for i, row := range parsed.Rows {
		rowIndex := i + 1
		for j, col := range present {
			cell := row.Cell(actual[j])
			if cell.IsEmpty() {
				result.Errors = append(result.Errors, types.ValidationIssue{
					Type:     types.IssueEmptyRequiredField,
					Column:   types.StringPtr(col.Name),
					RowIndex: types.IntPtr(rowIndex),
					Message:  fmt.Sprintf("Row %d: required field '%s' is empty", rowIndex, col.Name),
				})
				continue
			}

			raw := cell.String()
			switch col.Kind {
			case types.KindNumber:
				v, ok := parseNumber(raw)
				if !ok {
					result.Errors = append(result.Errors, typeIssue(col, rowIndex, raw))
					continue
				}
				if col.NonNegative && v < 0 {
					negatives[j]++
				}
			case types.KindDate:
				if _, ok := parseDate(raw); !ok {
					result.Errors = append(result.Errors, typeIssue(col, rowIndex, raw))
				}
			}
		}
	}

	if len(parsed.Rows) == 0 {
		result.Warnings = append(result.Warnings, types.ValidationIssue{
			Type:    types.IssueOther,
			Message: "File contains no data rows",
		})
	}
	for j, n := range negatives {
		if n == 0 {
			continue
		}
		result.Warnings = append(result.Warnings, types.ValidationIssue{
			Type:    types.IssueOther,
			Column:  types.StringPtr(present[j].Name),
			Message: fmt.Sprintf("%d of %d rows have a negative value in '%s'", n, len(parsed.Rows), present[j].Name),
		})
	}
	if parsed.Truncated {
		result.Warnings = append(result.Warnings, types.ValidationIssue{
			Type:    types.IssueOther,
			Message: fmt.Sprintf("Only the first %d rows were read and validated", parsed.MaxRows),
		})
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func typeIssue(col types.ColumnSpec, rowIndex int, raw string) types.ValidationIssue {
	return types.ValidationIssue{
		Type:     types.IssueInvalidDataType,
		Column:   types.StringPtr(col.Name),
		RowIndex: types.IntPtr(rowIndex),
		Value:    types.StringPtr(raw),
		Message:  fmt.Sprintf("Row %d: '%s' expects a %s, got '%s'", rowIndex, col.Name, col.Kind, raw),
	}
}
