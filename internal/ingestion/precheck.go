package ingestion

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/types"
	"github.com/kosarica/analytics-service/internal/validation"
)

// FileReport is the local parse and validation outcome of one file
type FileReport struct {
	Category  types.FileCategory     `json:"category"`
	File      string                 `json:"file"`
	Rows      int                    `json:"rows"`
	Truncated bool                   `json:"truncated,omitempty"`
	ParseErr  string                 `json:"parseError,omitempty"`
	Result    types.ValidationResult `json:"result"`
}

// OK reports whether the file parsed and passed validation
func (r FileReport) OK() bool {
	return r.ParseErr == "" && r.Result.IsValid
}

// Precheck parses and validates the given files concurrently. Files with no
// content are skipped. Parse failures are reported per file; only a
// cancelled context is returned as an error.
func Precheck(ctx context.Context, files Files, opts parsers.Options) ([]FileReport, error) {
	var pending []types.FileCategory
	for _, c := range types.FileCategories {
		if !files.For(c).empty() {
			pending = append(pending, c)
		}
	}

	reports := make([]FileReport, len(pending))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = checkFile(c, files.For(c), opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// AllOK reports whether every report passed
func AllOK(reports []FileReport) bool {
	for _, r := range reports {
		if !r.OK() {
			return false
		}
	}
	return true
}

func checkFile(c types.FileCategory, f File, opts parsers.Options) FileReport {
	report := FileReport{Category: c, File: f.Name}

	parsed, err := parsers.Parse(f.Name, f.Content, opts)
	if err != nil {
		var perr *parsers.ParseError
		if errors.As(err, &perr) {
			report.ParseErr = perr.Error()
		} else {
			report.ParseErr = err.Error()
		}
		return report
	}

	report.Rows = len(parsed.Rows)
	report.Truncated = parsed.Truncated
	report.Result, err = validation.ValidateFile(c, parsed)
	if err != nil {
		report.ParseErr = err.Error()
	}
	return report
}
