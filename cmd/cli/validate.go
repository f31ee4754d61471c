package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/parsers/charset"
	"github.com/kosarica/analytics-service/internal/parsers/csv"
	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
	"github.com/kosarica/analytics-service/internal/validation"
)

// parseFlags overrides the configured parser options for one command
type parseFlags struct {
	delimiter string
	encoding  string
	maxRows   int
	sheet     string
	noHeader  bool
}

func (p *parseFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&p.delimiter, "delimiter", "auto", "CSV delimiter: auto, comma, semicolon, tab or pipe")
	fs.StringVar(&p.encoding, "encoding", "auto", "Text encoding: auto, utf-8, windows-1250, windows-1252 or iso-8859-2")
	fs.IntVar(&p.maxRows, "max-rows", 0, "Stop reading after this many data rows (0 reads everything)")
	fs.StringVar(&p.sheet, "sheet", "", "Worksheet to read from .xlsx files (default is the first)")
	fs.BoolVar(&p.noHeader, "no-header", false, "Treat the first row as data")
}

// options applies the flags the user set on top of the config file
func (p *parseFlags) options(fs *pflag.FlagSet) (parsers.Options, error) {
	opts := cfg.Parser
	if fs.Changed("delimiter") {
		d, ok := csv.ParseDelimiter(p.delimiter)
		if !ok {
			return opts, fmt.Errorf("invalid delimiter: %q", p.delimiter)
		}
		opts.Delimiter = d
	}
	if fs.Changed("encoding") {
		enc := charset.Encoding(p.encoding)
		if !charset.IsSupported(enc) {
			return opts, fmt.Errorf("unsupported encoding: %q", p.encoding)
		}
		opts.Encoding = enc
	}
	if fs.Changed("max-rows") {
		opts.MaxRows = p.maxRows
	}
	if fs.Changed("sheet") {
		opts.Sheet = p.sheet
	}
	if fs.Changed("no-header") {
		opts.HasHeader = !p.noHeader
	}
	return opts, nil
}

var (
	validateType  string
	validateParse parseFlags
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse a local file and check it against a schema",
	Long: `Parse a local CSV or XLSX file and validate it against the required columns of
a file category. When --type is omitted the category is inferred from the headers.
Exits non-zero when the file has errors.`,
	Example: `  analytics validate ./data/transactions.csv --type transaction
  analytics validate ./data/products.xlsx --sheet Products
  analytics validate ./data/causal.csv --delimiter semicolon --encoding windows-1250 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateType, "type", "t", "", "File category: transaction, product_lookup or causal_lookup")
	validateParse.register(validateCmd.Flags())
}

// errInvalidFile marks a validate run that completed with errors
var errInvalidFile = errors.New("file has validation errors")

type validateReport struct {
	File      string                 `json:"file"`
	Category  types.FileCategory     `json:"category"`
	Rows      int                    `json:"rows"`
	Truncated bool                   `json:"truncated,omitempty"`
	Result    types.ValidationResult `json:"result"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	opts, err := validateParse.options(cmd.Flags())
	if err != nil {
		return err
	}

	logger.Debug().Str("file", args[0]).Msg("Parsing file")
	parsed, err := parsers.ParseFile(args[0], opts)
	if err != nil {
		return err
	}

	var category types.FileCategory
	if validateType != "" {
		if category, err = parseCategory(validateType); err != nil {
			return err
		}
	} else {
		c, ok := schema.Classify(parsed.Headers)
		if !ok {
			return fmt.Errorf("cannot tell the file category from the headers of %s, use --type", parsed.Name)
		}
		category = c
		logger.Info().Str("category", string(c)).Msg("Detected file category")
	}

	result, err := validation.ValidateFile(category, parsed)
	if err != nil {
		return err
	}

	report := validateReport{
		File:      parsed.Name,
		Category:  category,
		Rows:      len(parsed.Rows),
		Truncated: parsed.Truncated,
		Result:    result,
	}
	if err := emit(cmd.OutOrStdout(), report, func(w io.Writer) { printValidation(w, report) }); err != nil {
		return err
	}
	if !result.IsValid {
		return errInvalidFile
	}
	return nil
}

func printValidation(w io.Writer, r validateReport) {
	status := "VALID"
	if !r.Result.IsValid {
		status = "INVALID"
	}

	fmt.Fprintf(w, "\nValidation Results for %s\n", r.File)
	rule(w)
	t := newTable(w)
	fmt.Fprintf(t, "Category\t%s\n", r.Category)
	fmt.Fprintf(t, "Status\t%s\n", status)
	fmt.Fprintf(t, "Rows\t%d\n", r.Rows)
	fmt.Fprintf(t, "Errors\t%d\n", len(r.Result.Errors))
	fmt.Fprintf(t, "Warnings\t%d\n", len(r.Result.Warnings))
	t.Flush()

	printIssues(w, "Errors", r.Result.Errors)
	printIssues(w, "Warnings", r.Result.Warnings)
}

func printIssues(w io.Writer, title string, issues []types.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFirst %d %s:\n", min(len(issues), maxListed), title)
	rule(w)
	for i, issue := range issues {
		if i >= maxListed {
			fmt.Fprintf(w, "... and %d more\n", len(issues)-maxListed)
			break
		}
		fmt.Fprintf(w, "[%s] %s\n", issue.Type, issue.Message)
	}
}
