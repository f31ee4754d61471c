package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/ingestion/bundle"
	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/types"
)

// fileFlags selects the three input files, individually or as one archive
type fileFlags struct {
	transaction   string
	productLookup string
	causalLookup  string
	bundle        string
	skipPrecheck  bool
	parse         parseFlags
}

func (f *fileFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.transaction, "transaction", "", "Transaction file (.csv or .xlsx)")
	fs.StringVar(&f.productLookup, "product-lookup", "", "Product lookup file (.csv or .xlsx)")
	fs.StringVar(&f.causalLookup, "causal-lookup", "", "Causal lookup file (.csv or .xlsx)")
	fs.StringVar(&f.bundle, "bundle", "", "Zip archive holding the files; categories are detected from headers")
	fs.BoolVar(&f.skipPrecheck, "skip-precheck", false, "Upload without validating the files locally first")
	f.parse.register(fs)
	cmd.MarkFlagsMutuallyExclusive("bundle", "transaction")
	cmd.MarkFlagsMutuallyExclusive("bundle", "product-lookup")
	cmd.MarkFlagsMutuallyExclusive("bundle", "causal-lookup")
}

// load reads the selected files from disk
func (f *fileFlags) load(ctx context.Context, opts parsers.Options) (ingestion.Files, error) {
	if f.bundle != "" {
		content, err := os.ReadFile(f.bundle)
		if err != nil {
			return ingestion.Files{}, fmt.Errorf("failed to read bundle: %w", err)
		}
		assigned, err := bundle.Open(ctx, content, cfg.Bundle, opts)
		if err != nil {
			return ingestion.Files{}, err
		}
		for c, e := range assigned {
			logger.Info().Str("category", string(c)).Str("file", e.Name).Msg("Assigned bundle entry")
		}
		return assigned.Files(), nil
	}

	var files ingestion.Files
	for _, src := range []struct {
		path string
		dst  *ingestion.File
	}{
		{f.transaction, &files.Transaction},
		{f.productLookup, &files.ProductLookup},
		{f.causalLookup, &files.CausalLookup},
	} {
		if src.path == "" {
			continue
		}
		content, err := os.ReadFile(src.path)
		if err != nil {
			return ingestion.Files{}, fmt.Errorf("failed to read file: %w", err)
		}
		*src.dst = ingestion.File{Name: filepath.Base(src.path), Content: content}
	}
	return files, nil
}

var (
	ingestName        string
	ingestDescription string
	ingestFiles       fileFlags
	resumeFiles       fileFlags
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Create a dataset and upload its files",
	Long: `Validate the transaction, product lookup and causal lookup files locally, then
create a dataset on the backend and upload the files in order. An interrupted
import can be continued with 'analytics resume <dataset-id>'.`,
	Example: `  analytics ingest --name "Carbo 2024" --transaction tx.csv --product-lookup products.csv --causal-lookup causal.csv
  analytics ingest --name "Carbo 2024" --bundle carbo.zip`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <dataset-id>",
	Short: "Continue an interrupted dataset import",
	Long: `Continue uploading files for a dataset whose import stopped part way. Steps that
already completed are skipped, so only the files for the remaining steps are needed.`,
	Example: `  analytics resume 42 --product-lookup products.csv --causal-lookup causal.csv
  analytics resume 42 --bundle carbo.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(ingestCmd, resumeCmd)

	ingestCmd.Flags().StringVar(&ingestName, "name", "", "Dataset name (required)")
	ingestCmd.Flags().StringVar(&ingestDescription, "description", "", "Dataset description")
	ingestCmd.MarkFlagRequired("name")
	ingestFiles.register(ingestCmd)

	resumeFiles.register(resumeCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := prepareFiles(ctx, cmd, &ingestFiles)
	if err != nil {
		return err
	}

	req := ingestion.CreateRequest{Name: ingestName, Files: files}
	if ingestDescription != "" {
		req.Description = &ingestDescription
	}

	return withOrchestrator(func(o *ingestion.Orchestrator) error {
		run, err := o.CreateDataset(ctx, req)
		if err != nil {
			return err
		}
		return follow(cmd.OutOrStdout(), run)
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := prepareFiles(ctx, cmd, &resumeFiles)
	if err != nil {
		return err
	}

	return withOrchestrator(func(o *ingestion.Orchestrator) error {
		run, err := o.Resume(ctx, args[0], files)
		if errors.Is(err, ingestion.ErrNothingToResume) {
			fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s is already fully imported\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		return follow(cmd.OutOrStdout(), run)
	})
}

// prepareFiles loads the files and, unless disabled, validates them locally
func prepareFiles(ctx context.Context, cmd *cobra.Command, f *fileFlags) (ingestion.Files, error) {
	opts, err := f.parse.options(cmd.Flags())
	if err != nil {
		return ingestion.Files{}, err
	}
	files, err := f.load(ctx, opts)
	if err != nil {
		return ingestion.Files{}, err
	}
	if f.skipPrecheck {
		return files, nil
	}

	reports, err := ingestion.Precheck(ctx, files, opts)
	if err != nil {
		return ingestion.Files{}, err
	}
	if ingestion.AllOK(reports) {
		logger.Info().Int("files", len(reports)).Msg("Files passed local validation")
		return files, nil
	}

	w := cmd.OutOrStdout()
	if err := emit(w, reports, func(w io.Writer) { printPrecheck(w, reports) }); err != nil {
		return ingestion.Files{}, err
	}
	return ingestion.Files{}, errors.New("files failed local validation, nothing was uploaded")
}

func printPrecheck(w io.Writer, reports []ingestion.FileReport) {
	t := newTable(w)
	fmt.Fprintln(t, "CATEGORY\tFILE\tROWS\tSTATUS\tERRORS\tWARNINGS")
	for _, r := range reports {
		status := "OK"
		switch {
		case r.ParseErr != "":
			status = "UNREADABLE"
		case !r.Result.IsValid:
			status = "INVALID"
		}
		fmt.Fprintf(t, "%s\t%s\t%d\t%s\t%d\t%d\n", r.Category, r.File, r.Rows, status, len(r.Result.Errors), len(r.Result.Warnings))
	}
	t.Flush()

	for _, r := range reports {
		if r.ParseErr != "" {
			fmt.Fprintf(w, "\n%s: %s\n", r.File, r.ParseErr)
			continue
		}
		printIssues(w, r.File+" errors", r.Result.Errors)
	}
}

// withOrchestrator opens the app and checkpoint store for one run
func withOrchestrator(fn func(o *ingestion.Orchestrator) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	checkpoints, err := cfg.OpenCheckpoints()
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	return fn(ingestion.NewOrchestrator(a.api, a.datasets, checkpoints.Store))
}

// follow prints each progress event as it happens and then the outcome
func follow(w io.Writer, run *ingestion.Run) error {
	var encoder *json.Encoder
	if outputFormat == outputJSON {
		encoder = json.NewEncoder(w)
	}

	for p := range run.Progress() {
		if encoder != nil {
			if err := encoder.Encode(p); err != nil {
				return err
			}
			continue
		}
		if p.Warning != "" {
			fmt.Fprintf(w, "warning: %s\n", p.Warning)
			continue
		}
		fmt.Fprintf(w, "[%3d%%] %s\n", p.Progress, p.Message)
	}

	result := run.Result()
	if encoder != nil {
		if err := encoder.Encode(result); err != nil {
			return err
		}
	}
	if result.Success {
		if encoder == nil && result.Dataset != nil {
			printDatasetSummary(w, *result.Dataset)
		}
		return nil
	}

	if id := run.DatasetID(); id != "" {
		return fmt.Errorf("%s (continue with 'analytics resume %s')", result.Error, id)
	}
	return errors.New(result.Error)
}

func printDatasetSummary(w io.Writer, d types.Dataset) {
	fmt.Fprintln(w)
	t := newTable(w)
	fmt.Fprintf(t, "Dataset\t%s\n", d.ID)
	fmt.Fprintf(t, "Name\t%s\n", d.Name)
	fmt.Fprintf(t, "Import\t%s\n", d.ImportStatus)
	fmt.Fprintf(t, "Analysis\t%s\n", d.AnalysisStatus)
	t.Flush()
}
