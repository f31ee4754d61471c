package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/internal/backend"
)

var correlateReq backend.BivariateRequest

var statsCmd = &cobra.Command{
	Use:   "stats <dataset-id> <table> <variable>",
	Short: "Show statistics for one column of a dataset table",
	Example: `  analytics stats 42 transaction dollar_sales
  analytics stats 42 product_lookup brand -o json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		s, err := a.api.VariableStats(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), s, func(w io.Writer) { printStats(w, s) })
	},
}

var correlateCmd = &cobra.Command{
	Use:     "correlate <dataset-id>",
	Short:   "Show the correlation between two variables",
	Example: `  analytics correlate 42 --table1 transaction --variable1 units --table2 transaction --variable2 dollar_sales`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		b, err := a.api.Bivariate(cmd.Context(), args[0], correlateReq)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), b, func(w io.Writer) {
			t := newTable(w)
			fmt.Fprintf(t, "Variables\t%s.%s ~ %s.%s\n", correlateReq.Table1, correlateReq.Variable1, correlateReq.Table2, correlateReq.Variable2)
			if b.Method != "" {
				fmt.Fprintf(t, "Method\t%s\n", b.Method)
			}
			fmt.Fprintf(t, "Correlation\t%s\n", formatFloat(b.Correlation))
			t.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, correlateCmd)

	fs := correlateCmd.Flags()
	fs.StringVar(&correlateReq.Table1, "table1", "", "Table of the first variable (required)")
	fs.StringVar(&correlateReq.Variable1, "variable1", "", "First variable (required)")
	fs.StringVar(&correlateReq.Table2, "table2", "", "Table of the second variable (required)")
	fs.StringVar(&correlateReq.Variable2, "variable2", "", "Second variable (required)")
	for _, name := range []string{"table1", "variable1", "table2", "variable2"} {
		correlateCmd.MarkFlagRequired(name)
	}
}

func printStats(w io.Writer, s backend.VariableStats) {
	fmt.Fprintf(w, "\n%s.%s (%s)\n", s.Table, s.Variable, s.Kind)
	rule(w)
	t := newTable(w)
	fmt.Fprintf(t, "Count\t%d\n", s.Count)
	fmt.Fprintf(t, "Unique\t%d\n", s.Unique)
	if s.IsNumerical() {
		for _, row := range []struct {
			label string
			value *float64
		}{
			{"Min", s.Min}, {"Q1", s.Q1}, {"Median", s.Median}, {"Q3", s.Q3},
			{"Max", s.Max}, {"Mean", s.Mean}, {"Std", s.Std},
		} {
			fmt.Fprintf(t, "%s\t%s\n", row.label, formatFloat(row.value))
		}
	} else if s.Mode != nil {
		fmt.Fprintf(t, "Mode\t%v\n", s.Mode)
	}
	t.Flush()

	if len(s.Bins) == 0 {
		return
	}
	fmt.Fprintln(w)
	t = newTable(w)
	fmt.Fprintln(t, "BIN\tCOUNT")
	for _, b := range s.Bins {
		fmt.Fprintf(t, "%s\t%d\n", b.Label, b.Count)
	}
	t.Flush()
}
