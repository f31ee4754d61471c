package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/internal/types"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"dataset", "ds"},
	Short:   "List and inspect datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your datasets, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		list, err := a.datasets.List(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), list, func(w io.Writer) { printDatasets(w, list) })
	},
}

var datasetsShowCmd = &cobra.Command{
	Use:   "show <dataset-id>",
	Short: "Show one dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		e, err := a.datasets.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		d := e.Value
		return emit(cmd.OutOrStdout(), d, func(w io.Writer) {
			t := newTable(w)
			fmt.Fprintf(t, "ID\t%s\n", d.ID)
			fmt.Fprintf(t, "Name\t%s\n", d.Name)
			fmt.Fprintf(t, "Description\t%s\n", deref(d.Description))
			fmt.Fprintf(t, "Import\t%s\n", d.ImportStatus)
			fmt.Fprintf(t, "Analysis\t%s\n", d.AnalysisStatus)
			fmt.Fprintf(t, "Created\t%s\n", formatTime(d.CreatedAt))
			fmt.Fprintf(t, "Updated\t%s\n", formatTime(d.UpdatedAt))
			t.Flush()
			if d.ImportStatus != types.ImportCompleted {
				fmt.Fprintf(w, "\nImport is incomplete; continue with 'analytics resume %s'\n", d.ID)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd, datasetsShowCmd)
}

func printDatasets(w io.Writer, list []types.Dataset) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No datasets")
		return
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tIMPORT\tANALYSIS\tCREATED")
	for _, d := range list {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.ImportStatus, d.AnalysisStatus, formatTime(d.CreatedAt))
	}
	t.Flush()
}
