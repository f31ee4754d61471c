package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas [category]",
	Short: "List the required columns for each file category",
	Example: `  analytics schemas
  analytics schemas causal_lookup --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchemas,
}

func init() {
	rootCmd.AddCommand(schemasCmd)
}

func runSchemas(cmd *cobra.Command, args []string) error {
	schemas := schema.All()
	if len(args) == 1 {
		category, err := parseCategory(args[0])
		if err != nil {
			return err
		}
		schemas = []types.FileSchema{schema.MustGet(category)}
	}

	return emit(cmd.OutOrStdout(), schemas, func(w io.Writer) {
		for i, s := range schemas {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s (%s)\n", s.Category.Label(), s.Category)
			rule(w)
			t := newTable(w)
			fmt.Fprintln(t, "COLUMN\tTYPE\tDESCRIPTION")
			for _, c := range s.Columns {
				fmt.Fprintf(t, "%s\t%s\t%s\n", c.Name, c.Kind, c.Description)
			}
			t.Flush()
		}
	})
}

func parseCategory(s string) (types.FileCategory, error) {
	if !types.IsValidCategory(s) {
		names := make([]string, 0, len(types.FileCategories))
		for _, c := range types.FileCategories {
			names = append(names, string(c))
		}
		return "", fmt.Errorf("invalid file category: %s\nValid categories: %s", s, strings.Join(names, ", "))
	}
	return types.FileCategory(s), nil
}
