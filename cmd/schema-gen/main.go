// Schema Generator
//
// Generates JSON Schema files for the wire types shared with the web front
// end. Go is the source of truth for these types.
//
// Usage:
//
//	go run ./cmd/schema-gen [output-dir]
//
// Output (default ./schemas):
//
//	files.json
//	datasets.json
//	campaigns.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/handlers"
	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/types"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

var groups = []SchemaGroup{
	{
		Name: "files",
		Types: []any{
			types.FileSchema{},
			types.ValidationResult{},
			handlers.ValidateResponse{},
			ingestion.FileReport{},
		},
		Output: "files.json",
	},
	{
		Name: "datasets",
		Types: []any{
			types.Dataset{},
			ingestion.Progress{},
			ingestion.Result{},
			handlers.PrecheckFailedResponse{},
			handlers.HealthResponse{},
		},
		Output: "datasets.json",
	},
	{
		Name: "campaigns",
		Types: []any{
			types.Campaign{},
			types.PromotionRule{},
			backend.CreateCampaignRequest{},
			backend.RuleValidation{},
		},
		Output: "campaigns.json",
	},
}

func main() {
	outputDir := "./schemas"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, group := range groups {
		schema := generateGroupSchema(group)
		outputPath := filepath.Join(outputDir, group.Output)

		if err := writeSchema(schema, outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outputPath)
	}

	fmt.Println("Schema generation complete!")
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{}

	definitions := make(map[string]any)
	for _, t := range group.Types {
		schema := reflector.Reflect(t)
		for name, def := range schema.Definitions {
			definitions[name] = def
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://kosarica.hr/schemas/analytics/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
