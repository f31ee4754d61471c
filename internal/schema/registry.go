// Package schema holds the static column definitions the analytics backend
// requires for each uploaded file category.
package schema

import (
	"slices"
	"strings"

	"github.com/kosarica/analytics-service/internal/types"
)

var registry = map[types.FileCategory]types.FileSchema{
	types.CategoryTransaction: {
		Category: types.CategoryTransaction,
		Columns: []types.ColumnSpec{
			{Name: "upc", Kind: types.KindString, Description: "Standard 10 digit UPC"},
			{Name: "dollar_sales", Kind: types.KindNumber, Description: "Amount of dollars spent by the consumer", NonNegative: true},
			{Name: "units", Kind: types.KindNumber, Description: "Number of units purchased", NonNegative: true},
			{Name: "time_of_transaction_occurrence", Kind: types.KindNumber, Description: "Time of transaction in HHMM"},
			{Name: "geography", Kind: types.KindNumber, Description: "Geographic region code of the store"},
			{Name: "week", Kind: types.KindNumber, Description: "Week of the transaction, starting at 1"},
			{Name: "household", Kind: types.KindString, Description: "Unique household identifier"},
			{Name: "store", Kind: types.KindString, Description: "Unique store identifier"},
			{Name: "basket", Kind: types.KindString, Description: "Unique basket identifier"},
			{Name: "day", Kind: types.KindNumber, Description: "Day of the transaction, starting at 1"},
			{Name: "coupon", Kind: types.KindNumber, Description: "1 if a coupon was used, otherwise 0"},
		},
	},
	types.CategoryProductLookup: {
		Category: types.CategoryProductLookup,
		Columns: []types.ColumnSpec{
			{Name: "upc", Kind: types.KindString, Description: "Standard 10 digit UPC"},
			{Name: "product_description", Kind: types.KindString, Description: "Product description"},
			{Name: "commodity", Kind: types.KindString, Description: "Product category"},
			{Name: "brand", Kind: types.KindString, Description: "Brand name"},
			{Name: "product_size", Kind: types.KindString, Description: "Package size and unit"},
		},
	},
	types.CategoryCausalLookup: {
		Category: types.CategoryCausalLookup,
		Columns: []types.ColumnSpec{
			{Name: "upc", Kind: types.KindString, Description: "Standard 10 digit UPC"},
			{Name: "store", Kind: types.KindString, Description: "Unique store identifier"},
			{Name: "week", Kind: types.KindNumber, Description: "Week of the promotion, starting at 1"},
			{Name: "feature_desc", Kind: types.KindString, Description: "Placement of the product in the weekly mailer"},
			{Name: "display_desc", Kind: types.KindString, Description: "Temporary in-store display location"},
			{Name: "geography", Kind: types.KindNumber, Description: "Geographic region code of the store"},
		},
	},
}

// Get returns the schema for a file category. The returned value is a copy.
func Get(category types.FileCategory) (types.FileSchema, bool) {
	s, ok := registry[category]
	if !ok {
		return types.FileSchema{}, false
	}
	return clone(s), true
}

// MustGet returns the schema for a known category and panics otherwise
func MustGet(category types.FileCategory) types.FileSchema {
	s, ok := Get(category)
	if !ok {
		panic("schema: unknown file category " + string(category))
	}
	return s
}

// All returns every schema in ingestion order
func All() []types.FileSchema {
	out := make([]types.FileSchema, 0, len(types.FileCategories))
	for _, c := range types.FileCategories {
		out = append(out, MustGet(c))
	}
	return out
}

// Categories returns the known file categories in ingestion order
func Categories() []types.FileCategory {
	return slices.Clone(types.FileCategories)
}

// Classify returns the category whose required columns are all present in
// headers. Header matching ignores case and surrounding whitespace. When
// several schemas match, the one with the most required columns wins; a
// tie between equally specific schemas is reported as no match.
func Classify(headers []string) (types.FileCategory, bool) {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[NormalizeColumn(h)] = true
	}

	var (
		best     types.FileCategory
		bestSize int
		tie      bool
	)
	for _, c := range types.FileCategories {
		s := registry[c]
		matched := true
		for _, col := range s.Columns {
			if !present[col.Name] {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		switch {
		case len(s.Columns) > bestSize:
			best, bestSize, tie = c, len(s.Columns), false
		case len(s.Columns) == bestSize:
			tie = true
		}
	}
	if bestSize == 0 || tie {
		return "", false
	}
	return best, true
}

// NormalizeColumn folds a header for comparison with schema column names
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func clone(s types.FileSchema) types.FileSchema {
	s.Columns = slices.Clone(s.Columns)
	return s
}
