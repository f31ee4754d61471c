package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/types"
)

func TestGet(t *testing.T) {
	for _, c := range types.FileCategories {
		t.Run(string(c), func(t *testing.T) {
			s, ok := Get(c)
			require.True(t, ok)
			assert.Equal(t, c, s.Category)
			assert.NotEmpty(t, s.Columns)
			assert.Equal(t, "upc", s.Columns[0].Name)
		})
	}

	_, ok := Get(types.FileCategory("store_lookup"))
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := MustGet(types.CategoryTransaction)
	s.Columns[0].Name = "mutated"

	again := MustGet(types.CategoryTransaction)
	assert.Equal(t, "upc", again.Columns[0].Name)
}

func TestTransactionSchemaColumns(t *testing.T) {
	s := MustGet(types.CategoryTransaction)
	assert.Contains(t, s.ColumnNames(), "units")
	assert.Contains(t, s.ColumnNames(), "dollar_sales")

	for _, c := range s.Columns {
		if c.Name == "units" {
			assert.Equal(t, types.KindNumber, c.Kind)
			assert.True(t, c.NonNegative)
		}
	}
}

func TestMustGetPanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { MustGet("unknown") })
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected types.FileCategory
		ok       bool
	}{
		{
			name:     "product lookup with extra column",
			headers:  []string{"UPC", "product_description", "commodity", "brand", "product_size", "notes"},
			expected: types.CategoryProductLookup,
			ok:       true,
		},
		{
			name: "transaction",
			headers: []string{"upc", "dollar_sales", "units", "time_of_transaction_occurrence",
				"geography", "week", "household", "store", "basket", "day", "coupon"},
			expected: types.CategoryTransaction,
			ok:       true,
		},
		{
			name:     "causal",
			headers:  []string{" upc ", "store", "week", "feature_desc", "display_desc", "geography"},
			expected: types.CategoryCausalLookup,
			ok:       true,
		},
		{
			name:    "unknown",
			headers: []string{"upc", "units"},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.headers)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAllOrder(t *testing.T) {
	all := All()
	require.Len(t, all, 3)
	assert.Equal(t, types.CategoryTransaction, all[0].Category)
	assert.Equal(t, types.CategoryProductLookup, all[1].Category)
	assert.Equal(t, types.CategoryCausalLookup, all[2].Category)
}
