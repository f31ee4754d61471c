package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/types"
)

func TestPrecheck(t *testing.T) {
	files := Files{
		Transaction: File{Name: "transactions.csv", Content: []byte(
			"upc,dollar_sales,units,time_of_transaction_occurrence,geography,week,household,store,basket,day,coupon\n" +
				"7680850106,0.80,1,1100,2,1,125434,244,1,1,0\n" +
				"7680850106,0.80,abc,1100,2,1,125434,244,1,1,0\n")},
		ProductLookup: File{Name: "products.csv", Content: []byte(
			"upc,product_description,commodity,brand,product_size\n7680850106,PASTA,pasta,Private Label,16 OZ\n")},
		CausalLookup: File{Name: "causal.pdf", Content: []byte("%PDF")},
	}

	reports, err := Precheck(context.Background(), files, parsers.DefaultOptions())

	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.False(t, AllOK(reports))

	assert.Equal(t, types.CategoryTransaction, reports[0].Category)
	assert.Equal(t, 2, reports[0].Rows)
	assert.False(t, reports[0].OK())
	assert.Equal(t, 1, reports[0].Result.CountByType(types.IssueInvalidDataType))

	assert.True(t, reports[1].OK())

	assert.Equal(t, types.CategoryCausalLookup, reports[2].Category)
	assert.Contains(t, reports[2].ParseErr, "unsupported format")
}

func TestPrecheckSkipsMissingFiles(t *testing.T) {
	reports, err := Precheck(context.Background(), Files{
		ProductLookup: File{Name: "products.csv", Content: []byte("upc,product_description,commodity,brand,product_size\n1,a,b,c,d\n")},
	}, parsers.DefaultOptions())

	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, AllOK(reports))
}

func TestPrecheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Precheck(ctx, testFiles(), parsers.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
