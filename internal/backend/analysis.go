package backend

import (
	"context"
	"net/http"
	"net/url"
)

// VariableStats fetches statistics for one column of a dataset table
func (c *Client) VariableStats(ctx context.Context, datasetID, table, variable string) (VariableStats, error) {
	var resp VariableStats
	err := c.do(ctx, call{
		op:       "variable_stats",
		method:   http.MethodGet,
		segments: []string{"datasets", datasetID, table, variable},
	}, &resp)
	if resp.Table == "" {
		resp.Table = table
	}
	if resp.Variable == "" {
		resp.Variable = variable
	}
	return resp, err
}

// Bivariate fetches the correlation between two variables
func (c *Client) Bivariate(ctx context.Context, datasetID string, req BivariateRequest) (Bivariate, error) {
	q := url.Values{}
	q.Set("table1", req.Table1)
	q.Set("variable1", req.Variable1)
	q.Set("table2", req.Table2)
	q.Set("variable2", req.Variable2)

	var resp Bivariate
	err := c.do(ctx, call{
		op:       "bivariate",
		method:   http.MethodGet,
		segments: []string{"datasets", datasetID, "visualizations", "bivariate"},
		query:    q,
	}, &resp)
	return resp, err
}
