package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/auth"
	apphttp "github.com/kosarica/analytics-service/internal/http"
	"github.com/kosarica/analytics-service/internal/http/ratelimit"
	"github.com/kosarica/analytics-service/internal/types"
)

var testSession = auth.Static{AccessToken: "tok-123", UserID: "42"}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient := apphttp.NewClient(ratelimit.Config{MaxRetries: 1, InitialBackoffMs: 1, MaxBackoffMs: 2}, 5*time.Second)
	c, err := NewClient(srv.URL+"/api/", httpClient, testSession)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil, nil)
	assert.Error(t, err)
	_, err = NewClient("://bad", nil, nil)
	assert.Error(t, err)
}

func TestCreateDataset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/datasets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token tok-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateDatasetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Carbo", req.Name)

		writeJSON(w, http.StatusCreated, map[string]any{"dataset_id": 17, "name": "Carbo", "created_at": 1700000000})
	})
	c := newTestClient(t, mux)

	d, err := c.CreateDataset(context.Background(), CreateDatasetRequest{Name: "Carbo", Description: types.StringPtr("pasta")})
	require.NoError(t, err)

	assert.Equal(t, "17", d.ID)
	assert.Equal(t, "Carbo", d.Name)
	require.NotNil(t, d.Description)
	assert.Equal(t, "pasta", *d.Description)
	assert.Equal(t, types.ImportingTransaction, d.ImportStatus)
	assert.Equal(t, types.AnalysisNotStarted, d.AnalysisStatus)
	assert.Equal(t, int64(1700000000), d.CreatedAt.Unix())
}

func TestUploadFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/datasets/17/productlookups", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "product_lookup.csv", hdr.Filename)
		assert.Equal(t, "upc,brand\n1,Acme\n", string(data))
		writeJSON(w, http.StatusOK, map[string]any{"file_upload_id": "fu-1", "task_id": 99})
	})
	c := newTestClient(t, mux)

	res, err := c.UploadFile(context.Background(), "17", types.CategoryProductLookup, "product_lookup.csv", []byte("upc,brand\n1,Acme\n"))
	require.NoError(t, err)
	assert.Equal(t, ID("fu-1"), res.FileUploadID)
	assert.Equal(t, ID("99"), res.TaskID)

	_, err = c.UploadFile(context.Background(), "17", "store_lookup", "x.csv", []byte("x"))
	assert.Error(t, err)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"detail":"Invalid token."}`,
			message: MsgNotAuthenticated,
			check: func(t *testing.T, err error) {
				var authErr *auth.AuthError
				require.ErrorAs(t, err, &authErr)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Invalid token.", apiErr.Message)
			},
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			message: MsgNotAuthenticated,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":"database unavailable"}`,
			message: MsgUnexpected,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
				assert.Equal(t, "database unavailable", apiErr.Message)
			},
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    "no such dataset",
			message: MsgUnexpected,
			check: func(t *testing.T, err error) {
				assert.True(t, IsNotFound(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.CreateDataset(context.Background(), CreateDatasetRequest{Name: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.message, UserMessage(err))
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, apphttp.NewClient(ratelimit.Config{}, time.Second), testSession)
	require.NoError(t, err)

	_, err = c.ListDatasets(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, MsgNetwork, UserMessage(err))
}

func TestMissingSession(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	c = c.WithSessions(nil)

	_, err := c.CreateDataset(context.Background(), CreateDatasetRequest{Name: "x"})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Equal(t, MsgNotAuthenticated, UserMessage(err))
	assert.False(t, called)
}

func TestContextSessionWins(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/7/datasets", r.URL.Path)
		assert.Equal(t, "Token ctx-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []any{})
	}))

	ctx := auth.WithSession(context.Background(), auth.Session{AccessToken: "ctx-token", UserID: "7"})
	got, err := c.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListDatasets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/42/datasets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"dataset_id": 1, "name": "a", "created_at": 1700000000, "status": "import_completed"},
			{"dataset_id": "2", "name": "b", "description": "second", "status": "bogus"},
		})
	})
	c := newTestClient(t, mux)

	got, err := c.ListDatasets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, types.ImportCompleted, got[0].ImportStatus)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, types.ImportingTransaction, got[1].ImportStatus)
	assert.Equal(t, "second", *got[1].Description)
}

func TestAnalysisEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/datasets/1/transactions/dollar_sales", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"kind": "numerical", "count": 10, "unique": 7, "min": 0.1, "median": 1.5, "max": 9,
			"bins": []map[string]any{{"label": "0-1", "count": 4}},
		})
	})
	mux.HandleFunc("GET /api/datasets/1/visualizations/bivariate", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "transactions", q.Get("table1"))
		assert.Equal(t, "units", q.Get("variable1"))
		assert.Equal(t, "causal_lookup", q.Get("table2"))
		assert.Equal(t, "feature_desc", q.Get("variable2"))
		writeJSON(w, http.StatusOK, map[string]any{"correlation": 0.42, "chart": map[string]any{"type": "scatter"}})
	})
	c := newTestClient(t, mux)

	stats, err := c.VariableStats(context.Background(), "1", "transactions", "dollar_sales")
	require.NoError(t, err)
	assert.True(t, stats.IsNumerical())
	assert.Equal(t, "dollar_sales", stats.Variable)
	assert.Equal(t, 1.5, *stats.Median)
	require.Len(t, stats.Bins, 1)

	biv, err := c.Bivariate(context.Background(), "1", BivariateRequest{
		Table1: "transactions", Variable1: "units", Table2: "causal_lookup", Variable2: "feature_desc",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.42, *biv.Correlation, 1e-9)
	assert.JSONEq(t, `{"type":"scatter"}`, string(biv.Chart))
}

func TestCampaignEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/datasets/1/campaigns", func(w http.ResponseWriter, r *http.Request) {
		var req CreateCampaignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, map[string]any{"campaign_id": 5, "name": req.Name, "is_active": req.IsActive})
	})
	mux.HandleFunc("GET /api/users/42/campaigns", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"campaign_id": 5, "dataset_id": 1, "name": "Spring"}})
	})
	mux.HandleFunc("POST /api/campaigns/5/promotionrules", func(w http.ResponseWriter, r *http.Request) {
		var rule types.PromotionRule
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rule))
		body := map[string]any{
			"promotion_rule_id": 8,
			"rule_type":         rule.RuleType,
			"target_type":       rule.TargetType,
			"target_selectors":  rule.TargetSelectors,
			"feature":           true,
			"start_date":        rule.StartDate,
			"end_date":          rule.EndDate,
		}
		writeJSON(w, http.StatusCreated, body)
	})
	mux.HandleFunc("POST /api/campaigns/5/promotionrules/validate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"is_valid": false, "errors": []string{"unknown brand: Acme"}})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	campaign, err := c.CreateCampaign(ctx, "1", CreateCampaignRequest{Name: "Spring", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "5", campaign.ID)
	assert.Equal(t, "1", campaign.DatasetID)
	assert.True(t, campaign.IsActive)

	campaigns, err := c.ListUserCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "1", campaigns[0].DatasetID)

	rule := types.PromotionRule{
		RuleType:        types.RuleFeature,
		TargetType:      types.TargetBrand,
		TargetSelectors: types.TargetSelectors{Brands: []string{"Acme"}},
		Feature:         types.BoolPtr(true),
		StartDate:       1700000000,
		EndDate:         1700600000,
	}
	created, err := c.CreatePromotionRule(ctx, "5", rule)
	require.NoError(t, err)
	assert.Equal(t, "8", created.ID)
	assert.Equal(t, []string{"Acme"}, created.TargetSelectors.Brands)

	check, err := c.ValidatePromotionRules(ctx, "5", []types.PromotionRule{rule})
	require.NoError(t, err)
	assert.False(t, check.IsValid)
	assert.Equal(t, []string{"unknown brand: Acme"}, check.Errors)
}

func TestExchangeTokenIsAnonymous(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "id-token", req.IDToken)
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok", "user_id": 42})
	})
	c := newTestClient(t, mux).WithSessions(nil)

	grant, err := c.ExchangeToken(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, auth.Grant{AccessToken: "tok", UserID: "42"}, grant)
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/datasets/a%2Fb/campaigns", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, []any{})
	}))

	_, err := c.ListDatasetCampaigns(context.Background(), "a/b")
	require.NoError(t, err)
}
