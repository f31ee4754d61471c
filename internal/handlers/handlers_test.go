package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/auth"
	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/middleware"
	"github.com/kosarica/analytics-service/internal/types"
)

const (
	transactionCSV = "upc,dollar_sales,units,time_of_transaction_occurrence,geography,week,household,store,basket,day,coupon\n" +
		"7680850106,0.80,1,1100,2,1,125434,244,1,1,0\n"
	productCSV = "upc,product_description,commodity,brand,product_size\n7680850106,PASTA,pasta,Private Label,16 OZ\n"
	causalCSV  = "upc,store,week,feature_desc,display_desc,geography\n7680850106,244,1,Wrap Interior Feature,Not on Display,2\n"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	tokens   []string
	fail     map[string]error
	datasets []types.Dataset
}

func (f *fakeBackend) record(ctx context.Context, call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if s, ok := authSession(ctx); ok {
		f.tokens = append(f.tokens, s)
	}
	return f.fail[call]
}

func (f *fakeBackend) CreateDataset(ctx context.Context, req backend.CreateDatasetRequest) (types.Dataset, error) {
	if err := f.record(ctx, "create"); err != nil {
		return types.Dataset{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d := types.Dataset{ID: fmt.Sprint(len(f.datasets) + 1), Name: req.Name}
	f.datasets = append(f.datasets, d)
	return d, nil
}

func (f *fakeBackend) UploadFile(ctx context.Context, datasetID string, category types.FileCategory, _ string, _ []byte) (backend.UploadResult, error) {
	if err := f.record(ctx, string(category)); err != nil {
		return backend.UploadResult{}, err
	}
	return backend.UploadResult{FileUploadID: backend.ID(datasetID)}, nil
}

func (f *fakeBackend) ListDatasets(ctx context.Context) ([]types.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Dataset, len(f.datasets))
	for i, d := range f.datasets {
		d.ImportStatus = types.ImportingTransaction
		out[i] = d
	}
	return out, nil
}

func authSession(ctx context.Context) (string, bool) {
	s, ok := auth.FromContext(ctx)
	return s.AccessToken, ok
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func setupRouter(api *fakeBackend, checkpoints ingestion.CheckpointStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(api, checkpoints, DefaultConfig()).Register(router, middleware.SessionMiddleware())
	return router
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, f := range files {
		part, err := w.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func allFiles() map[string][2]string {
	return map[string][2]string{
		"transaction":    {"transactions.csv", transactionCSV},
		"product_lookup": {"products.csv", productCSV},
		"causal_lookup":  {"causal.csv", causalCSV},
	}
}

func post(router http.Handler, path string, body *bytes.Buffer, contentType string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	if authed {
		req.Header.Set("Authorization", "Token secret")
		req.Header.Set(middleware.HeaderUserID, "42")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var e sseEvent
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event:"); ok {
				e.Name = strings.TrimSpace(v)
			}
			if v, ok := strings.CutPrefix(line, "data:"); ok {
				e.Data = strings.TrimSpace(v)
			}
		}
		if e.Name != "" {
			events = append(events, e)
		}
	}
	return events
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		ping func(context.Context) error
		code int
		want string
	}{
		{name: "no store", code: http.StatusOK, want: "not configured"},
		{name: "connected", ping: func(context.Context) error { return nil }, code: http.StatusOK, want: "connected"},
		{name: "down", ping: func(context.Context) error { return errors.New("dial tcp") }, code: http.StatusServiceUnavailable, want: "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			New(&fakeBackend{}, nil, DefaultConfig()).WithPing(tt.ping).Register(router, middleware.SessionMiddleware())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Checkpoints)
		})
	}
}

func TestSchemas(t *testing.T) {
	router := setupRouter(&fakeBackend{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var all []types.FileSchema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/causal_lookup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "feature_desc")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/schemas/store", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateFile(t *testing.T) {
	router := setupRouter(&fakeBackend{}, nil)

	t.Run("detects category", func(t *testing.T) {
		body, ct := multipartBody(t, nil, map[string][2]string{"file": {"p.csv", productCSV}})
		w := post(router, "/api/files/validate", body, ct, false)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, types.CategoryProductLookup, resp.Category)
		assert.True(t, resp.Result.IsValid)
		assert.Equal(t, 1, resp.Rows)
	})

	t.Run("reports issues", func(t *testing.T) {
		body, ct := multipartBody(t,
			map[string]string{"category": "transaction"},
			map[string][2]string{"file": {"t.csv", "upc,units\n1,abc\n"}})
		w := post(router, "/api/files/validate", body, ct, false)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ValidateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Result.IsValid)
		assert.Equal(t, 9, resp.Result.CountByType(types.IssueMissingColumn))
		assert.Equal(t, 1, resp.Result.CountByType(types.IssueInvalidDataType))
	})

	t.Run("parse error", func(t *testing.T) {
		body, ct := multipartBody(t, nil, map[string][2]string{"file": {"t.xls", "legacy"}})
		w := post(router, "/api/files/validate", body, ct, false)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported format")
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"category": "transaction"}, nil)
		w := post(router, "/api/files/validate", body, ct, false)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateDatasetStreamsProgress(t *testing.T) {
	api := &fakeBackend{}
	router := setupRouter(api, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Spring"}, allFiles())
	w := post(router, "/api/datasets", body, ct, true)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events := parseSSE(w.Body.String())
	require.Len(t, events, 6)
	for _, e := range events[:5] {
		assert.Equal(t, "progress", e.Name)
	}
	var last ingestion.Progress
	require.NoError(t, json.Unmarshal([]byte(events[4].Data), &last))
	assert.Equal(t, ingestion.StepCompleted, last.Step)
	assert.Equal(t, 100, last.Progress)

	assert.Equal(t, "result", events[5].Name)
	var result ingestion.Result
	require.NoError(t, json.Unmarshal([]byte(events[5].Data), &result))
	assert.True(t, result.Success)
	assert.Equal(t, types.ImportCompleted, result.Dataset.ImportStatus)

	assert.Equal(t, []string{"create", "transaction", "product_lookup", "causal_lookup"}, api.calls)
	assert.Equal(t, []string{"secret", "secret", "secret", "secret"}, api.tokens)
}

func TestCreateDatasetFromBundle(t *testing.T) {
	api := &fakeBackend{}
	router := setupRouter(api, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Spring"},
		map[string][2]string{"bundle": {"data.zip", string(zipOf(t, map[string]string{
			"a.csv": transactionCSV, "b.csv": productCSV, "c.csv": causalCSV,
		}))}})
	w := post(router, "/api/datasets", body, ct, true)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, api.calls, 4)
}

func TestCreateDatasetRejections(t *testing.T) {
	t.Run("not authenticated", func(t *testing.T) {
		api := &fakeBackend{}
		body, ct := multipartBody(t, map[string]string{"name": "Spring"}, allFiles())
		w := post(setupRouter(api, nil), "/api/datasets", body, ct, false)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, api.calls)
	})

	t.Run("invalid file", func(t *testing.T) {
		api := &fakeBackend{}
		files := allFiles()
		files["transaction"] = [2]string{"t.csv", "upc,units\n1,2\n"}
		body, ct := multipartBody(t, map[string]string{"name": "Spring"}, files)
		w := post(setupRouter(api, nil), "/api/datasets", body, ct, true)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp PrecheckFailedResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Reports, 3)
		assert.Empty(t, api.calls)
	})

	t.Run("missing name", func(t *testing.T) {
		body, ct := multipartBody(t, nil, allFiles())
		w := post(setupRouter(&fakeBackend{}, nil), "/api/datasets", body, ct, true)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateDatasetFailureEvent(t *testing.T) {
	api := &fakeBackend{fail: map[string]error{
		"causal_lookup": &backend.APIError{Op: "upload", Status: 500, Message: "boom"},
	}}
	router := setupRouter(api, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Spring"}, allFiles())
	w := post(router, "/api/datasets", body, ct, true)

	events := parseSSE(w.Body.String())
	require.NotEmpty(t, events)
	var result ingestion.Result
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-1].Data), &result))
	assert.False(t, result.Success)
	assert.Equal(t, ingestion.StepUploadingCausalLookup, result.FailedStep)
	assert.Equal(t, "Failed to upload causal lookup file", result.Error)
	assert.Equal(t, types.ImportingCausalLookup, result.Dataset.ImportStatus)
}

func TestResumeDataset(t *testing.T) {
	api := &fakeBackend{fail: map[string]error{"causal_lookup": errors.New("timeout")}}
	checkpoints := ingestion.NewMemoryCheckpointStore()
	router := setupRouter(api, checkpoints)

	body, ct := multipartBody(t, map[string]string{"name": "Spring"}, allFiles())
	post(router, "/api/datasets", body, ct, true)
	delete(api.fail, "causal_lookup")

	body, ct = multipartBody(t, nil, map[string][2]string{"causal_lookup": {"causal.csv", causalCSV}})
	w := post(router, "/api/datasets/1/resume", body, ct, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "causal_lookup", api.calls[len(api.calls)-1])

	body, ct = multipartBody(t, nil, nil)
	w = post(router, "/api/datasets/1/resume", body, ct, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	body, ct = multipartBody(t, nil, nil)
	w = post(router, "/api/datasets/99/resume", body, ct, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
