package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/kosarica/analytics-service/internal/types"
)

// uploadSegments maps a file category to its upload endpoint
var uploadSegments = map[types.FileCategory]string{
	types.CategoryTransaction:   "transactions",
	types.CategoryProductLookup: "productlookups",
	types.CategoryCausalLookup:  "causallookups",
}

// CreateDataset creates the dataset master record
func (c *Client) CreateDataset(ctx context.Context, req CreateDatasetRequest) (types.Dataset, error) {
	body, err := jsonBody(req)
	if err != nil {
		return types.Dataset{}, err
	}
	var resp datasetPayload
	err = c.do(ctx, call{
		op:          "create_dataset",
		method:      http.MethodPost,
		segments:    []string{"datasets"},
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return types.Dataset{}, err
	}
	if resp.DatasetID == "" {
		return types.Dataset{}, fmt.Errorf("create_dataset: backend returned no dataset_id")
	}

	d := resp.toDataset()
	if d.Name == "" {
		d.Name = req.Name
	}
	if d.Description == nil {
		d.Description = req.Description
	}
	return d, nil
}

// UploadFile uploads one dataset file as multipart form data
func (c *Client) UploadFile(ctx context.Context, datasetID string, category types.FileCategory, filename string, content []byte) (UploadResult, error) {
	segment, ok := uploadSegments[category]
	if !ok {
		return UploadResult{}, fmt.Errorf("upload: unknown file category %q", category)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	var resp UploadResult
	err = c.do(ctx, call{
		op:          "upload_" + string(category),
		method:      http.MethodPost,
		segments:    []string{"datasets", datasetID, segment},
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &resp)
	return resp, err
}

// ListDatasets lists the current user's datasets
func (c *Client) ListDatasets(ctx context.Context) ([]types.Dataset, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	var resp []datasetPayload
	err = c.do(ctx, call{
		op:       "list_datasets",
		method:   http.MethodGet,
		segments: []string{"users", s.UserID, "datasets"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]types.Dataset, len(resp))
	for i, p := range resp {
		out[i] = p.toDataset()
	}
	return out, nil
}
