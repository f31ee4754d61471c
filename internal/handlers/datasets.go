package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/ingestion/bundle"
	"github.com/kosarica/analytics-service/internal/store"
	"github.com/kosarica/analytics-service/internal/types"
)

// PrecheckFailedResponse is returned when local validation rejects the files
type PrecheckFailedResponse struct {
	Error   string                 `json:"error"`
	Reports []ingestion.FileReport `json:"reports"`
}

// CreateDataset validates the uploaded files and creates the dataset,
// streaming progress as server-sent events
// @Summary Create a dataset
// @Description Validates the three files locally, then creates the dataset and uploads them in order. Progress is streamed as "progress" events followed by one "result" event.
// @Tags datasets
// @Accept multipart/form-data
// @Produce text/event-stream
// @Param name formData string true "Dataset name"
// @Param description formData string false "Dataset description"
// @Param transaction formData file false "Transaction file"
// @Param product_lookup formData file false "Product lookup file"
// @Param causal_lookup formData file false "Causal lookup file"
// @Param bundle formData file false "ZIP holding all three files"
// @Success 200 {object} ingestion.Progress
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 401 {object} map[string]string "Not authenticated"
// @Failure 422 {object} PrecheckFailedResponse
// @Router /api/datasets [post]
func (h *Handlers) CreateDataset(c *gin.Context) {
	h.limitBody(c)

	files, err := h.readFiles(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	req := ingestion.CreateRequest{Name: strings.TrimSpace(c.PostForm("name")), Files: files}
	if req.Name == "" {
		errorJSON(c, http.StatusBadRequest, "name is required")
		return
	}
	if desc, ok := c.GetPostForm("description"); ok && desc != "" {
		req.Description = &desc
	}

	if !h.precheck(c, files) {
		return
	}

	run, err := h.orchestrator().CreateDataset(c.Request.Context(), req)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	h.stream(c, run)
}

// ResumeDataset continues an interrupted import
// @Summary Resume a dataset import
// @Description Skips the steps already completed and uploads the remaining files. Only files for remaining steps are required.
// @Tags datasets
// @Accept multipart/form-data
// @Produce text/event-stream
// @Param id path string true "Dataset ID"
// @Param transaction formData file false "Transaction file"
// @Param product_lookup formData file false "Product lookup file"
// @Param causal_lookup formData file false "Causal lookup file"
// @Success 200 {object} ingestion.Progress
// @Failure 400 {object} map[string]string "Missing file"
// @Failure 404 {object} map[string]string "Dataset not found"
// @Failure 409 {object} map[string]string "Import already complete"
// @Router /api/datasets/{id}/resume [post]
func (h *Handlers) ResumeDataset(c *gin.Context) {
	h.limitBody(c)

	files, err := h.readFiles(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.precheck(c, files) {
		return
	}

	run, err := h.orchestrator().Resume(c.Request.Context(), c.Param("id"), files)
	switch {
	case errors.Is(err, ingestion.ErrNothingToResume):
		errorJSON(c, http.StatusConflict, "Dataset import is already complete")
		return
	case errors.Is(err, ingestion.ErrMissingFile):
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrDatasetNotFound):
		errorJSON(c, http.StatusNotFound, "Dataset not found")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("dataset_id", c.Param("id")).Msg("Failed to resume dataset")
		errorJSON(c, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}
	h.stream(c, run)
}

// readFiles reads the per-category file fields, or the bundle field when
// present
func (h *Handlers) readFiles(c *gin.Context) (ingestion.Files, error) {
	zipped, err := readFormFile(c, "bundle")
	if err != nil {
		return ingestion.Files{}, err
	}
	if zipped.Name != "" {
		assigned, err := bundle.Open(c.Request.Context(), zipped.Content, h.cfg.Bundle, h.cfg.Parse)
		if err != nil {
			return ingestion.Files{}, err
		}
		return assigned.Files(), nil
	}

	var files ingestion.Files
	for _, cat := range types.FileCategories {
		f, err := readFormFile(c, string(cat))
		if err != nil {
			return ingestion.Files{}, err
		}
		switch cat {
		case types.CategoryTransaction:
			files.Transaction = f
		case types.CategoryProductLookup:
			files.ProductLookup = f
		case types.CategoryCausalLookup:
			files.CausalLookup = f
		}
	}
	return files, nil
}

// precheck validates the files locally and writes a 422 when any fails
func (h *Handlers) precheck(c *gin.Context, files ingestion.Files) bool {
	reports, err := ingestion.Precheck(c.Request.Context(), files, h.cfg.Parse)
	if err != nil {
		errorJSON(c, http.StatusRequestTimeout, err.Error())
		return false
	}
	if !ingestion.AllOK(reports) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, PrecheckFailedResponse{
			Error:   "One or more files failed validation",
			Reports: reports,
		})
		return false
	}
	return true
}

// stream drives the run one event at a time. A disconnected client stops
// the iteration, which abandons the run.
func (h *Handlers) stream(c *gin.Context, run *ingestion.Run) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	for p := range run.Progress() {
		c.SSEvent("progress", p)
		c.Writer.Flush()
		if ctx.Err() != nil {
			break
		}
	}

	c.SSEvent("result", run.Result())
	c.Writer.Flush()
}
