package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
	"github.com/kosarica/analytics-service/internal/validation"
)

// ValidateResponse is the outcome of validating one uploaded file
type ValidateResponse struct {
	Category  types.FileCategory     `json:"category"`
	File      string                 `json:"file"`
	Headers   []string               `json:"headers"`
	Rows      int                    `json:"rows"`
	Truncated bool                   `json:"truncated,omitempty"`
	Result    types.ValidationResult `json:"result"`
}

// ValidateFile parses and validates one file without uploading it
// @Summary Validate a data file
// @Description Parses a CSV or XLSX file and checks it against the schema of its category. The category is detected from the header row when omitted.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Data file"
// @Param category formData string false "File category" Enums(transaction, product_lookup, causal_lookup)
// @Success 200 {object} ValidateResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 422 {object} map[string]string "File could not be parsed"
// @Router /api/files/validate [post]
func (h *Handlers) ValidateFile(c *gin.Context) {
	h.limitBody(c)

	file, err := readFormFile(c, "file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if file.Name == "" {
		errorJSON(c, http.StatusBadRequest, "file is required")
		return
	}

	parsed, err := parsers.Parse(file.Name, file.Content, h.cfg.Parse)
	if err != nil {
		var perr *parsers.ParseError
		if errors.As(err, &perr) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": perr.Error(), "reason": perr.Reason})
			return
		}
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	category := types.FileCategory(c.PostForm("category"))
	if category == "" {
		var ok bool
		if category, ok = schema.Classify(parsed.Headers); !ok {
			errorJSON(c, http.StatusUnprocessableEntity, "Could not determine the file category from its columns")
			return
		}
	}

	result, err := validation.ValidateFile(category, parsed)
	if errors.Is(err, validation.ErrSchemaNotFound) {
		errorJSON(c, http.StatusBadRequest, "Unknown file category")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, ValidateResponse{
		Category:  category,
		File:      file.Name,
		Headers:   parsed.Headers,
		Rows:      len(parsed.Rows),
		Truncated: parsed.Truncated,
		Result:    result,
	})
}
