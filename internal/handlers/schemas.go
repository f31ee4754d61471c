package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/analytics-service/internal/schema"
	"github.com/kosarica/analytics-service/internal/types"
)

// ListSchemas returns every registered file schema
// @Summary List file schemas
// @Tags schemas
// @Produce json
// @Success 200 {array} types.FileSchema
// @Router /api/schemas [get]
func (h *Handlers) ListSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, schema.All())
}

// GetSchema returns the schema of one file category
// @Summary Get file schema
// @Tags schemas
// @Produce json
// @Param category path string true "File category" Enums(transaction, product_lookup, causal_lookup)
// @Success 200 {object} types.FileSchema
// @Failure 404 {object} map[string]string "Unknown category"
// @Router /api/schemas/{category} [get]
func (h *Handlers) GetSchema(c *gin.Context) {
	s, ok := schema.Get(types.FileCategory(c.Param("category")))
	if !ok {
		errorJSON(c, http.StatusNotFound, "Unknown file category")
		return
	}
	c.JSON(http.StatusOK, s)
}
