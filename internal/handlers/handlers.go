// Package handlers implements the HTTP API used by the web front end to
// validate files and create datasets on the analytics backend.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/ingestion/bundle"
	"github.com/kosarica/analytics-service/internal/parsers"
	"github.com/kosarica/analytics-service/internal/store"
)

// Backend is the backend client surface the handlers need
type Backend interface {
	ingestion.Backend
	store.DatasetAPI
}

// Config holds handler limits and parser settings
type Config struct {
	Parse          parsers.Options
	Bundle         bundle.ExpandOptions
	MaxUploadBytes int64
}

// DefaultConfig returns the default handler configuration
func DefaultConfig() Config {
	return Config{
		Parse:          parsers.DefaultOptions(),
		Bundle:         bundle.DefaultExpandOptions(),
		MaxUploadBytes: 1 << 30,
	}
}

// Handlers serves the API
type Handlers struct {
	api         Backend
	checkpoints ingestion.CheckpointStore
	cfg         Config
	ping        func(context.Context) error
	logger      zerolog.Logger
}

// New creates the handlers. Checkpoints are shared by every request so a
// failed import can be resumed from another request.
func New(api Backend, checkpoints ingestion.CheckpointStore, cfg Config) *Handlers {
	if checkpoints == nil {
		checkpoints = ingestion.NewMemoryCheckpointStore()
	}
	return &Handlers{
		api:         api,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      log.With().Str("component", "handlers").Logger(),
	}
}

// WithPing sets the dependency check run by the health endpoint
func (h *Handlers) WithPing(ping func(context.Context) error) *Handlers {
	h.ping = ping
	return h
}

// Register mounts every route on r. session guards the routes that call
// the backend on the user's behalf.
func (h *Handlers) Register(r gin.IRouter, session gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/schemas", h.ListSchemas)
	api.GET("/schemas/:category", h.GetSchema)
	api.POST("/files/validate", h.ValidateFile)

	datasets := api.Group("/datasets")
	datasets.Use(session)
	datasets.POST("", h.CreateDataset)
	datasets.POST("/:id/resume", h.ResumeDataset)
}

// orchestrator builds a per-request orchestrator so cached datasets never
// cross user sessions
func (h *Handlers) orchestrator() *ingestion.Orchestrator {
	return ingestion.NewOrchestrator(h.api, store.NewDatasetStore(h.api), h.checkpoints)
}

func (h *Handlers) limitBody(c *gin.Context) {
	if h.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	}
}

// readFormFile reads an optional multipart file field
func readFormFile(c *gin.Context, field string) (ingestion.File, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return ingestion.File{}, nil
	}
	if err != nil {
		return ingestion.File{}, fmt.Errorf("read %s: %w", field, err)
	}
	content, err := readMultipart(fh)
	if err != nil {
		return ingestion.File{}, fmt.Errorf("read %s: %w", field, err)
	}
	return ingestion.File{Name: fh.Filename, Content: content}, nil
}

func readMultipart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
