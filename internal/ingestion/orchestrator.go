// Package ingestion drives the dataset creation sequence: create the dataset
// record, then upload the transaction, product lookup and causal lookup
// files one after another.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/cache"
	"github.com/kosarica/analytics-service/internal/store"
	"github.com/kosarica/analytics-service/internal/types"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_ingestion_steps_total",
		Help: "Ingestion steps by step and outcome",
	}, []string{"step", "outcome"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_ingestion_step_duration_seconds",
		Help:    "Time taken by each ingestion step",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"step"})
)

// Backend is the part of the backend client the orchestrator calls
type Backend interface {
	CreateDataset(ctx context.Context, req backend.CreateDatasetRequest) (types.Dataset, error)
	UploadFile(ctx context.Context, datasetID string, category types.FileCategory, filename string, content []byte) (backend.UploadResult, error)
}

// DatasetCache is where created datasets and their import status are kept
type DatasetCache interface {
	Insert(d types.Dataset)
	AdvanceImportStatus(id string, status types.ImportStatus) (types.Dataset, bool)
	Get(ctx context.Context, id string) (cache.Entry[types.Dataset], error)
}

// File is one file to upload
type File struct {
	Name    string
	Content []byte
}

// Checksum returns the hex SHA-256 of the content
func (f File) Checksum() string {
	sum := sha256.Sum256(f.Content)
	return hex.EncodeToString(sum[:])
}

func (f File) empty() bool {
	return len(f.Content) == 0
}

// Files holds one file per category
type Files struct {
	Transaction   File
	ProductLookup File
	CausalLookup  File
}

// For returns the file of a category
func (f Files) For(c types.FileCategory) File {
	switch c {
	case types.CategoryTransaction:
		return f.Transaction
	case types.CategoryProductLookup:
		return f.ProductLookup
	case types.CategoryCausalLookup:
		return f.CausalLookup
	default:
		return File{}
	}
}

// CreateRequest describes a new dataset
type CreateRequest struct {
	Name        string
	Description *string
	Files       Files
}

// Result is the outcome of a run. Failures are reported here, never panicked.
type Result struct {
	Success    bool           `json:"success"`
	Dataset    *types.Dataset `json:"dataset,omitempty"`
	FailedStep Step           `json:"failedStep,omitempty"`
	// Error is the message to show the user
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Orchestrator creates datasets and resumes interrupted imports
type Orchestrator struct {
	api         Backend
	datasets    DatasetCache
	checkpoints CheckpointStore
	logger      zerolog.Logger
}

// NewOrchestrator creates an orchestrator. A nil checkpoint store keeps
// checkpoints in memory.
func NewOrchestrator(api Backend, datasets DatasetCache, checkpoints CheckpointStore) *Orchestrator {
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpointStore()
	}
	return &Orchestrator{
		api:         api,
		datasets:    datasets,
		checkpoints: checkpoints,
		logger:      log.With().Str("component", "ingestion").Logger(),
	}
}

// CreateDataset prepares a run that creates a dataset and uploads its three
// files. Nothing is sent until the run's progress is consumed.
func (o *Orchestrator) CreateDataset(ctx context.Context, req CreateRequest) (*Run, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("dataset name is required")
	}
	for _, c := range types.FileCategories {
		if req.Files.For(c).empty() {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, c.Label())
		}
	}
	return o.newRun(ctx, req, Steps, Checkpoint{FileChecksums: map[types.FileCategory]string{}}, nil), nil
}

// Resume prepares a run that continues an interrupted import. Steps already
// recorded as complete, in the checkpoint or in the cached import status,
// are skipped. Only files for the remaining steps are required.
func (o *Orchestrator) Resume(ctx context.Context, datasetID string, files Files) (*Run, error) {
	cp, err := o.checkpoints.Load(ctx, datasetID)
	switch {
	case errors.Is(err, ErrNoCheckpoint):
		cp = Checkpoint{DatasetID: datasetID}
	case err != nil:
		return nil, err
	}
	if cp.FileChecksums == nil {
		cp.FileChecksums = map[types.FileCategory]string{}
	}

	next := cp.NextStep()

	var dataset *types.Dataset
	entry, err := o.datasets.Get(ctx, datasetID)
	switch {
	case err == nil && entry.HasValue:
		d := entry.Value
		dataset = &d
		if fromStatus := stepForStatus(d.ImportStatus); fromStatus.index() > next.index() {
			next = fromStatus
		}
		if d.ImportStatus == types.ImportCompleted {
			o.dropCheckpoint(ctx, datasetID)
		}
	case errors.Is(err, store.ErrDatasetNotFound):
		o.dropCheckpoint(ctx, datasetID)
		return nil, fmt.Errorf("cannot resume dataset %s: %w", datasetID, err)
	case cp.LastCompletedStep == "":
		if err == nil {
			err = errors.New("dataset not found")
		}
		return nil, fmt.Errorf("cannot resume dataset %s: %w", datasetID, err)
	}

	if next == StepCompleted {
		return nil, ErrNothingToResume
	}
	// the dataset record exists, so creation is never repeated
	if next == StepCreatingMaster {
		next = StepUploadingTransaction
	}

	remaining := Steps[next.index():]
	var warnings []string
	for _, s := range Steps[1:next.index()] {
		c, _ := s.Category()
		f := files.For(c)
		if sum, ok := cp.FileChecksums[c]; ok && !f.empty() && sum != f.Checksum() {
			warnings = append(warnings, fmt.Sprintf("%s file differs from the uploaded one; the uploaded file is kept", strings.ToUpper(c.Label()[:1])+c.Label()[1:]))
		}
	}
	for _, s := range remaining {
		c, _ := s.Category()
		if files.For(c).empty() {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, c.Label())
		}
	}

	cp.DatasetID = datasetID
	o.logger.Info().Str("dataset_id", datasetID).Str("next_step", string(next)).Msg("Resuming dataset import")

	r := o.newRun(ctx, CreateRequest{Files: files}, remaining, cp, dataset)
	r.warnings = warnings
	return r, nil
}

func (o *Orchestrator) newRun(ctx context.Context, req CreateRequest, steps []Step, cp Checkpoint, dataset *types.Dataset) *Run {
	ctx, cancel := context.WithCancel(ctx)
	return &Run{
		o:          o,
		ctx:        ctx,
		cancel:     cancel,
		req:        req,
		steps:      steps,
		checkpoint: cp,
		dataset:    dataset,
	}
}

// saveCheckpoint records a completed step. Failing to save is logged and
// does not fail the run.
func (o *Orchestrator) saveCheckpoint(ctx context.Context, cp Checkpoint) {
	cp.UpdatedAt = time.Now().UTC()
	if err := o.checkpoints.Save(ctx, cp); err != nil {
		o.logger.Warn().Err(err).Str("dataset_id", cp.DatasetID).Msg("Failed to save ingestion checkpoint")
	}
}

// dropCheckpoint forgets a dataset's checkpoint once the backend reports
// the import complete or no longer knows the dataset
func (o *Orchestrator) dropCheckpoint(ctx context.Context, datasetID string) {
	if err := o.checkpoints.Delete(ctx, datasetID); err != nil {
		o.logger.Warn().Err(err).Str("dataset_id", datasetID).Msg("Failed to delete ingestion checkpoint")
	}
}

// userMessage picks the message for a failed step
func userMessage(step Step, err error) string {
	if errors.Is(err, errPanic) {
		return backend.MsgUnexpected
	}
	if msg := step.FailureMessage(); msg != "" {
		return msg
	}
	return backend.MsgUnexpected
}
