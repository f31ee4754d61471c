package ingestion

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/telemetry"
	"github.com/kosarica/analytics-service/internal/types"
)

// Run is one dataset creation or resume. Each step executes only when the
// consumer pulls the next progress event, and stopping the iteration
// abandons the run. A Run is not safe for concurrent use.
type Run struct {
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc

	req        CreateRequest
	steps      []Step
	checkpoint Checkpoint
	dataset    *types.Dataset
	warnings   []string

	started bool
	result  Result
}

// Progress returns the run's events in step order. The sequence can be
// consumed once; later calls yield nothing.
func (r *Run) Progress() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		if r.started {
			return
		}
		r.started = true
		r.execute(yield)
	}
}

// Result drives the run to completion if it has not been consumed and
// returns its outcome
func (r *Run) Result() Result {
	if !r.started {
		for range r.Progress() {
		}
	}
	return r.result
}

// DatasetID returns the id of the dataset being imported, empty until the
// dataset record is created
func (r *Run) DatasetID() string {
	if r.dataset != nil {
		return r.dataset.ID
	}
	return r.checkpoint.DatasetID
}

func (r *Run) execute(yield func(Progress) bool) {
	defer r.cancel()

	ctx, span := telemetry.Tracer().Start(r.ctx, "ingestion.run",
		trace.WithAttributes(attribute.Int("ingestion.steps", len(r.steps))))
	defer span.End()

	for _, w := range r.warnings {
		first := r.steps[0]
		if !yield(Progress{
			Step:      first,
			Progress:  stepInfos[first].progress,
			Message:   stepInfos[first].message,
			DatasetID: r.DatasetID(),
			Warning:   w,
		}) {
			r.abandon(first)
			return
		}
	}

	for _, step := range r.steps {
		if !yield(Progress{
			Step:      step,
			Progress:  stepInfos[step].progress,
			Message:   stepInfos[step].message,
			DatasetID: r.DatasetID(),
		}) {
			r.abandon(step)
			return
		}

		if err := r.runStep(ctx, step); err != nil {
			r.result = Result{
				Success:    false,
				Dataset:    r.dataset,
				FailedStep: step,
				Error:      userMessage(step, err),
				Err:        err,
			}
			telemetry.RecordError(span, err)
			r.o.logger.Error().Err(err).
				Str("step", string(step)).
				Str("dataset_id", r.DatasetID()).
				Msg("Dataset import failed")
			yield(Progress{
				Step:      StepFailed,
				Progress:  stepInfos[step].progress,
				Message:   r.result.Error,
				DatasetID: r.DatasetID(),
			})
			return
		}
	}

	r.result = Result{Success: true, Dataset: r.dataset}
	r.o.logger.Info().Str("dataset_id", r.DatasetID()).Msg("Dataset import completed")
	yield(Progress{
		Step:      StepCompleted,
		Progress:  100,
		Message:   "Dataset created",
		DatasetID: r.DatasetID(),
	})
}

func (r *Run) abandon(step Step) {
	r.cancel()
	r.result = Result{
		Success:    false,
		Dataset:    r.dataset,
		FailedStep: step,
		Error:      "Dataset creation was cancelled",
		Err:        ErrAbandoned,
	}
	r.o.logger.Warn().Str("step", string(step)).Str("dataset_id", r.DatasetID()).Msg("Dataset import abandoned")
}

func (r *Run) runStep(ctx context.Context, step Step) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingestion."+string(step))
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errPanic, p)
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
			telemetry.RecordError(span, err)
		}
		stepsTotal.WithLabelValues(string(step), outcome).Inc()
		stepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
	}()

	if step == StepCreatingMaster {
		return r.createMaster(ctx)
	}
	span.SetAttributes(attribute.String("dataset.id", r.DatasetID()))
	return r.upload(ctx, step)
}

func (r *Run) createMaster(ctx context.Context) error {
	d, err := r.o.api.CreateDataset(ctx, backend.CreateDatasetRequest{
		Name:        r.req.Name,
		Description: r.req.Description,
	})
	if err != nil {
		return &DatasetCreationError{Err: err}
	}
	d.ImportStatus = stepInfos[StepCreatingMaster].reached
	r.o.datasets.Insert(d)
	r.dataset = &d

	r.checkpoint.DatasetID = d.ID
	r.checkpoint.LastCompletedStep = StepCreatingMaster
	r.o.saveCheckpoint(ctx, r.checkpoint)

	r.o.logger.Info().Str("dataset_id", d.ID).Str("name", d.Name).Msg("Dataset record created")
	return nil
}

func (r *Run) upload(ctx context.Context, step Step) error {
	category, _ := step.Category()
	file := r.req.Files.For(category)
	id := r.DatasetID()

	res, err := r.o.api.UploadFile(ctx, id, category, file.Name, file.Content)
	if err != nil {
		return &UploadStepError{Step: step, DatasetID: id, Err: err}
	}

	if d, ok := r.o.datasets.AdvanceImportStatus(id, stepInfos[step].reached); ok {
		r.dataset = &d
	}

	r.checkpoint.LastCompletedStep = step
	r.checkpoint.FileChecksums[category] = file.Checksum()
	r.o.saveCheckpoint(ctx, r.checkpoint)

	r.o.logger.Info().
		Str("dataset_id", id).
		Str("category", string(category)).
		Str("file", file.Name).
		Int("bytes", len(file.Content)).
		Str("task_id", string(res.TaskID)).
		Msg("File uploaded")
	return nil
}
