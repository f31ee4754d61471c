package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/store"
	"github.com/kosarica/analytics-service/internal/types"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	panicOn  string
	datasets []types.Dataset
	// status is what ListDatasets reports; the backend lags behind uploads
	status types.ImportStatus
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{fail: map[string]error{}}
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call == f.panicOn {
		panic("boom")
	}
	return f.fail[call]
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CreateDataset(_ context.Context, req backend.CreateDatasetRequest) (types.Dataset, error) {
	if err := f.record("create"); err != nil {
		return types.Dataset{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d := types.Dataset{
		ID:        fmt.Sprint(len(f.datasets) + 1),
		Name:      req.Name,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.datasets = append(f.datasets, d)
	return d, nil
}

func (f *fakeBackend) UploadFile(_ context.Context, datasetID string, category types.FileCategory, filename string, content []byte) (backend.UploadResult, error) {
	if err := f.record(string(category)); err != nil {
		return backend.UploadResult{}, err
	}
	return backend.UploadResult{FileUploadID: backend.ID(datasetID + "-" + string(category)), TaskID: "task"}, nil
}

func (f *fakeBackend) ListDatasets(context.Context) ([]types.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := f.status
	if status == "" {
		status = types.ImportingTransaction
	}
	out := make([]types.Dataset, len(f.datasets))
	for i, d := range f.datasets {
		d.ImportStatus = status
		out[i] = d
	}
	return out, nil
}

func testFiles() Files {
	return Files{
		Transaction:   File{Name: "transactions.csv", Content: []byte("upc,units\n1,2\n")},
		ProductLookup: File{Name: "products.csv", Content: []byte("upc,brand\n1,Acme\n")},
		CausalLookup:  File{Name: "causal.csv", Content: []byte("upc,feature\n1,A\n")},
	}
}

type fixture struct {
	api         *fakeBackend
	datasets    *store.DatasetStore
	checkpoints *MemoryCheckpointStore
	orch        *Orchestrator
}

func newFixture() *fixture {
	api := newFakeBackend()
	datasets := store.NewDatasetStore(api)
	checkpoints := NewMemoryCheckpointStore()
	return &fixture{
		api:         api,
		datasets:    datasets,
		checkpoints: checkpoints,
		orch:        NewOrchestrator(api, datasets, checkpoints),
	}
}

func (f *fixture) create(t *testing.T) *Run {
	t.Helper()
	run, err := f.orch.CreateDataset(context.Background(), CreateRequest{Name: "Spring 2024", Files: testFiles()})
	require.NoError(t, err)
	return run
}

func collect(run *Run) []Progress {
	var events []Progress
	for p := range run.Progress() {
		events = append(events, p)
	}
	return events
}

func TestCreateDatasetSuccess(t *testing.T) {
	f := newFixture()
	run := f.create(t)

	events := collect(run)
	result := run.Result()

	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.Dataset)
	assert.Equal(t, types.ImportCompleted, result.Dataset.ImportStatus)

	var steps []Step
	var pct []int
	for _, e := range events {
		steps = append(steps, e.Step)
		pct = append(pct, e.Progress)
	}
	assert.Equal(t, []Step{
		StepCreatingMaster, StepUploadingTransaction, StepUploadingProductLookup, StepUploadingCausalLookup, StepCompleted,
	}, steps)
	assert.Equal(t, []int{0, 25, 50, 75, 100}, pct)
	assert.Equal(t, []string{"create", "transaction", "product_lookup", "causal_lookup"}, f.api.Calls())

	entry, ok := f.datasets.Peek("1")
	require.True(t, ok)
	assert.Equal(t, types.ImportCompleted, entry.Value.ImportStatus)

	cp, err := f.checkpoints.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, StepUploadingCausalLookup, cp.LastCompletedStep)
	assert.Len(t, cp.FileChecksums, 3)
	assert.Equal(t, testFiles().Transaction.Checksum(), cp.FileChecksums[types.CategoryTransaction])
}

func TestCreateDatasetRunsStepsOnDemand(t *testing.T) {
	f := newFixture()
	run := f.create(t)
	assert.Empty(t, f.api.Calls())

	i := 0
	for p := range run.Progress() {
		// the step announced by this event has not run yet
		assert.Len(t, f.api.Calls(), i, "event %s", p.Step)
		i++
	}
}

func TestCreateDatasetStopsAfterFailedStep(t *testing.T) {
	f := newFixture()
	f.api.fail["transaction"] = &backend.APIError{Op: "upload", Status: 500, Message: "boom"}
	run := f.create(t)

	events := collect(run)
	result := run.Result()

	assert.False(t, result.Success)
	assert.Equal(t, StepUploadingTransaction, result.FailedStep)
	assert.Equal(t, "Failed to upload transaction file", result.Error)
	assert.Equal(t, []string{"create", "transaction"}, f.api.Calls())

	var stepErr *UploadStepError
	require.ErrorAs(t, result.Err, &stepErr)
	assert.Equal(t, "1", stepErr.DatasetID)

	last := events[len(events)-1]
	assert.Equal(t, StepFailed, last.Step)
	assert.Equal(t, 25, last.Progress)

	entry, ok := f.datasets.Peek("1")
	require.True(t, ok)
	assert.Equal(t, types.ImportingTransaction, entry.Value.ImportStatus)
}

func TestCreateDatasetCausalFailureKeepsProgress(t *testing.T) {
	f := newFixture()
	f.api.fail["causal_lookup"] = &backend.APIError{Op: "upload", Status: 500, Message: "boom"}
	run := f.create(t)

	result := run.Result()

	assert.False(t, result.Success)
	assert.Equal(t, StepUploadingCausalLookup, result.FailedStep)
	assert.Equal(t, "Failed to upload causal lookup file", result.Error)
	require.NotNil(t, result.Dataset)
	assert.Equal(t, types.ImportingCausalLookup, result.Dataset.ImportStatus)

	entry, ok := f.datasets.Peek("1")
	require.True(t, ok)
	assert.Equal(t, types.ImportingCausalLookup, entry.Value.ImportStatus)
}

func TestCreateDatasetCreationFailure(t *testing.T) {
	f := newFixture()
	f.api.fail["create"] = errors.New("connection refused")
	run := f.create(t)

	result := run.Result()

	assert.False(t, result.Success)
	assert.Nil(t, result.Dataset)
	assert.Equal(t, StepCreatingMaster, result.FailedStep)
	assert.Equal(t, "Failed to create dataset", result.Error)
	var createErr *DatasetCreationError
	assert.ErrorAs(t, result.Err, &createErr)
	_, cached := f.datasets.Peek("1")
	assert.False(t, cached)
}

func TestCreateDatasetRecoversPanic(t *testing.T) {
	f := newFixture()
	f.api.panicOn = "product_lookup"
	run := f.create(t)

	result := run.Result()

	assert.False(t, result.Success)
	assert.Equal(t, StepUploadingProductLookup, result.FailedStep)
	assert.Equal(t, backend.MsgUnexpected, result.Error)
	assert.ErrorIs(t, result.Err, errPanic)
}

func TestCreateDatasetAbandon(t *testing.T) {
	f := newFixture()
	run := f.create(t)

	for p := range run.Progress() {
		if p.Step == StepUploadingProductLookup {
			break
		}
	}
	result := run.Result()

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrAbandoned)
	assert.Equal(t, StepUploadingProductLookup, result.FailedStep)
	assert.Equal(t, []string{"create", "transaction"}, f.api.Calls())
	// a consumed run does not restart
	assert.Empty(t, collect(run))
}

func TestCreateDatasetRejectsIncompleteRequest(t *testing.T) {
	f := newFixture()

	files := testFiles()
	files.CausalLookup = File{}
	_, err := f.orch.CreateDataset(context.Background(), CreateRequest{Name: "x", Files: files})
	assert.ErrorIs(t, err, ErrMissingFile)

	_, err = f.orch.CreateDataset(context.Background(), CreateRequest{Name: " ", Files: testFiles()})
	assert.Error(t, err)
	assert.Empty(t, f.api.Calls())
}

func TestResumeAfterFailure(t *testing.T) {
	f := newFixture()
	f.api.fail["causal_lookup"] = errors.New("timeout")
	require.False(t, f.create(t).Result().Success)

	delete(f.api.fail, "causal_lookup")
	files := Files{CausalLookup: testFiles().CausalLookup}
	run, err := f.orch.Resume(context.Background(), "1", files)
	require.NoError(t, err)

	events := collect(run)
	result := run.Result()

	require.True(t, result.Success, result.Error)
	assert.Equal(t, []string{"create", "transaction", "product_lookup", "causal_lookup", "causal_lookup"}, f.api.Calls())
	require.Len(t, events, 2)
	assert.Equal(t, StepUploadingCausalLookup, events[0].Step)
	assert.Equal(t, StepCompleted, events[1].Step)
	assert.Equal(t, types.ImportCompleted, result.Dataset.ImportStatus)

	_, err = f.orch.Resume(context.Background(), "1", files)
	assert.ErrorIs(t, err, ErrNothingToResume)
}

func TestResumeWarnsOnChangedFile(t *testing.T) {
	f := newFixture()
	f.api.fail["product_lookup"] = errors.New("timeout")
	require.False(t, f.create(t).Result().Success)
	delete(f.api.fail, "product_lookup")

	files := testFiles()
	files.Transaction.Content = []byte("upc,units\n1,3\n")
	run, err := f.orch.Resume(context.Background(), "1", files)
	require.NoError(t, err)

	events := collect(run)

	require.NotEmpty(t, events)
	assert.Contains(t, events[0].Warning, "Transaction file differs")
	assert.Equal(t, StepUploadingProductLookup, events[0].Step)
	assert.True(t, run.Result().Success)
}

func TestResumeFromCachedStatus(t *testing.T) {
	f := newFixture()
	f.api.fail["product_lookup"] = errors.New("timeout")
	require.False(t, f.create(t).Result().Success)
	delete(f.api.fail, "product_lookup")
	require.NoError(t, f.checkpoints.Delete(context.Background(), "1"))

	run, err := f.orch.Resume(context.Background(), "1", Files{
		ProductLookup: testFiles().ProductLookup,
		CausalLookup:  testFiles().CausalLookup,
	})
	require.NoError(t, err)

	assert.True(t, run.Result().Success)
	assert.Equal(t, []string{"product_lookup", "causal_lookup"}, f.api.Calls()[3:])
}

func TestResumeCompletedImportWithLaggingStatus(t *testing.T) {
	f := newFixture()
	require.True(t, f.create(t).Result().Success)
	calls := len(f.api.Calls())

	orch := NewOrchestrator(f.api, store.NewDatasetStore(f.api), f.checkpoints)
	_, err := orch.Resume(context.Background(), "1", testFiles())

	assert.ErrorIs(t, err, ErrNothingToResume)
	assert.Len(t, f.api.Calls(), calls)
	_, err = f.checkpoints.Load(context.Background(), "1")
	assert.NoError(t, err, "checkpoint kept while the backend has not caught up")
}

func TestResumeDropsCheckpoint(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		status  types.ImportStatus
		wantErr error
	}{
		{"backend reports completed", "1", types.ImportCompleted, ErrNothingToResume},
		{"dataset gone from backend", "2", types.ImportingTransaction, store.ErrDatasetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			require.True(t, f.create(t).Result().Success)
			require.NoError(t, f.checkpoints.Save(context.Background(), Checkpoint{DatasetID: "2", LastCompletedStep: StepCreatingMaster}))
			f.api.status = tt.status

			orch := NewOrchestrator(f.api, store.NewDatasetStore(f.api), f.checkpoints)
			_, err := orch.Resume(context.Background(), tt.id, testFiles())

			assert.ErrorIs(t, err, tt.wantErr)
			_, err = f.checkpoints.Load(context.Background(), tt.id)
			assert.ErrorIs(t, err, ErrNoCheckpoint)
		})
	}
}

func TestResumeErrors(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Resume(context.Background(), "404", testFiles())
	assert.ErrorIs(t, err, store.ErrDatasetNotFound)

	f.api.fail["transaction"] = errors.New("timeout")
	require.False(t, f.create(t).Result().Success)

	_, err = f.orch.Resume(context.Background(), "1", Files{ProductLookup: testFiles().ProductLookup})
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestStepForStatus(t *testing.T) {
	tests := []struct {
		status types.ImportStatus
		want   Step
	}{
		{"", StepCreatingMaster},
		{types.ImportingTransaction, StepUploadingTransaction},
		{types.ImportingProductLookup, StepUploadingProductLookup},
		{types.ImportingCausalLookup, StepUploadingCausalLookup},
		{types.ImportCompleted, StepCompleted},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, stepForStatus(tt.status))
		})
	}
}
