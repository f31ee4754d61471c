package ingestion

import "github.com/kosarica/analytics-service/internal/types"

// Step is a state of the dataset creation state machine
type Step string

const (
	StepCreatingMaster         Step = "creating_master"
	StepUploadingTransaction   Step = "uploading_transaction"
	StepUploadingProductLookup Step = "uploading_product_lookup"
	StepUploadingCausalLookup  Step = "uploading_causal_lookup"
	StepCompleted              Step = "completed"
	StepFailed                 Step = "failed"
)

// Steps lists the working steps in execution order
var Steps = []Step{
	StepCreatingMaster,
	StepUploadingTransaction,
	StepUploadingProductLookup,
	StepUploadingCausalLookup,
}

type stepInfo struct {
	progress int
	message  string
	failure  string
	// category is the file uploaded by the step, empty for the master record
	category types.FileCategory
	// reached is the import status once the step succeeds
	reached types.ImportStatus
}

var stepInfos = map[Step]stepInfo{
	StepCreatingMaster: {
		progress: 0,
		message:  "Creating dataset",
		failure:  "Failed to create dataset",
		reached:  types.ImportingTransaction,
	},
	StepUploadingTransaction: {
		progress: 25,
		message:  "Uploading transaction file",
		failure:  "Failed to upload transaction file",
		category: types.CategoryTransaction,
		reached:  types.ImportingProductLookup,
	},
	StepUploadingProductLookup: {
		progress: 50,
		message:  "Uploading product lookup file",
		failure:  "Failed to upload product lookup file",
		category: types.CategoryProductLookup,
		reached:  types.ImportingCausalLookup,
	},
	StepUploadingCausalLookup: {
		progress: 75,
		message:  "Uploading causal lookup file",
		failure:  "Failed to upload causal lookup file",
		category: types.CategoryCausalLookup,
		reached:  types.ImportCompleted,
	},
}

// FailureMessage is the user-facing message for a failure during s
func (s Step) FailureMessage() string {
	return stepInfos[s].failure
}

// Category returns the file category uploaded by s
func (s Step) Category() (types.FileCategory, bool) {
	c := stepInfos[s].category
	return c, c != ""
}

// index orders steps; StepCompleted sorts after every working step
func (s Step) index() int {
	if s == StepCompleted {
		return len(Steps)
	}
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// stepForStatus returns the first step still to run for a dataset whose
// import status is status
func stepForStatus(status types.ImportStatus) Step {
	for _, s := range Steps {
		if stepInfos[s].reached.Rank() > status.Rank() {
			return s
		}
	}
	return StepCompleted
}

// Progress is one event of a dataset creation run
type Progress struct {
	Step      Step   `json:"step"`
	Progress  int    `json:"progress"`
	Message   string `json:"message"`
	DatasetID string `json:"datasetId,omitempty"`
	// Warning carries non-fatal notices, such as a changed file on resume
	Warning string `json:"warning,omitempty"`
}
