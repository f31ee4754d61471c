package types

import "time"

// ImportStatus tracks how far a dataset's file uploads have progressed
type ImportStatus string

const (
	ImportingTransaction   ImportStatus = "importing_transaction"
	ImportingProductLookup ImportStatus = "importing_product_lookup"
	ImportingCausalLookup  ImportStatus = "importing_causal_lookup"
	ImportCompleted        ImportStatus = "import_completed"
)

var importStatusRank = map[ImportStatus]int{
	ImportingTransaction:   1,
	ImportingProductLookup: 2,
	ImportingCausalLookup:  3,
	ImportCompleted:        4,
}

// Rank returns the position of the status in the import sequence, 0 if unknown
func (s ImportStatus) Rank() int {
	return importStatusRank[s]
}

// IsValid reports whether s is a known import status
func (s ImportStatus) IsValid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is as advanced as other
func (s ImportStatus) AtLeast(other ImportStatus) bool {
	return s.Rank() >= other.Rank()
}

// AnalysisStatus tracks server-side analysis of a dataset
type AnalysisStatus string

const (
	AnalysisNotStarted AnalysisStatus = "not_started"
	AnalysisRunning    AnalysisStatus = "analyzing"
	AnalysisDone       AnalysisStatus = "analyzed"
)

// Dataset is the client-side view of a backend dataset
type Dataset struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	ImportStatus   ImportStatus   `json:"importStatus"`
	AnalysisStatus AnalysisStatus `json:"analysisStatus"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
