package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kosarica/analytics-service/internal/types"
)

// ID accepts identifiers the backend sends as either JSON numbers or strings
type ID string

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// CreateDatasetRequest is the body of POST /datasets
type CreateDatasetRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type datasetPayload struct {
	DatasetID      ID      `json:"dataset_id"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	CreatedAt      int64   `json:"created_at,omitempty"`
	UpdatedAt      int64   `json:"updated_at,omitempty"`
	Status         string  `json:"status,omitempty"`
	AnalysisStatus string  `json:"analysis_status,omitempty"`
}

func (p datasetPayload) toDataset() types.Dataset {
	d := types.Dataset{
		ID:             string(p.DatasetID),
		Name:           p.Name,
		Description:    p.Description,
		ImportStatus:   types.ImportStatus(p.Status),
		AnalysisStatus: types.AnalysisStatus(p.AnalysisStatus),
	}
	if !d.ImportStatus.IsValid() {
		d.ImportStatus = types.ImportingTransaction
	}
	if d.AnalysisStatus == "" {
		d.AnalysisStatus = types.AnalysisNotStarted
	}
	if p.CreatedAt > 0 {
		d.CreatedAt = time.Unix(p.CreatedAt, 0).UTC()
	}
	d.UpdatedAt = d.CreatedAt
	if p.UpdatedAt > 0 {
		d.UpdatedAt = time.Unix(p.UpdatedAt, 0).UTC()
	}
	return d
}

// UploadResult is returned by the file upload endpoints
type UploadResult struct {
	FileUploadID ID `json:"file_upload_id"`
	TaskID       ID `json:"task_id"`
}

// StatsBin is one histogram bucket or category count
type StatsBin struct {
	Label string   `json:"label"`
	Count int64    `json:"count"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// VariableStats are server-computed statistics for one column. Numerical
// variables carry the five-number summary; categorical ones only counts.
type VariableStats struct {
	Table    string     `json:"table"`
	Variable string     `json:"variable"`
	Kind     string     `json:"kind"`
	Count    int64      `json:"count"`
	Unique   int64      `json:"unique"`
	Min      *float64   `json:"min,omitempty"`
	Q1       *float64   `json:"q1,omitempty"`
	Median   *float64   `json:"median,omitempty"`
	Q3       *float64   `json:"q3,omitempty"`
	Max      *float64   `json:"max,omitempty"`
	Mean     *float64   `json:"mean,omitempty"`
	Std      *float64   `json:"std,omitempty"`
	Mode     any        `json:"mode,omitempty"`
	Bins     []StatsBin `json:"bins,omitempty"`
}

// IsNumerical reports whether the summary statistics are present
func (s VariableStats) IsNumerical() bool {
	return s.Kind == "numerical" || s.Mean != nil
}

// BivariateRequest selects the two variables to correlate
type BivariateRequest struct {
	Table1    string
	Variable1 string
	Table2    string
	Variable2 string
}

// Bivariate is the correlation between two variables plus a chart payload
type Bivariate struct {
	Correlation *float64        `json:"correlation"`
	Method      string          `json:"method,omitempty"`
	Chart       json.RawMessage `json:"chart,omitempty"`
}

// CreateCampaignRequest is the body of POST /datasets/{id}/campaigns
type CreateCampaignRequest struct {
	Name        string  `json:"name" yaml:"name"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	IsActive    bool    `json:"is_active" yaml:"is_active"`
}

// RuleValidation is the backend's pre-submit check of promotion rules
// against dataset contents
type RuleValidation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

type tokenRequest struct {
	IDToken string `json:"id_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      ID     `json:"user_id"`
}

type campaignPayload struct {
	types.Campaign
	ID        ID `json:"campaign_id"`
	DatasetID ID `json:"dataset_id"`
}

func (p campaignPayload) toCampaign() types.Campaign {
	c := p.Campaign
	c.ID = string(p.ID)
	c.DatasetID = string(p.DatasetID)
	return c
}

type rulePayload struct {
	types.PromotionRule
	ID ID `json:"promotion_rule_id"`
}

func (p rulePayload) toRule() types.PromotionRule {
	r := p.PromotionRule
	r.ID = string(p.ID)
	return r
}
