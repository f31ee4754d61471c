package store

import (
	"context"
	"fmt"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/cache"
	"github.com/kosarica/analytics-service/internal/types"
)

// CampaignAPI is the subset of the backend client the campaign store needs
type CampaignAPI interface {
	ListDatasetCampaigns(ctx context.Context, datasetID string) ([]types.Campaign, error)
	ListUserCampaigns(ctx context.Context) ([]types.Campaign, error)
	CreateCampaign(ctx context.Context, datasetID string, req backend.CreateCampaignRequest) (types.Campaign, error)
	ListPromotionRules(ctx context.Context, campaignID string) ([]types.PromotionRule, error)
	CreatePromotionRule(ctx context.Context, campaignID string, rule types.PromotionRule) (types.PromotionRule, error)
	ValidatePromotionRules(ctx context.Context, campaignID string, rules []types.PromotionRule) (backend.RuleValidation, error)
}

// CampaignStore caches campaigns by dataset id and promotion rules by
// campaign id
type CampaignStore struct {
	api       CampaignAPI
	byDataset *cache.Cache[string, []types.Campaign]
	rules     *cache.Cache[string, []types.PromotionRule]
}

// NewCampaignStore creates a campaign store
func NewCampaignStore(api CampaignAPI, opts ...cache.Option) *CampaignStore {
	return &CampaignStore{
		api:       api,
		byDataset: cache.New("campaigns", api.ListDatasetCampaigns, opts...),
		rules:     cache.New("promotion_rules", api.ListPromotionRules, opts...),
	}
}

// ForDataset returns the campaigns of a dataset
func (s *CampaignStore) ForDataset(ctx context.Context, datasetID string) (cache.Entry[[]types.Campaign], error) {
	return s.byDataset.Get(ctx, datasetID)
}

// RefreshDataset refetches the campaigns of a dataset
func (s *CampaignStore) RefreshDataset(ctx context.Context, datasetID string) (cache.Entry[[]types.Campaign], error) {
	return s.byDataset.Refresh(ctx, datasetID)
}

// UserCampaigns fetches every campaign of the user and refreshes the
// per-dataset entries it covers
func (s *CampaignStore) UserCampaigns(ctx context.Context) ([]types.Campaign, error) {
	all, err := s.api.ListUserCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]types.Campaign)
	for _, c := range all {
		grouped[c.DatasetID] = append(grouped[c.DatasetID], c)
	}
	for datasetID, campaigns := range grouped {
		s.byDataset.Set(datasetID, campaigns)
	}
	return all, nil
}

// Create creates a campaign and merges it into the dataset's entry when
// that entry is loaded
func (s *CampaignStore) Create(ctx context.Context, datasetID string, req backend.CreateCampaignRequest) (types.Campaign, error) {
	created, err := s.api.CreateCampaign(ctx, datasetID, req)
	if err != nil {
		return types.Campaign{}, err
	}
	s.byDataset.UpdateLoaded(datasetID, func(cur []types.Campaign) []types.Campaign {
		return upsertCampaign(cur, created)
	})
	return created, nil
}

// Rules returns the promotion rules of a campaign
func (s *CampaignStore) Rules(ctx context.Context, campaignID string) (cache.Entry[[]types.PromotionRule], error) {
	return s.rules.Get(ctx, campaignID)
}

// CreateRule checks the rule locally, creates it and merges it into the
// campaign's rules when they are loaded. The owning campaign's rule count is bumped in place.
func (s *CampaignStore) CreateRule(ctx context.Context, campaignID string, rule types.PromotionRule) (types.PromotionRule, error) {
	if err := rule.Validate(); err != nil {
		return types.PromotionRule{}, fmt.Errorf("invalid promotion rule: %w", err)
	}
	created, err := s.api.CreatePromotionRule(ctx, campaignID, rule)
	if err != nil {
		return types.PromotionRule{}, err
	}

	s.rules.UpdateLoaded(campaignID, func(cur []types.PromotionRule) []types.PromotionRule {
		out := make([]types.PromotionRule, 0, len(cur)+1)
		out = append(out, cur...)
		return append(out, created)
	})

	for _, datasetID := range s.byDataset.Keys() {
		s.byDataset.UpdateLoaded(datasetID, func(cur []types.Campaign) []types.Campaign {
			if !hasCampaign(cur, campaignID) {
				return cur
			}
			out := make([]types.Campaign, len(cur))
			copy(out, cur)
			for i := range out {
				if out[i].ID == campaignID {
					out[i].PromotionRulesCount++
				}
			}
			return out
		})
	}
	return created, nil
}

// ValidateRules checks rules locally and then against the dataset contents
// on the backend. Locally invalid rules are reported without a backend call.
func (s *CampaignStore) ValidateRules(ctx context.Context, campaignID string, rules []types.PromotionRule) (backend.RuleValidation, error) {
	var local []string
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			local = append(local, fmt.Sprintf("rule %d: %v", i+1, err))
		}
	}
	if len(local) > 0 {
		return backend.RuleValidation{IsValid: false, Errors: local}, nil
	}
	return s.api.ValidatePromotionRules(ctx, campaignID, rules)
}

func upsertCampaign(list []types.Campaign, c types.Campaign) []types.Campaign {
	out := make([]types.Campaign, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.ID == c.ID {
			out = append(out, c)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, c)
	}
	return out
}

func hasCampaign(list []types.Campaign, id string) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
