package backend

import (
	"context"
	"net/http"

	"github.com/kosarica/analytics-service/internal/types"
)

// CreateCampaign creates a campaign on a dataset
func (c *Client) CreateCampaign(ctx context.Context, datasetID string, req CreateCampaignRequest) (types.Campaign, error) {
	body, err := jsonBody(req)
	if err != nil {
		return types.Campaign{}, err
	}
	var resp campaignPayload
	err = c.do(ctx, call{
		op:          "create_campaign",
		method:      http.MethodPost,
		segments:    []string{"datasets", datasetID, "campaigns"},
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return types.Campaign{}, err
	}
	campaign := resp.toCampaign()
	if campaign.DatasetID == "" {
		campaign.DatasetID = datasetID
	}
	return campaign, nil
}

// ListDatasetCampaigns lists the campaigns of one dataset
func (c *Client) ListDatasetCampaigns(ctx context.Context, datasetID string) ([]types.Campaign, error) {
	return c.listCampaigns(ctx, "list_dataset_campaigns", []string{"datasets", datasetID, "campaigns"})
}

// ListUserCampaigns lists every campaign of the current user
func (c *Client) ListUserCampaigns(ctx context.Context) ([]types.Campaign, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	return c.listCampaigns(ctx, "list_user_campaigns", []string{"users", s.UserID, "campaigns"})
}

func (c *Client) listCampaigns(ctx context.Context, op string, segments []string) ([]types.Campaign, error) {
	var resp []campaignPayload
	if err := c.do(ctx, call{op: op, method: http.MethodGet, segments: segments}, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Campaign, len(resp))
	for i, p := range resp {
		out[i] = p.toCampaign()
	}
	return out, nil
}

// CreatePromotionRule adds a rule to a campaign
func (c *Client) CreatePromotionRule(ctx context.Context, campaignID string, rule types.PromotionRule) (types.PromotionRule, error) {
	body, err := jsonBody(rule)
	if err != nil {
		return types.PromotionRule{}, err
	}
	var resp rulePayload
	err = c.do(ctx, call{
		op:          "create_promotion_rule",
		method:      http.MethodPost,
		segments:    []string{"campaigns", campaignID, "promotionrules"},
		body:        body,
		contentType: "application/json",
	}, &resp)
	if err != nil {
		return types.PromotionRule{}, err
	}
	return resp.toRule(), nil
}

// ListPromotionRules lists the rules of a campaign
func (c *Client) ListPromotionRules(ctx context.Context, campaignID string) ([]types.PromotionRule, error) {
	var resp []rulePayload
	err := c.do(ctx, call{
		op:       "list_promotion_rules",
		method:   http.MethodGet,
		segments: []string{"campaigns", campaignID, "promotionrules"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]types.PromotionRule, len(resp))
	for i, p := range resp {
		out[i] = p.toRule()
	}
	return out, nil
}

// ValidatePromotionRules asks the backend whether the rules' selectors
// exist in the campaign's dataset
func (c *Client) ValidatePromotionRules(ctx context.Context, campaignID string, rules []types.PromotionRule) (RuleValidation, error) {
	body, err := jsonBody(rules)
	if err != nil {
		return RuleValidation{}, err
	}
	var resp RuleValidation
	err = c.do(ctx, call{
		op:          "validate_promotion_rules",
		method:      http.MethodPost,
		segments:    []string{"campaigns", campaignID, "promotionrules", "validate"},
		body:        body,
		contentType: "application/json",
	}, &resp)
	return resp, err
}
