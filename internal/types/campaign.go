package types

import (
	"errors"
	"fmt"
	"strings"
)

// Campaign is a promotional initiative scoped to one dataset
type Campaign struct {
	ID                  string  `json:"campaign_id" yaml:"campaign_id"`
	Name                string  `json:"name" yaml:"name"`
	Description         *string `json:"description,omitempty" yaml:"description,omitempty"`
	DatasetID           string  `json:"dataset_id" yaml:"dataset_id"`
	IsActive            bool    `json:"is_active" yaml:"is_active"`
	PromotionRulesCount int     `json:"promotion_rules_count" yaml:"promotion_rules_count"`
	CreatedAt           int64   `json:"created_at" yaml:"created_at"`
	UpdatedAt           int64   `json:"updated_at" yaml:"updated_at"`
}

// RuleType is the effect a promotion rule applies
type RuleType string

const (
	RulePriceReduction      RuleType = "price_reduction"
	RuleProductSizeIncrease RuleType = "product_size_increase"
	RuleFeature             RuleType = "feature_yes_no"
	RuleDisplay             RuleType = "display_yes_no"
)

// TargetType selects which products a rule applies to
type TargetType string

const (
	TargetCategory TargetType = "category"
	TargetBrand    TargetType = "brand"
	TargetUPC      TargetType = "upc"
)

// TargetSelectors holds the product selector matching a rule's target type
type TargetSelectors struct {
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Brands     []string `json:"brands,omitempty" yaml:"brands,omitempty"`
	UPCs       []string `json:"upcs,omitempty" yaml:"upcs,omitempty"`
}

// PromotionRule is a targeting + effect specification attached to a campaign
type PromotionRule struct {
	ID              string          `json:"promotion_rule_id,omitempty" yaml:"promotion_rule_id,omitempty"`
	RuleType        RuleType        `json:"rule_type" yaml:"rule_type"`
	TargetType      TargetType      `json:"target_type" yaml:"target_type"`
	TargetSelectors TargetSelectors `json:"target_selectors" yaml:"target_selectors"`

	PriceReductionPercentage      *float64 `json:"price_reduction_percentage,omitempty" yaml:"price_reduction_percentage,omitempty"`
	PriceReductionAmount          *float64 `json:"price_reduction_amount,omitempty" yaml:"price_reduction_amount,omitempty"`
	ProductSizeIncreasePercentage *float64 `json:"product_size_increase_percentage,omitempty" yaml:"product_size_increase_percentage,omitempty"`
	Feature                       *bool    `json:"feature,omitempty" yaml:"feature,omitempty"`
	Display                       *bool    `json:"display,omitempty" yaml:"display,omitempty"`

	StartDate int64 `json:"start_date" yaml:"start_date"`
	EndDate   int64 `json:"end_date" yaml:"end_date"`
	IsActive  bool  `json:"is_active" yaml:"is_active"`
}

// Validate checks that the populated effect fields match RuleType and the
// populated selector matches TargetType. All problems are joined into one error.
func (r PromotionRule) Validate() error {
	var errs []error

	effects := map[string]bool{
		"price_reduction_percentage":       r.PriceReductionPercentage != nil,
		"price_reduction_amount":           r.PriceReductionAmount != nil,
		"product_size_increase_percentage": r.ProductSizeIncreasePercentage != nil,
		"feature":                          r.Feature != nil,
		"display":                          r.Display != nil,
	}

	var allowed []string
	switch r.RuleType {
	case RulePriceReduction:
		allowed = []string{"price_reduction_percentage", "price_reduction_amount"}
		switch {
		case effects["price_reduction_percentage"] && effects["price_reduction_amount"]:
			errs = append(errs, errors.New("price_reduction requires exactly one of price_reduction_percentage or price_reduction_amount, got both"))
		case !effects["price_reduction_percentage"] && !effects["price_reduction_amount"]:
			errs = append(errs, errors.New("price_reduction requires price_reduction_percentage or price_reduction_amount"))
		}
		if p := r.PriceReductionPercentage; p != nil && (*p <= 0 || *p > 100) {
			errs = append(errs, fmt.Errorf("price_reduction_percentage must be in (0, 100], got %v", *p))
		}
		if a := r.PriceReductionAmount; a != nil && *a <= 0 {
			errs = append(errs, fmt.Errorf("price_reduction_amount must be positive, got %v", *a))
		}
	case RuleProductSizeIncrease:
		allowed = []string{"product_size_increase_percentage"}
		if p := r.ProductSizeIncreasePercentage; p == nil {
			errs = append(errs, errors.New("product_size_increase requires product_size_increase_percentage"))
		} else if *p <= 0 || *p > 100 {
			errs = append(errs, fmt.Errorf("product_size_increase_percentage must be in (0, 100], got %v", *p))
		}
	case RuleFeature:
		allowed = []string{"feature"}
		if r.Feature == nil {
			errs = append(errs, errors.New("feature_yes_no requires feature"))
		}
	case RuleDisplay:
		allowed = []string{"display"}
		if r.Display == nil {
			errs = append(errs, errors.New("display_yes_no requires display"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rule_type %q", r.RuleType))
	}

	if allowed != nil {
		for _, name := range []string{
			"price_reduction_percentage",
			"price_reduction_amount",
			"product_size_increase_percentage",
			"feature",
			"display",
		} {
			if effects[name] && !contains(allowed, name) {
				errs = append(errs, fmt.Errorf("%s is not allowed for rule_type %s", name, r.RuleType))
			}
		}
	}

	sel := r.TargetSelectors
	populated := map[TargetType]bool{
		TargetCategory: len(sel.Categories) > 0,
		TargetBrand:    len(sel.Brands) > 0,
		TargetUPC:      len(sel.UPCs) > 0,
	}
	switch r.TargetType {
	case TargetCategory, TargetBrand, TargetUPC:
		if !populated[r.TargetType] {
			errs = append(errs, fmt.Errorf("target_type %s requires at least one %s selector", r.TargetType, r.TargetType))
		}
		for _, t := range []TargetType{TargetCategory, TargetBrand, TargetUPC} {
			if t != r.TargetType && populated[t] {
				errs = append(errs, fmt.Errorf("%s selectors are not allowed for target_type %s", t, r.TargetType))
			}
		}
		for _, v := range append(append(append([]string{}, sel.Categories...), sel.Brands...), sel.UPCs...) {
			if strings.TrimSpace(v) == "" {
				errs = append(errs, errors.New("target selectors must not contain blank values"))
				break
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown target_type %q", r.TargetType))
	}

	if r.StartDate <= 0 || r.EndDate <= 0 {
		errs = append(errs, errors.New("start_date and end_date are required"))
	} else if r.StartDate >= r.EndDate {
		errs = append(errs, errors.New("start_date must be before end_date"))
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
