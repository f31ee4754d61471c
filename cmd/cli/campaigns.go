package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kosarica/analytics-service/internal/backend"
	"github.com/kosarica/analytics-service/internal/types"
)

var (
	campaignsDataset    string
	campaignName        string
	campaignDescription string
	campaignInactive    bool
	rulesFile           string
)

var campaignsCmd = &cobra.Command{
	Use:     "campaigns",
	Aliases: []string{"campaign"},
	Short:   "List and create campaigns",
}

var campaignsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your campaigns, optionally for one dataset",
	Example: `  analytics campaigns list
  analytics campaigns list --dataset 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		var list []types.Campaign
		if campaignsDataset != "" {
			e, err := a.campaigns.ForDataset(cmd.Context(), campaignsDataset)
			if err != nil {
				return err
			}
			list = e.Value
		} else if list, err = a.campaigns.UserCampaigns(cmd.Context()); err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), list, func(w io.Writer) { printCampaigns(w, list) })
	},
}

var campaignsCreateCmd = &cobra.Command{
	Use:     "create <dataset-id>",
	Short:   "Create a campaign on a dataset",
	Example: `  analytics campaigns create 42 --name "Spring pasta" --description "Private label push"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(campaignName) == "" {
			return errors.New("campaign name is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		req := backend.CreateCampaignRequest{Name: campaignName, IsActive: !campaignInactive}
		if campaignDescription != "" {
			req.Description = &campaignDescription
		}
		c, err := a.campaigns.Create(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), c, func(w io.Writer) { printCampaigns(w, []types.Campaign{c}) })
	},
}

var rulesCmd = &cobra.Command{
	Use:     "rules",
	Aliases: []string{"rule"},
	Short:   "Manage the promotion rules of a campaign",
	Long: `Manage the promotion rules of a campaign. Rules are read from a YAML or JSON
file holding either a list of rules or a document with a 'rules' key. Dates are
Unix timestamps in seconds.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list <campaign-id>",
	Short: "List the promotion rules of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		e, err := a.campaigns.Rules(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), e.Value, func(w io.Writer) { printRules(w, e.Value) })
	},
}

var rulesCreateCmd = &cobra.Command{
	Use:     "create <campaign-id>",
	Short:   "Create promotion rules from a file",
	Example: `  analytics rules create 7 --file rules.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(rulesFile)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		created := make([]types.PromotionRule, 0, len(rules))
		for i, r := range rules {
			c, err := a.campaigns.CreateRule(cmd.Context(), args[0], r)
			if err != nil {
				return fmt.Errorf("rule %d: %w (%d created)", i+1, err, len(created))
			}
			created = append(created, c)
		}
		return emit(cmd.OutOrStdout(), created, func(w io.Writer) { printRules(w, created) })
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <campaign-id>",
	Short: "Check promotion rules against the campaign's dataset without creating them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := loadRules(rulesFile)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		v, err := a.campaigns.ValidateRules(cmd.Context(), args[0], rules)
		if err != nil {
			return err
		}
		if err := emit(cmd.OutOrStdout(), v, func(w io.Writer) { printRuleValidation(w, v) }); err != nil {
			return err
		}
		if !v.IsValid {
			return errors.New("promotion rules are invalid")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(campaignsCmd, rulesCmd)
	campaignsCmd.AddCommand(campaignsListCmd, campaignsCreateCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesCreateCmd, rulesValidateCmd)

	campaignsListCmd.Flags().StringVar(&campaignsDataset, "dataset", "", "Only campaigns of this dataset")

	campaignsCreateCmd.Flags().StringVar(&campaignName, "name", "", "Campaign name (required)")
	campaignsCreateCmd.Flags().StringVar(&campaignDescription, "description", "", "Campaign description")
	campaignsCreateCmd.Flags().BoolVar(&campaignInactive, "inactive", false, "Create the campaign as inactive")
	campaignsCreateCmd.MarkFlagRequired("name")

	for _, c := range []*cobra.Command{rulesCreateCmd, rulesValidateCmd} {
		c.Flags().StringVarP(&rulesFile, "file", "f", "", "YAML or JSON file with the rules (required)")
		c.MarkFlagRequired("file")
	}
}

type ruleFile struct {
	Rules []types.PromotionRule `yaml:"rules"`
}

// loadRules reads a list of rules, bare or under a 'rules' key
func loadRules(path string) ([]types.PromotionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s holds no rules", path)
	}

	var rules []types.PromotionRule
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&rules)
	case yaml.MappingNode:
		var f ruleFile
		err = root.Decode(&f)
		rules = f.Rules
	default:
		return nil, fmt.Errorf("%s: expected a list of rules", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%s holds no rules", path)
	}
	return rules, nil
}

func printCampaigns(w io.Writer, list []types.Campaign) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No campaigns")
		return
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tNAME\tDATASET\tACTIVE\tRULES\tCREATED")
	for _, c := range list {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.Name, c.DatasetID, yesNo(c.IsActive), c.PromotionRulesCount, formatUnix(c.CreatedAt))
	}
	t.Flush()
}

func printRules(w io.Writer, rules []types.PromotionRule) {
	if len(rules) == 0 {
		fmt.Fprintln(w, "No promotion rules")
		return
	}
	t := newTable(w)
	fmt.Fprintln(t, "ID\tTYPE\tTARGET\tSELECTORS\tEFFECT\tSTART\tEND\tACTIVE")
	for _, r := range rules {
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.RuleType, r.TargetType, selectors(r), effect(r),
			formatUnix(r.StartDate), formatUnix(r.EndDate), yesNo(r.IsActive))
	}
	t.Flush()
}

func printRuleValidation(w io.Writer, v backend.RuleValidation) {
	if v.IsValid {
		fmt.Fprintln(w, "Promotion rules are valid")
	} else {
		fmt.Fprintln(w, "Promotion rules are invalid")
	}
	for _, e := range v.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func selectors(r types.PromotionRule) string {
	var values []string
	switch r.TargetType {
	case types.TargetCategory:
		values = r.TargetSelectors.Categories
	case types.TargetBrand:
		values = r.TargetSelectors.Brands
	case types.TargetUPC:
		values = r.TargetSelectors.UPCs
	}
	return strings.Join(values, ", ")
}

func effect(r types.PromotionRule) string {
	switch {
	case r.PriceReductionPercentage != nil:
		return fmt.Sprintf("-%s%%", formatFloat(r.PriceReductionPercentage))
	case r.PriceReductionAmount != nil:
		return "-" + formatFloat(r.PriceReductionAmount)
	case r.ProductSizeIncreasePercentage != nil:
		return fmt.Sprintf("+%s%% size", formatFloat(r.ProductSizeIncreasePercentage))
	case r.Feature != nil:
		return "feature " + yesNo(*r.Feature)
	case r.Display != nil:
		return "display " + yesNo(*r.Display)
	}
	return "-"
}
