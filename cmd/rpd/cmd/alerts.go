package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func alertsCmd() *cobra.Command {
	alertsRoot := &cobra.Command{
		Use:   "alerts",
		Short: "Manage threshold rules",
		Long: "Manage threshold rules that compare metric readings against fixed\n" +
			"values or percent changes and fan out notifications when satisfied.",
	}

	alertsRoot.AddCommand(
		alertListCmd(),
		alertGetCmd(),
		alertCreateCmd(),
		alertDeleteCmd(),
		alertTriggersCmd(),
	)

	return alertsRoot
}

func alertListCmd() *cobra.Command {
	var metricID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threshold rules",
		Example: `  rpd alerts list
  rpd alerts list --metric abc123`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			rules, err := c.ListRules(context.Background(), metricID)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(rules)
			}
			if len(rules) == 0 {
				fmt.Println("No rules found.")
				return nil
			}
			return printRuleTable(rules)
		},
	}
	cmd.Flags().StringVar(&metricID, "metric", "", "filter by metric ID")

	return cmd
}

func alertGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show rule details",
		Example: `  rpd alerts get abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			r, err := c.GetRule(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(r)
			}
			return printRuleDetail(r)
		},
	}
}

func alertCreateCmd() *cobra.Command {
	var (
		ruleMetricID   string
		ruleCondition  string
		ruleThreshold  float64
		ruleChannels   []string
		ruleRecipients []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a threshold rule",
		Example: `  # Alert when cpu_usage goes above 90
  rpd alerts create --metric abc123 --condition above_threshold --threshold 90 \
    --channel discord

  # Alert on a >15% swing against the baseline
  rpd alerts create --metric abc123 --condition percent_change --threshold 15`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if ruleMetricID == "" || ruleCondition == "" {
				return fmt.Errorf("--metric and --condition are required")
			}
			r := &domain.ThresholdRule{
				MetricID:   ruleMetricID,
				Condition:  domain.AlertCondition(ruleCondition),
				Threshold:  ruleThreshold,
				Channels:   ruleChannels,
				Recipients: ruleRecipients,
				Active:     true,
			}
			c := newClient()
			created, err := c.CreateRule(context.Background(), r)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Rule created: %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ruleMetricID, "metric", "", "metric ID the rule watches")
	cmd.Flags().
		StringVar(&ruleCondition, "condition", "", "condition (above_threshold, below_threshold, equals, percent_change)")
	cmd.Flags().Float64Var(&ruleThreshold, "threshold", 0, "threshold value")
	cmd.Flags().StringArrayVar(&ruleChannels, "channel", nil, "notification channels")
	cmd.Flags().StringArrayVar(&ruleRecipients, "recipient", nil, "notification recipients")

	return cmd
}

func alertDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a threshold rule",
		Example: `  rpd alerts delete abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			if err := c.DeleteRule(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Rule %s deleted.\n", args[0])
			return nil
		},
	}
}

func alertTriggersCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "triggers <metric-id>",
		Short:   "Show a metric's alert history",
		Example: `  rpd alerts triggers abc123 --limit 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			triggers, err := c.ListMetricTriggers(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(triggers)
			}
			if len(triggers) == 0 {
				fmt.Println("No triggers recorded.")
				return nil
			}
			return printTriggerTable(triggers)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to return")

	return cmd
}

func evaluateCmd() *cobra.Command {
	var baseline float64

	cmd := &cobra.Command{
		Use:   "evaluate <metric-id> <value>",
		Short: "Evaluate a metric reading",
		Long: "Submit one metric reading for evaluation against the metric's active\n" +
			"threshold rules. Pass --baseline for percent_change rules.",
		Example: `  rpd evaluate abc123 95.5
  rpd evaluate abc123 120 --baseline 100`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("parsing value %q: %w", args[1], err)
			}

			entry := domain.EvaluationEntry{MetricID: args[0], Value: value}
			if cmd.Flags().Changed("baseline") {
				entry.Baseline = &baseline
			}

			c := newClient()
			result, err := c.Evaluate(context.Background(), entry)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(result)
			}

			fmt.Printf("Checked %d rule(s), %d triggered.\n",
				result.AlertsChecked, len(result.TriggeredAlerts))
			for i := range result.TriggeredAlerts {
				fmt.Println("  " + result.TriggeredAlerts[i].Message)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&baseline, "baseline", 0, "prior reading for percent_change rules")

	return cmd
}
