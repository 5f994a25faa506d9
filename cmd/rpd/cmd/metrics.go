package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func metricsCmd() *cobra.Command {
	metricsRoot := &cobra.Command{
		Use:   "metrics",
		Short: "Manage tracked metrics",
	}

	metricsRoot.AddCommand(
		metricListCmd(),
		metricCreateCmd(),
	)

	return metricsRoot
}

func metricListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List all metrics",
		Example: `  rpd metrics list`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			metrics, err := c.ListMetrics(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(metrics)
			}
			if len(metrics) == 0 {
				fmt.Println("No metrics found.")
				return nil
			}
			return printMetricTable(metrics)
		},
	}
}

func metricCreateCmd() *cobra.Command {
	var (
		metricName string
		metricUnit string
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Register a new metric",
		Example: `  rpd metrics create --name cpu_usage --unit %`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if metricName == "" {
				return fmt.Errorf("--name is required")
			}
			c := newClient()
			created, err := c.CreateMetric(context.Background(), &domain.Metric{
				Name: metricName,
				Unit: metricUnit,
			})
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Metric created: %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&metricName, "name", "", "metric name")
	cmd.Flags().StringVar(&metricUnit, "unit", "", "metric unit")

	return cmd
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "state",
		Short:   "Show aggregate system state",
		Example: `  rpd state`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			state, err := c.GetSystemState(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(state)
			}
			return printSystemState(state)
		},
	}
}
