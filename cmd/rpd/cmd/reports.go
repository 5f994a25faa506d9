package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func reportsCmd() *cobra.Command {
	reportsRoot := &cobra.Command{
		Use:   "reports",
		Short: "Manage scheduled reports",
		Long: "Manage scheduled reports that define what gets delivered, to whom,\n" +
			"how often, and in which format.",
	}

	reportsRoot.AddCommand(
		reportListCmd(),
		reportGetCmd(),
		reportCreateCmd(),
		reportEnableCmd(),
		reportDisableCmd(),
		reportTriggerCmd(),
		reportHistoryCmd(),
		reportBindingCmd(),
	)

	return reportsRoot
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all reports",
		Example: `  rpd reports list
  rpd reports list --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			reports, err := c.ListReports(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(reports)
			}
			if len(reports) == 0 {
				fmt.Println("No reports found.")
				return nil
			}
			return printReportTable(reports)
		},
	}
}

func reportGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Short:   "Show report details",
		Example: `  rpd reports get abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			r, err := c.GetReport(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(r)
			}
			return printReportDetail(r)
		},
	}
}

func reportCreateCmd() *cobra.Command {
	var (
		reportName       string
		reportFrequency  string
		reportFormat     string
		reportRecipients []string
		reportTime       string
		reportDayOfWeek  int
		reportDayOfMonth int
		reportTimezone   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new scheduled report",
		Long: "Create a new scheduled report. The report is enabled for automatic\n" +
			"delivery immediately and a cron binding is derived from its frequency\n" +
			"and schedule preferences.",
		Example: `  # A daily report delivered at 09:30 UTC
  rpd reports create --name "Daily Sales" --frequency daily --at 09:30 \
    --recipient ops@example.com

  # A weekly report delivered Mondays
  rpd reports create --name "Weekly Revenue" --frequency weekly --day-of-week 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reportName == "" || reportFrequency == "" {
				return fmt.Errorf("--name and --frequency are required")
			}

			schedule := domain.ScheduleConfig{
				TimeOfDay: reportTime,
				Timezone:  reportTimezone,
			}
			if cmd.Flags().Changed("day-of-week") {
				schedule.DayOfWeek = &reportDayOfWeek
			}
			if cmd.Flags().Changed("day-of-month") {
				schedule.DayOfMonth = &reportDayOfMonth
			}

			r := &domain.ScheduledReport{
				Name:           reportName,
				Frequency:      domain.ReportFrequency(reportFrequency),
				DeliveryFormat: reportFormat,
				Recipients:     reportRecipients,
				IsScheduled:    true,
				Schedule:       schedule,
			}
			c := newClient()
			created, err := c.CreateReport(context.Background(), r)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Report created: %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportName, "name", "", "report name")
	cmd.Flags().
		StringVar(&reportFrequency, "frequency", "", "delivery frequency (realtime, hourly, daily, weekly, monthly, on_demand)")
	cmd.Flags().StringVar(&reportFormat, "format", "pdf", "delivery format (pdf, csv, html)")
	cmd.Flags().StringArrayVar(&reportRecipients, "recipient", nil, "delivery recipients")
	cmd.Flags().StringVar(&reportTime, "at", "", "delivery time of day (HH:MM, 24-hour)")
	cmd.Flags().IntVar(&reportDayOfWeek, "day-of-week", 1, "delivery day of week (0=Sunday)")
	cmd.Flags().IntVar(&reportDayOfMonth, "day-of-month", 1, "delivery day of month (1-28)")
	cmd.Flags().StringVar(&reportTimezone, "timezone", "", "IANA timezone (default UTC)")

	return cmd
}

func reportEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "enable <id>",
		Short:   "Enable automatic delivery",
		Example: `  rpd reports enable abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReportSetScheduled(args[0], true)
		},
	}
}

func reportDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "disable <id>",
		Short:   "Disable automatic delivery",
		Example: `  rpd reports disable abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runReportSetScheduled(args[0], false)
		},
	}
}

func runReportSetScheduled(id string, scheduled bool) error {
	c := newClient()
	if err := c.SetReportScheduled(context.Background(), id, scheduled); err != nil {
		return err
	}

	action := "enabled"
	if !scheduled {
		action = "disabled"
	}
	fmt.Printf("Report %s %s.\n", id, action)
	return nil
}

func reportTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "trigger <id>",
		Short:   "Deliver a report immediately",
		Example: `  rpd reports trigger abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			attempt, err := c.TriggerReport(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(attempt)
			}
			fmt.Printf("Delivery %s: %s\n", attempt.ID, attempt.Status)
			return nil
		},
	}
}

func reportHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history <id>",
		Short:   "Show delivery history",
		Example: `  rpd reports history abc123 --limit 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			attempts, err := c.GetReportHistory(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(attempts)
			}
			if len(attempts) == 0 {
				fmt.Println("No delivery history.")
				return nil
			}
			return printAttemptTable(attempts)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to return")

	return cmd
}

func reportBindingCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "binding <id>",
		Short:   "Show a report's cron binding",
		Example: `  rpd reports binding abc123`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c := newClient()
			b, err := c.GetReportBinding(context.Background(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(b)
			}
			return printBindingDetail(b)
		},
	}
}

func joinRecipients(recipients []string) string {
	if len(recipients) == 0 {
		return "-"
	}
	return strings.Join(recipients, ",")
}
