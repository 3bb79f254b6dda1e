package cmd

import (
	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports [report-id]",
	Short: "List stored analysis reports, or show one in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()
		out := newRenderer(cmd)

		if len(args) == 1 {
			report, err := client.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rawJSON, _ := cmd.Flags().GetBool("json"); rawJSON {
				return out.JSON(report)
			}
			out.Findings(report.Audit)
			out.Engine(report.Engine)
			out.Objects(report.Schema)
			return nil
		}

		summaries, err := client.ListReports(cmd.Context())
		if err != nil {
			return err
		}
		out.Reports(summaries)
		return nil
	},
}

func init() {
	reportsCmd.Flags().Bool("json", false, "print the full report as JSON")
	rootCmd.AddCommand(reportsCmd)
}
