package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrelsec/graphaudit/internal/apiclient"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <target>",
	Short: "Run the full analysis pipeline in a single call",
	Long: `Run introspection, engine fingerprinting, the audit check set and
schema mapping in one server-side pass, and persist the report. Prints every
section, or the raw combined JSON with --json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := strings.TrimSpace(args[0])
		if target == "" {
			return errors.New("target is required")
		}

		client := newAPIClient()
		out := newRenderer(cmd)

		result, err := client.Analyze(cmd.Context(), apiclient.ScanRequest{
			Target:  target,
			Headers: scanHeaders,
		})
		if err != nil {
			return err
		}

		if rawJSON, _ := cmd.Flags().GetBool("json"); rawJSON {
			return out.JSON(result)
		}

		out.Findings(result.Audit)
		out.Engine(result.Engine)
		out.Objects(result.Schema)
		out.Graph(result.Schema)

		if result.ReportID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved: %s\n", result.ReportID)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&scanHeaders, "headers", "H", "", "extra request headers as a JSON object")
	analyzeCmd.Flags().Bool("json", false, "print the combined analysis result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
