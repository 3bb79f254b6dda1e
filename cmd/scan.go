package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrelsec/graphaudit/internal/apiclient"
	"github.com/kestrelsec/graphaudit/pkg/schema"
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Run the audit, fingerprint and introspection scans against a target",
	Long: `Run the three scan tools against a target endpoint, the same way the
dashboard's Run All Scans button does: the security audit first, then the
engine fingerprint, then introspection. Each tool renders or fails on its
own; one failing tool never hides the results of the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := strings.TrimSpace(args[0])
		if target == "" {
			return errors.New("target is required")
		}

		client := newAPIClient()
		out := newRenderer(cmd)
		req := apiclient.ScanRequest{Target: target, Headers: scanHeaders}
		failures := 0

		findings, err := client.RunCop(cmd.Context(), req)
		if err != nil {
			out.Error("Security Findings", err)
			failures++
		} else {
			out.Findings(findings)
		}

		w00f, err := client.RunGraphw00f(cmd.Context(), req)
		if err != nil {
			out.Error("Engine Fingerprint", err)
			failures++
		} else {
			out.Banner(w00f.Output)
			out.Engine(w00f.Engine)
		}

		introspection, err := client.Introspect(cmd.Context(), req)
		if err != nil {
			out.Error("Schema Objects", err)
			failures++
		} else if rawJSON, _ := cmd.Flags().GetBool("json"); rawJSON {
			if err := out.JSON(introspection); err != nil {
				return err
			}
		} else {
			out.Objects(schema.Build(introspection))
		}

		if failures == 3 {
			return errors.New("all scans failed")
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanHeaders, "headers", "H", "", "extra request headers as a JSON object")
	scanCmd.Flags().Bool("json", false, "print the raw introspection document instead of the object summary")
	rootCmd.AddCommand(scanCmd)
}
