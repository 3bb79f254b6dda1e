package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrelsec/graphaudit/internal/apiclient"
)

var (
	queryString   string
	queryVars     string
	queryOpName   string
	queryFromFile string
)

var queryCmd = &cobra.Command{
	Use:   "query <target>",
	Short: "Execute an arbitrary GraphQL operation against a target",
	Long: `Execute a GraphQL operation through the server's query endpoint and
print the decoded response verbatim as pretty JSON. The query comes from
--query, --file, or stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := strings.TrimSpace(args[0])
		query := strings.TrimSpace(queryString)

		if query == "" && queryFromFile != "" {
			data, err := os.ReadFile(queryFromFile)
			if err != nil {
				return fmt.Errorf("read query file: %w", err)
			}
			query = strings.TrimSpace(string(data))
		}
		if query == "" {
			stat, err := os.Stdin.Stat()
			if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read query from stdin: %w", err)
				}
				query = strings.TrimSpace(string(data))
			}
		}

		if target == "" || query == "" {
			return errors.New("target and query are required")
		}

		var variables interface{}
		if trimmed := strings.TrimSpace(queryVars); trimmed != "" {
			var decoded map[string]interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return fmt.Errorf("invalid variables JSON: %w", err)
			}
			variables = decoded
		}

		result, err := newAPIClient().Query(cmd.Context(), apiclient.QueryRequest{
			Target:        target,
			Headers:       scanHeaders,
			Query:         query,
			Variables:     variables,
			OperationName: strings.TrimSpace(queryOpName),
		})
		if err != nil {
			return err
		}

		return newRenderer(cmd).JSON(result)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&scanHeaders, "headers", "H", "", "extra request headers as a JSON object")
	queryCmd.Flags().StringVarP(&queryString, "query", "q", "", "GraphQL operation to execute")
	queryCmd.Flags().StringVarP(&queryFromFile, "file", "f", "", "file containing the GraphQL operation")
	queryCmd.Flags().StringVar(&queryVars, "variables", "", "operation variables as a JSON object")
	queryCmd.Flags().StringVar(&queryOpName, "operation-name", "", "operation name when the document defines several")
	rootCmd.AddCommand(queryCmd)
}
