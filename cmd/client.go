package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelsec/graphaudit/internal/apiclient"
	"github.com/kestrelsec/graphaudit/internal/renderer"
)

// scanHeaders is the raw headers value forwarded to the server, shared by
// all client commands.
var scanHeaders string

func newAPIClient() *apiclient.Client {
	return apiclient.New(
		viper.GetString("client.server_url"),
		viper.GetString("server.api_key"),
	)
}

func newRenderer(cmd *cobra.Command) *renderer.Renderer {
	return renderer.New(cmd.OutOrStdout(), viper.GetBool("client.no_color"))
}
