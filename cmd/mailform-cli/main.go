// mailform-cli pushes templates and assets to a mailform server and
// fires test sends, using the same REST surface as any other client.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "mailform-cli",
	Short: "Manage mailform templates, forms, and assets",
	Long: `mailform-cli talks to a running mailform server.

Example:
  mailform-cli push template welcome.liquid --name welcome --domain example.com
  mailform-cli push asset logo.png header.png --domain example.com
  mailform-cli send welcome --to you@example.com --vars '{"name":"Ada"}'`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		if apiToken == "" {
			apiToken = os.Getenv("MAILFORM_TOKEN")
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "mailform server base URL")
	rootCmd.PersistentFlags().StringVarP(&apiToken, "token", "t", "", "bearer token (or MAILFORM_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(sendCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
