package cli

import (
	"github.com/spf13/cobra"

	"github.com/nethoundsh/submit/internal/runner"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the files that would be submitted",
	Long: `Walks --dir with the built-in deny list and prints every file that
would go into submit.zip. Nothing is packed or uploaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		exitCode = runner.RunList(appConfig(cmd))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
	listCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also show excluded files and the pattern that matched")
	rootCmd.AddCommand(listCmd)
}
