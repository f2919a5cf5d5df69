package cli

import (
	"github.com/spf13/cobra"

	"github.com/nethoundsh/submit/internal/runner"
	"github.com/nethoundsh/submit/pkg/archive"
)

var packOut string

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Build submit.zip without uploading it",
	Long: `Builds the same archive a submission would send and writes it to
--out, then prints its size and checksums.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		exitCode = runner.RunPack(appConfig(cmd), packOut)
		return nil
	},
}

func init() {
	packCmd.Flags().StringVar(&packOut, "out", archive.FileName, "where to write the archive")
	packCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
	rootCmd.AddCommand(packCmd)
}
