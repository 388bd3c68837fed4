package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harun/ikigai/internal/daemon"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ikigai version %s (%s %s/%s)\n",
			daemon.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
