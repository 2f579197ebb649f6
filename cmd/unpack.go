package cmd

import (
	"os"

	"github.com/PolarWolf314/pkgseal/internal/isolated"

	"github.com/spf13/cobra"
)

// UnpackCmd is the helper run by decrypt --isolate. It writes the payload of
// a carrier image to stdout and reports failures through its exit code.
var UnpackCmd = &cobra.Command{
	Use:    "unpack <carrier>",
	Short:  "Writes the payload of a carrier assembly to stdout",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if code := isolated.RunHelper(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0]); code != isolated.ExitOK {
			os.Exit(code)
		}
	},
}
