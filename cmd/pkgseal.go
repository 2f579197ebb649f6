package cmd

import (
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger
)

// addLoggingFlags registers the --verbose and --debug flags on a command
// group and builds the shared Logger before any of its commands run.
func addLoggingFlags(group *cobra.Command) {
	group.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	group.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	group.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		Logger = logger.Logger{
			Verbose: verbose,
			Debug:   debug,
			Out:     cmd.OutOrStdout(),
			ErrOut:  cmd.ErrOrStderr(),
		}
		Logger.Debugf("Initializing %s command with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
	}
}

// Commands returns every top-level command for the root command to mount.
func Commands() []*cobra.Command {
	return []*cobra.Command{EncryptCmd, DecryptCmd, CertificateCmd, StoreCmd, UnpackCmd}
}

// Helper functions for testing

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetEncryptCommandState()
	resetDecryptCommandState()
	resetCertificateCommandState()
	resetStoreCommandState()
	for _, c := range Commands() {
		resetErrorReporting(c)
	}
}

// resetErrorReporting undoes the SilenceErrors set by commands that ran.
func resetErrorReporting(c *cobra.Command) {
	c.SilenceErrors = false
	for _, sub := range c.Commands() {
		resetErrorReporting(sub)
	}
}
