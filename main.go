package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/pkgseal/cmd"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pkgseal",
	Short: "pkgseal - Encrypts package files for certificate holders.",
	Long: `pkgseal encrypts the files of a package so that only holders of a chosen
certificate's private key can restore them after installation.

Features:
  - Encrypt package files under a per-package session key
  - Keep assemblies loadable by embedding their ciphertext in a carrier
  - Restore files on the target machine from a certificate file or store
  - Manage certificate stores and their audit log

Usage:
  pkgseal <command> [flags]

Available Commands:
  encrypt      Encrypt the files listed in a pkgseal.toml manifest
  decrypt      Restore the files listed in an encryption configuration
  certificate  Create encryption certificates
  store        Import, list and remove stored certificates

Run 'pkgseal help <command>' for more details on a specific command.
`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to pkgseal! Run 'pkgseal --help' to see available commands.")
	},
}

func init() {
	rootCmd.AddCommand(cmd.Commands()...)
}

func main() {
	// Commands report their own errors.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
