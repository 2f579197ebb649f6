package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/audit"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/ui"
	"github.com/PolarWolf314/pkgseal/internal/utils"
	"github.com/PolarWolf314/pkgseal/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	storeLocation string
	storeName     string
	storePassword string

	logLimit     int
	logReverse   bool
	logOperation string
	logThumb     string
	logSince     string
	logUntil     string
	logJSON      bool
)

func init() {
	addLoggingFlags(StoreCmd)
	StoreCmd.PersistentFlags().StringVar(&storeLocation, "location", string(certificates.CurrentUser), "store location (CurrentUser or LocalMachine)")
	StoreCmd.PersistentFlags().StringVar(&storeName, "name", certificates.DefaultStoreName, "store name")

	storeImportCmd.Flags().StringVar(&storePassword, "password", "", "password of the certificate container (prompted on a terminal when empty)")

	storeLogCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	storeLogCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	storeLogCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	storeLogCmd.Flags().StringVar(&logThumb, "thumbprint", "", "filter by certificate thumbprint")
	storeLogCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	storeLogCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	storeLogCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")

	StoreCmd.AddCommand(storeImportCmd)
	StoreCmd.AddCommand(storeListCmd)
	StoreCmd.AddCommand(storeRemoveCmd)
	StoreCmd.AddCommand(storeLogCmd)
}

// resetStoreCommandState resets the store commands' global state for testing.
func resetStoreCommandState() {
	storeLocation = string(certificates.CurrentUser)
	storeName = certificates.DefaultStoreName
	storePassword = ""
	logLimit = 0
	logReverse = false
	logOperation = ""
	logThumb = ""
	logSince = ""
	logUntil = ""
	logJSON = false
}

var StoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Manages keyring-backed certificate stores",
	Long: `Certificate stores hold encryption certificates and their private keys.
CurrentUser stores use the operating system keychain when one is available
and fall back to an encrypted file; LocalMachine stores are always
file-backed. Set PKGSEAL_STORE_DIR to keep every store in files under one
directory.`,
}

var storeImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Adds a certificate container to a store",
	Long: `Adds the certificate and private key of a PKCS #12 container or PEM bundle
to a store. Use - to read the container from stdin.

Examples:
  pkgseal store import signing.pfx
  pkgseal store import signing.pfx --location LocalMachine --name Packages
  cat signing.pem | pkgseal store import -`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		Logger.Infof("Starting store import command")
		opts := workflows.ImportCertificateOptions{
			File:          args[0],
			StoreLocation: storeLocation,
			StoreName:     storeName,
		}
		if args[0] == "-" {
			data, err := utils.ReadPiped(os.Stdin)
			if err != nil {
				return err
			}
			opts.Data = data
		}

		password, err := readPassword(storePassword, opts.Data == nil && !isPEM(args[0]), "Container password")
		if err != nil {
			return err
		}
		opts.Password = password

		spinner, cleanup := startSpinner(cmd.OutOrStdout(), "Importing certificate...")
		defer cleanup()

		result, err := workflows.ImportCertificate(cmd.Context(), opts)
		if err != nil {
			spinner.FinalMSG = formatError(err)
			return err
		}

		msg := ui.Succeeded(fmt.Sprintf("Imported %s (%s) into %s/%s",
			ui.Highlight.Sprint(result.Subject), result.Thumbprint, result.Location, result.Store))
		if !result.HasPrivateKey {
			msg += "\n" + ui.Warned("The container has no private key; it cannot decrypt packages")
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var storeListCmd = &cobra.Command{
	Use:          "list",
	Short:        "Lists the certificates of a store",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		out := cmd.OutOrStdout()
		result, err := workflows.ListCertificates(cmd.Context(), workflows.StoreOptions{
			StoreLocation: storeLocation,
			StoreName:     storeName,
		})
		if err != nil {
			fmt.Fprintln(out, formatError(err))
			return err
		}

		if len(result.Certificates) == 0 {
			fmt.Fprintf(out, "No certificates in %s/%s.\n", result.Location, result.Store)
			return nil
		}
		fmt.Fprintf(out, "%s/%s\n", result.Location, result.Store)
		for _, c := range result.Certificates {
			key := ui.Muted.Sprint("no private key")
			if c.HasPrivateKey {
				key = ui.Success.Sprint("private key")
			}
			fmt.Fprintf(out, "  %s  %-30s  expires %s  %s\n", c.Thumbprint, c.Subject, c.NotAfter.Format(time.DateOnly), key)
		}
		return nil
	},
}

var storeRemoveCmd = &cobra.Command{
	Use:          "remove <thumbprint>",
	Short:        "Removes a certificate from a store",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		out := cmd.OutOrStdout()
		err := workflows.RemoveCertificate(cmd.Context(), workflows.RemoveCertificateOptions{
			StoreOptions: workflows.StoreOptions{StoreLocation: storeLocation, StoreName: storeName},
			Thumbprint:   args[0],
		})
		if err != nil {
			fmt.Fprintln(out, formatError(err))
			return err
		}
		fmt.Fprintln(out, ui.Succeeded("Removed "+args[0]))
		return nil
	},
}

var storeLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Shows the audit log of a store location",
	Long: `Displays who imported, removed or used certificates of a store location,
and when.

Examples:
  pkgseal store log
  pkgseal store log -n 10 --reverse
  pkgseal store log --operation import,remove --since 2026-01-01
  pkgseal store log --location LocalMachine --json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		out := cmd.OutOrStdout()
		result, err := workflows.Log(cmd.Context(), workflows.LogOptions{
			Location:   storeLocation,
			Limit:      logLimit,
			Reverse:    logReverse,
			Operations: logOperation,
			Thumbprint: logThumb,
			Since:      logSince,
			Until:      logUntil,
		})
		if err != nil {
			fmt.Fprintln(out, formatError(err))
			return err
		}
		Logger.Debugf("Read %d entries from %s, %d after filtering", result.Total, result.Path, len(result.Entries))

		if len(result.Entries) == 0 {
			if result.Total == 0 {
				fmt.Fprintln(out, "No audit log entries found.")
			} else {
				fmt.Fprintln(out, "No audit log entries found matching the filters.")
			}
			return nil
		}

		if logJSON {
			return outputLogJSON(out, result.Entries)
		}
		for _, e := range result.Entries {
			fmt.Fprintf(out, "%-16s  %-15s  %-8s  %s\n", workflows.FormatDate(e.Timestamp), e.User, e.Operation, logDetails(e))
		}
		return nil
	},
}

func outputLogJSON(out io.Writer, entries []audit.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries to JSON: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func logDetails(e audit.Entry) string {
	details := e.Thumbprint
	if e.Store != "" {
		details += " in " + e.Location + "/" + e.Store
	}
	if e.PackageID != "" {
		details += fmt.Sprintf(" for %s (%d files)", e.PackageID, len(e.Files))
	}
	return details
}
