package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	"github.com/PolarWolf314/pkgseal/internal/isolated"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/ui"
	"github.com/PolarWolf314/pkgseal/internal/utils"
	"github.com/PolarWolf314/pkgseal/internal/workflows"

	"github.com/spf13/cobra"
)

const (
	passMarkerSuffix = ".pass"
	failMarkerSuffix = ".fail"
)

var (
	decryptConfig        string
	decryptCertificate   string
	decryptPassword      string
	decryptStoreLocation string
	decryptStoreName     string
	decryptOverride      string
	decryptIsolate       bool
	decryptSilent        bool
)

func init() {
	addLoggingFlags(DecryptCmd)
	DecryptCmd.Flags().StringVarP(&decryptConfig, "config", "c", configs.DefaultConfigurationFile, "encryption configuration to process")
	DecryptCmd.Flags().StringVar(&decryptCertificate, "certificate", "", "certificate container (PKCS #12 or PEM) holding the private key")
	DecryptCmd.Flags().StringVar(&decryptPassword, "password", "", "password of the certificate container")
	addStoreFlags(DecryptCmd.Flags(), &decryptStoreLocation, &decryptStoreName, "", "", "to search")
	DecryptCmd.Flags().StringVar(&decryptOverride, "override", "", "certificate override document to use instead of searching for "+certificates.OverrideFileName)
	DecryptCmd.Flags().BoolVar(&decryptIsolate, "isolate", false, "parse carrier assemblies in a separate process")
	DecryptCmd.Flags().BoolVarP(&decryptSilent, "silent", "s", false, "do not wait for Enter before exiting")

	DecryptCmd.AddCommand(decryptExampleCmd)
}

// resetDecryptCommandState resets the decrypt command's global state for testing.
func resetDecryptCommandState() {
	decryptConfig = configs.DefaultConfigurationFile
	decryptCertificate = ""
	decryptPassword = ""
	decryptStoreLocation = ""
	decryptStoreName = ""
	decryptOverride = ""
	decryptIsolate = false
	decryptSilent = false
}

var DecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Restores the encrypted files of an installed package",
	Long: `Reads an encryption configuration, finds the certificate it was sealed with,
and replaces every encrypted file with its verified plaintext. The ciphertext
is kept next to each file with an .encrypted extension.

The certificate is taken from, in order:
  --certificate                  a PKCS #12 or PEM file
  --store-location/--store-name  a certificate store, searched by thumbprint
  NuGet.Encryption.config        an override document (--override, or the
                                 nearest one above the configuration)
  CurrentUser/My                 the personal store

A transcript of the run is written next to the configuration with a .pass or
.fail extension.

Examples:
  pkgseal decrypt
  pkgseal decrypt -c tools/encryption.config --silent
  pkgseal decrypt --certificate signing.pfx --password secret
  pkgseal decrypt example > NuGet.Encryption.config`,
	SilenceUsage: true,
	RunE:         runDecrypt,
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	// Usage errors are printed by cobra, everything later by the command.
	cmd.SilenceErrors = true
	out := cmd.OutOrStdout()
	transcript := &logger.Transcript{}
	log := logger.Logger{
		Verbose: verbose,
		Debug:   debug,
		Out:     out,
		ErrOut:  cmd.ErrOrStderr(),
		Sink:    transcript,
	}

	if !decryptSilent {
		printBanner(out)
		defer pauseAtEnd(out)
	}

	var unpacker isolated.Unpacker = isolated.InProcess{}
	if decryptIsolate {
		unpacker = isolated.Subprocess{}
	}

	opts := workflows.DecryptOptions{
		ConfigPath:          decryptConfig,
		CertificateFile:     decryptCertificate,
		CertificatePassword: decryptPassword,
		StoreLocation:       decryptStoreLocation,
		StoreName:           decryptStoreName,
		OverridePath:        decryptOverride,
		Unpacker:            unpacker,
		Logger:              log,
	}

	log.Printf("Decrypting package files listed in %s", ui.Path.Sprint(decryptConfig))
	result, err := workflows.Decrypt(cmd.Context(), opts)
	if err != nil {
		log.Errorf("%s", formatError(err))
		writeMarker(log, transcript, decryptConfig, failMarkerSuffix, passMarkerSuffix)
		return err
	}

	printDecryptSummary(log, result)
	writeMarker(log, transcript, decryptConfig, passMarkerSuffix, failMarkerSuffix)
	return nil
}

func printDecryptSummary(log logger.Logger, result *workflows.DecryptResult) {
	if result.PackageID != "" {
		log.Printf("Package %s", ui.Highlight.Sprint(result.PackageID))
	}
	if result.CertificateSource != "" {
		log.Printf("Certificate %s from %s", ui.Highlight.Sprint(result.Thumbprint), result.CertificateSource)
	}

	if len(result.Decrypted) > 0 {
		log.Printf("%s", ui.Succeeded(fmt.Sprintf("Decrypted %d file(s):%s", len(result.Decrypted), utils.FormatPaths(filepath.Dir(result.ConfigPath), result.Decrypted))))
	}
	if len(result.AlreadyDecrypted) > 0 {
		log.Printf("%s", ui.Noted(fmt.Sprintf("%d file(s) were already decrypted", len(result.AlreadyDecrypted))))
	}
	if len(result.Failed) > 0 {
		log.Printf("%s", ui.Warned(fmt.Sprintf("%d file(s) could not be decrypted; see the warnings above", len(result.Failed))))
	}
	if len(result.Decrypted)+len(result.AlreadyDecrypted)+len(result.Failed) == 0 {
		log.Printf("%s", ui.Noted("Nothing to decrypt"))
	}
}

// writeMarker flushes the transcript to config+suffix and removes a marker
// left by an earlier run with the opposite outcome.
func writeMarker(log logger.Logger, transcript *logger.Transcript, config, suffix, stale string) {
	if err := os.Remove(config + stale); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Could not remove %s: %v", config+stale, err)
	}
	if err := transcript.Flush(config + suffix); err != nil {
		log.Warnf("%v", err)
	}
}

var decryptExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Prints an example " + certificates.OverrideFileName,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), certificates.OverrideExample)
		return err
	},
}
