package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/ui"
	"github.com/PolarWolf314/pkgseal/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	createCommonName    string
	createOutput        string
	createPassword      string
	createValidDays     int
	createKeySize       int
	createForce         bool
	createImport        bool
	createStoreLocation string
	createStoreName     string
)

func init() {
	addLoggingFlags(CertificateCmd)

	f := certificateCreateCmd.Flags()
	f.StringVar(&createCommonName, "name", "", "common name of the certificate subject")
	f.StringVarP(&createOutput, "output", "o", "", "file to write (.pfx/.p12 for PKCS #12, .pem for a PEM bundle)")
	f.StringVar(&createPassword, "password", "", "password of the PKCS #12 container (prompted on a terminal when empty)")
	f.IntVar(&createValidDays, "days", 3650, "validity period in days")
	f.IntVar(&createKeySize, "key-size", certificates.DefaultKeySize, "RSA key size in bits")
	f.BoolVarP(&createForce, "force", "f", false, "overwrite an existing output file")
	f.BoolVar(&createImport, "import", false, "also add the certificate to a store")
	addStoreFlags(f, &createStoreLocation, &createStoreName, string(certificates.CurrentUser), certificates.DefaultStoreName, "used with --import")
	_ = certificateCreateCmd.MarkFlagRequired("name")
	_ = certificateCreateCmd.MarkFlagRequired("output")

	CertificateCmd.AddCommand(certificateCreateCmd)
}

// resetCertificateCommandState resets the certificate command's global state for testing.
func resetCertificateCommandState() {
	createCommonName = ""
	createOutput = ""
	createPassword = ""
	createValidDays = 3650
	createKeySize = certificates.DefaultKeySize
	createForce = false
	createImport = false
	createStoreLocation = string(certificates.CurrentUser)
	createStoreName = certificates.DefaultStoreName
}

var CertificateCmd = &cobra.Command{
	Use:   "certificate",
	Short: "Manages encryption certificates",
}

var certificateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a self-signed encryption certificate",
	Long: `Generates an RSA key pair and a self-signed certificate usable for wrapping
package session keys, and writes both to a PKCS #12 container or PEM bundle.

Examples:
  pkgseal certificate create --name "Build Signing" -o signing.pfx
  pkgseal certificate create --name "Build Signing" -o signing.pfx --import`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runCertificateCreate,
}

func runCertificateCreate(cmd *cobra.Command, args []string) error {
	// Usage errors are printed by cobra, everything later by the command.
	cmd.SilenceErrors = true
	Logger.Infof("Starting certificate create command")
	out := cmd.OutOrStdout()

	password, err := readPassword(createPassword, !isPEM(createOutput), "Container password")
	if err != nil {
		return err
	}

	spinner, cleanup := startSpinner(out, "Generating certificate...")
	defer cleanup()

	result, err := workflows.CreateCertificate(cmd.Context(), workflows.CreateCertificateOptions{
		CommonName:    createCommonName,
		ValidFor:      time.Duration(createValidDays) * 24 * time.Hour,
		KeySize:       createKeySize,
		Output:        createOutput,
		Password:      password,
		Force:         createForce,
		Import:        createImport,
		StoreLocation: createStoreLocation,
		StoreName:     createStoreName,
	})
	if err != nil {
		spinner.FinalMSG = formatError(err)
		return err
	}

	msg := ui.Succeeded("Created certificate "+ui.Highlight.Sprint(result.Subject)) + "\n" +
		fmt.Sprintf("    Thumbprint: %s\n    Expires:    %s\n    File:       %s",
			result.Thumbprint, result.NotAfter.Format(time.DateOnly), ui.Path.Sprint(result.Output))
	if result.Store != nil {
		msg += "\n" + ui.Hint(fmt.Sprintf("Imported into %s/%s", result.Store.Location, result.Store.Store))
	}
	spinner.FinalMSG = msg
	return nil
}

func isPEM(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pem")
}
