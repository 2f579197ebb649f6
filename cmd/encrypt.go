package cmd

import (
	"fmt"

	"github.com/PolarWolf314/pkgseal/internal/configs"
	"github.com/PolarWolf314/pkgseal/internal/ui"
	"github.com/PolarWolf314/pkgseal/internal/utils"
	"github.com/PolarWolf314/pkgseal/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	encryptManifest string
	encryptPassword string
	encryptDryRun   bool
)

func init() {
	addLoggingFlags(EncryptCmd)
	EncryptCmd.Flags().StringVarP(&encryptManifest, "manifest", "m", configs.DefaultManifestFile, "build manifest describing the package")
	EncryptCmd.Flags().StringVar(&encryptPassword, "password", "", "password of the certificate container (overrides the manifest)")
	EncryptCmd.Flags().BoolVar(&encryptDryRun, "dry-run", false, "list the files that would be encrypted")
}

// resetEncryptCommandState resets the encrypt command's global state for testing.
func resetEncryptCommandState() {
	encryptManifest = configs.DefaultManifestFile
	encryptPassword = ""
	encryptDryRun = false
}

var EncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypts the package files named by a build manifest",
	Long: `Runs an encryption session over the files of a build manifest. Encrypted
files, the encryption configuration and a copy of the decrypt tool are staged
under <output>/__encrypted, laid out as they will appear in the package.

Examples:
  pkgseal encrypt
  pkgseal encrypt -m build/pkgseal.toml
  pkgseal encrypt --dry-run`,
	SilenceUsage: true,
	RunE:         runEncrypt,
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	// Usage errors are printed by cobra, everything later by the command.
	cmd.SilenceErrors = true
	Logger.Infof("Starting encrypt command")
	out := cmd.OutOrStdout()

	spinner, cleanup := startSpinner(out, "Encrypting package files...")
	defer cleanup()

	result, err := workflows.Encrypt(cmd.Context(), workflows.EncryptOptions{
		ManifestPath:        encryptManifest,
		CertificatePassword: encryptPassword,
		DryRun:              encryptDryRun,
		Logger:              Logger,
	})
	if err != nil {
		spinner.FinalMSG = formatError(err)
		return err
	}

	if result.DryRun {
		destinations := make([]string, len(result.Planned))
		for i, p := range result.Planned {
			destinations[i] = p.Destination
		}
		spinner.FinalMSG = ui.Noted(fmt.Sprintf("%d file(s) of %s would be encrypted into %s:", len(result.Planned), ui.Highlight.Sprint(result.PackageID), ui.Path.Sprint(result.StagingDir))) +
			utils.FormatPaths("", destinations)
		return nil
	}

	origins := make([]string, len(result.Files))
	for i, f := range result.Files {
		origins[i] = fmt.Sprintf("%s %s", f.Origin, ui.Muted.Sprint(string(f.Type)))
	}
	spinner.FinalMSG = ui.Succeeded(fmt.Sprintf("Encrypted %d file(s) of %s with certificate %s:", len(result.Files), ui.Highlight.Sprint(result.PackageID), ui.Highlight.Sprint(result.Thumbprint))) +
		utils.FormatPaths("", origins) +
		ui.Hint("Staged in "+ui.Path.Sprint(result.StagingDir)) + "\n" +
		ui.Hint("Ship "+ui.Path.Sprint(result.ConfigurationPath)+" and "+ui.Path.Sprint(result.Decryptor)+" with the package")
	return nil
}
