package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
)

func TestCertificateCreateCommand(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	setupTestEnvironment(t)
	dir := t.TempDir()

	t.Run("PKCS12", func(t *testing.T) {
		ResetGlobalState()
		output := filepath.Join(dir, "signing.pfx")
		out, err := runCLI(t, "certificate", "create", "--name", "Build Signing", "-o", output, "--password", "pw", "--key-size", "1024")
		if err != nil {
			t.Fatalf("certificate create failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Created certificate") {
			t.Errorf("Expected a creation summary, got: %s", out)
		}
		cert, err := certificates.LoadContainer(output, "pw")
		if err != nil {
			t.Fatalf("LoadContainer failed: %v", err)
		}
		if !cert.HasPrivateKey() || !strings.Contains(out, cert.Thumbprint()) {
			t.Errorf("Expected the container to hold the printed certificate and its key")
		}

		ResetGlobalState()
		if out, err := runCLI(t, "certificate", "create", "--name", "Again", "-o", output, "--password", "pw", "--key-size", "1024"); err == nil {
			t.Errorf("Expected an existing output to be refused, got: %s", out)
		}
	})

	t.Run("PEMWithImport", func(t *testing.T) {
		ResetGlobalState()
		output := filepath.Join(dir, "signing.pem")
		out, err := runCLI(t, "certificate", "create", "--name", "Build Signing", "-o", output, "--key-size", "1024", "--import")
		if err != nil {
			t.Fatalf("certificate create failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Imported into CurrentUser/My") {
			t.Errorf("Expected the import to be reported, got: %s", out)
		}
		if _, err := os.Stat(output); err != nil {
			t.Errorf("Expected the PEM bundle to be written: %v", err)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		ResetGlobalState()
		out, err := runCLI(t, "certificate", "create", "--name", "", "-o", filepath.Join(dir, "x.pfx"), "--password", "pw")
		if err == nil {
			t.Fatalf("Expected an error without a common name, got: %s", out)
		}
		if _, err := os.Stat(filepath.Join(dir, "x.pfx")); !os.IsNotExist(err) {
			t.Error("Expected no container to be written")
		}
	})
}
