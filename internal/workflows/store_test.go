package workflows

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/pkgseal/internal/audit"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

func TestCreateCertificate(t *testing.T) {
	useTempStores(t)
	dir := t.TempDir()

	t.Run("PKCS12", func(t *testing.T) {
		output := filepath.Join(dir, "signing.pfx")
		result, err := CreateCertificate(context.Background(), CreateCertificateOptions{
			CommonName: "Build Signing",
			Output:     output,
			Password:   "pw",
			KeySize:    1024,
		})
		if err != nil {
			t.Fatalf("CreateCertificate failed: %v", err)
		}

		cert, err := certificates.LoadContainer(output, "pw")
		if err != nil {
			t.Fatalf("LoadContainer failed: %v", err)
		}
		if cert.Thumbprint() != result.Thumbprint || !cert.HasPrivateKey() {
			t.Errorf("Expected the written container to hold the new certificate and its key")
		}

		_, err = CreateCertificate(context.Background(), CreateCertificateOptions{CommonName: "Again", Output: output, KeySize: 1024})
		if !errors.Is(err, kerrors.ErrIOFailure) {
			t.Errorf("Expected ErrIOFailure for an existing output, got %v", err)
		}
	})

	t.Run("PEMWithImport", func(t *testing.T) {
		output := filepath.Join(dir, "signing.pem")
		result, err := CreateCertificate(context.Background(), CreateCertificateOptions{
			CommonName: "Build Signing",
			Output:     output,
			KeySize:    1024,
			Import:     true,
		})
		if err != nil {
			t.Fatalf("CreateCertificate failed: %v", err)
		}
		if result.Store == nil || result.Store.Location != certificates.CurrentUser || result.Store.Store != certificates.DefaultStoreName {
			t.Fatalf("Expected the certificate to be imported into CurrentUser/My, got %+v", result.Store)
		}

		cert, err := certificates.LoadContainer(output, "")
		if err != nil {
			t.Fatalf("LoadContainer failed: %v", err)
		}
		if cert.Thumbprint() != result.Thumbprint {
			t.Error("Expected the PEM bundle to hold the new certificate")
		}

		certs, err := certificates.DefaultStoreSearch(result.Thumbprint).Search()
		if err != nil || len(certs) != 1 {
			t.Errorf("Expected the default store to find the certificate, got %d (%v)", len(certs), err)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		if _, err := CreateCertificate(context.Background(), CreateCertificateOptions{Output: filepath.Join(dir, "x.pfx")}); err == nil {
			t.Error("Expected an error without a common name")
		}
	})
}

func TestStoreLifecycle(t *testing.T) {
	useTempStores(t)
	cert, _ := testCertificates(t)
	file := filepath.Join(t.TempDir(), "signing.pfx")
	writeContainer(t, file, cert)

	imported, err := ImportCertificate(context.Background(), ImportCertificateOptions{
		File:      file,
		Password:  certPassword,
		StoreName: "Build",
	})
	if err != nil {
		t.Fatalf("ImportCertificate failed: %v", err)
	}
	if !imported.HasPrivateKey || imported.Thumbprint != cert.Thumbprint() {
		t.Errorf("Unexpected import result %+v", imported)
	}

	listed, err := ListCertificates(context.Background(), StoreOptions{StoreName: "Build"})
	if err != nil {
		t.Fatalf("ListCertificates failed: %v", err)
	}
	if len(listed.Certificates) != 1 || listed.Certificates[0].Thumbprint != cert.Thumbprint() {
		t.Fatalf("Expected the imported certificate to be listed, got %+v", listed.Certificates)
	}

	err = RemoveCertificate(context.Background(), RemoveCertificateOptions{
		StoreOptions: StoreOptions{StoreName: "Build"},
		Thumbprint:   cert.Thumbprint(),
	})
	if err != nil {
		t.Fatalf("RemoveCertificate failed: %v", err)
	}

	err = RemoveCertificate(context.Background(), RemoveCertificateOptions{
		StoreOptions: StoreOptions{StoreName: "Build"},
		Thumbprint:   cert.Thumbprint(),
	})
	if !errors.Is(err, kerrors.ErrCertificateNotFound) {
		t.Errorf("Expected ErrCertificateNotFound, got %v", err)
	}

	listed, err = ListCertificates(context.Background(), StoreOptions{StoreName: "Build"})
	if err != nil {
		t.Fatalf("ListCertificates failed: %v", err)
	}
	if len(listed.Certificates) != 0 {
		t.Errorf("Expected an empty store, got %d certificates", len(listed.Certificates))
	}

	entries, err := audit.ReadEntries(audit.StoreLogPath(false))
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Operation != "import" || entries[1].Operation != "remove" {
		t.Errorf("Expected import and remove audit entries, got %+v", entries)
	}
}

func TestImportCertificateFromData(t *testing.T) {
	useTempStores(t)
	cert, _ := testCertificates(t)
	data, err := cert.EncodePEM()
	if err != nil {
		t.Fatalf("EncodePEM failed: %v", err)
	}

	imported, err := ImportCertificate(context.Background(), ImportCertificateOptions{Data: data, StoreLocation: "LocalMachine"})
	if err != nil {
		t.Fatalf("ImportCertificate failed: %v", err)
	}
	if imported.Location != certificates.LocalMachine || imported.Store != certificates.DefaultStoreName {
		t.Errorf("Expected LocalMachine/My, got %s/%s", imported.Location, imported.Store)
	}

	certs, err := certificates.StoreSearch{
		Location:  certificates.LocalMachine,
		FindType:  certificates.FindByThumbprint,
		FindValue: cert.Thumbprint(),
	}.Search()
	if err != nil || len(certs) != 1 || !certs[0].HasPrivateKey() {
		t.Errorf("Expected the machine store to hold the certificate with its key, got %d (%v)", len(certs), err)
	}
}

func TestImportCertificateErrors(t *testing.T) {
	useTempStores(t)

	_, err := ImportCertificate(context.Background(), ImportCertificateOptions{File: filepath.Join(t.TempDir(), "missing.pfx")})
	if !errors.Is(err, kerrors.ErrCertificateFileNotFound) {
		t.Errorf("Expected ErrCertificateFileNotFound, got %v", err)
	}

	cert, _ := testCertificates(t)
	file := filepath.Join(t.TempDir(), "signing.pfx")
	writeContainer(t, file, cert)
	_, err = ImportCertificate(context.Background(), ImportCertificateOptions{File: file, Password: certPassword, StoreLocation: "Nowhere"})
	if err == nil {
		t.Error("Expected an error for an unknown store location")
	}
}

func TestLog(t *testing.T) {
	useTempStores(t)
	path := audit.StoreLogPath(false)
	for _, entry := range []audit.Entry{
		{Timestamp: "2026-01-01T10:00:00.000000Z", Operation: "import", Thumbprint: "AA"},
		{Timestamp: "2026-01-02T10:00:00.000000Z", Operation: "encrypt", Thumbprint: "AA", PackageID: "P"},
		{Timestamp: "2026-01-03T10:00:00.000000Z", Operation: "remove", Thumbprint: "BB"},
	} {
		audit.Log(path, entry)
	}

	tests := []struct {
		name string
		opts LogOptions
		want []string
	}{
		{"All", LogOptions{}, []string{"import", "encrypt", "remove"}},
		{"Operations", LogOptions{Operations: "import, REMOVE"}, []string{"import", "remove"}},
		{"Thumbprint", LogOptions{Thumbprint: "aa"}, []string{"import", "encrypt"}},
		{"Since", LogOptions{Since: "2026-01-02"}, []string{"encrypt", "remove"}},
		{"Until", LogOptions{Until: "2026-01-02"}, []string{"import", "encrypt"}},
		{"Limit", LogOptions{Limit: 1}, []string{"remove"}},
		{"ReverseLimit", LogOptions{Reverse: true, Limit: 2}, []string{"remove", "encrypt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Log(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Log failed: %v", err)
			}
			if result.Total != 3 {
				t.Errorf("Expected 3 entries before filtering, got %d", result.Total)
			}
			if len(result.Entries) != len(tt.want) {
				t.Fatalf("Expected %v, got %+v", tt.want, result.Entries)
			}
			for i, op := range tt.want {
				if result.Entries[i].Operation != op {
					t.Errorf("Entry %d: expected %s, got %s", i, op, result.Entries[i].Operation)
				}
			}
		})
	}

	if _, err := Log(context.Background(), LogOptions{Since: "yesterday"}); !errors.Is(err, kerrors.ErrInvalidDateFormat) {
		t.Errorf("Expected ErrInvalidDateFormat, got %v", err)
	}
}

func TestLogWithoutEntries(t *testing.T) {
	useTempStores(t)
	result, err := Log(context.Background(), LogOptions{Location: "LocalMachine"})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(result.Entries))
	}
}
