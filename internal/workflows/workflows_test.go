package workflows

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PolarWolf314/pkgseal/internal/assembly"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/secrets"
)

const certPassword = "secret"

var (
	certsOnce  sync.Once
	primary    *certificates.Certificate
	other      *certificates.Certificate
	certsError error
)

func testCertificates(t *testing.T) (*certificates.Certificate, *certificates.Certificate) {
	t.Helper()
	certsOnce.Do(func() {
		primary, certsError = certificates.CreateSelfSigned(certificates.CreateOptions{CommonName: "workflow primary"})
		if certsError != nil {
			return
		}
		other, certsError = certificates.CreateSelfSigned(certificates.CreateOptions{CommonName: "workflow other"})
	})
	if certsError != nil {
		t.Fatalf("CreateSelfSigned failed: %v", certsError)
	}
	return primary, other
}

// useTempStores points every store and audit log at a temp directory.
func useTempStores(t *testing.T) {
	t.Helper()
	original := configs.Stores
	root := t.TempDir()
	configs.Stores = &configs.StoreSettings{
		UserStoresPath:    filepath.Join(root, "CurrentUser"),
		MachineStoresPath: filepath.Join(root, "LocalMachine"),
		Password:          "test-password",
		FileOnly:          true,
	}
	t.Cleanup(func() {
		configs.Stores = original
	})
}

func quietLogger() logger.Logger {
	return logger.Logger{Out: io.Discard, ErrOut: io.Discard}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func writeContainer(t *testing.T, path string, cert *certificates.Certificate) {
	t.Helper()
	data, err := cert.EncodePKCS12(certPassword)
	if err != nil {
		t.Fatalf("EncodePKCS12 failed: %v", err)
	}
	writeFile(t, path, data)
}

const testManifest = `[package]
id = "Test.Package"
output = "out"
decryptor = "tools/decryptor"

[certificate]
%s

[[files]]
source = "src/readme.txt"
destination = "content/"

[[files]]
source = "src/bin/*.dll"
destination = "lib/net45"
`

type fixture struct {
	root      string
	manifest  string
	staging   string
	config    string
	originals map[string][]byte
}

func (f fixture) staged(origin string) string {
	return filepath.Join(f.staging, filepath.FromSlash(origin))
}

// newFixture lays out a project whose manifest uses certificateTOML.
func newFixture(t *testing.T, certificateTOML string) fixture {
	t.Helper()
	root := t.TempDir()

	library, err := assembly.BuildCarrier(assembly.CarrierOptions{AssemblyName: "Library", Bitness: 64},
		assembly.Resource{Name: "Library.Strings.resources", Data: []byte("strings")})
	if err != nil {
		t.Fatalf("BuildCarrier failed: %v", err)
	}

	f := fixture{
		root:     root,
		manifest: filepath.Join(root, "pkgseal.toml"),
		staging:  filepath.Join(root, "out", "__encrypted"),
		config:   filepath.Join(root, "out", "__encrypted", "encryption.config"),
		originals: map[string][]byte{
			"content/readme.txt":    []byte("read me first"),
			"lib/net45/Library.dll": library,
		},
	}

	writeFile(t, filepath.Join(root, "src", "readme.txt"), f.originals["content/readme.txt"])
	writeFile(t, filepath.Join(root, "src", "bin", "Library.dll"), library)
	writeFile(t, filepath.Join(root, "tools", "decryptor"), []byte("#!/bin/sh\n"))
	writeFile(t, f.manifest, []byte(fmt.Sprintf(testManifest, certificateTOML)))
	return f
}

// encryptedFixture runs Encrypt with a certificate file next to the manifest.
func encryptedFixture(t *testing.T) fixture {
	t.Helper()
	useTempStores(t)
	cert, _ := testCertificates(t)

	f := newFixture(t, fmt.Sprintf("file = %q\npassword = %q", "signing.pfx", certPassword))
	writeContainer(t, filepath.Join(f.root, "signing.pfx"), cert)

	if _, err := Encrypt(context.Background(), EncryptOptions{ManifestPath: f.manifest, Logger: quietLogger()}); err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	return f
}

func (f fixture) decryptOptions() DecryptOptions {
	return DecryptOptions{
		ConfigPath:          f.config,
		CertificateFile:     filepath.Join(f.root, "signing.pfx"),
		CertificatePassword: certPassword,
		Logger:              quietLogger(),
	}
}

func assertRestored(t *testing.T, f fixture, origin string) {
	t.Helper()
	data, err := os.ReadFile(f.staged(origin))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", origin, err)
	}
	if !bytes.Equal(data, f.originals[origin]) {
		t.Errorf("Expected %s to hold its original content", origin)
	}
	backupHash, err := secrets.HashFile(f.staged(origin) + ".encrypted")
	if err != nil {
		t.Fatalf("Expected a backup of %s: %v", origin, err)
	}
	if want := encryptedHash(t, f, origin); !secrets.HashEqual(backupHash, want) {
		t.Errorf("Expected the backup of %s to hold the ciphertext %s, got %s", origin, want, backupHash)
	}
	if _, err := os.Stat(f.staged(origin) + ".decrypted"); !os.IsNotExist(err) {
		t.Errorf("Expected no temp file for %s", origin)
	}
}

// encryptedHash returns the ciphertext hash recorded for origin.
func encryptedHash(t *testing.T, f fixture, origin string) string {
	t.Helper()
	config, err := configs.LoadEncryptionConfiguration(f.config)
	if err != nil {
		t.Fatalf("LoadEncryptionConfiguration failed: %v", err)
	}
	for _, record := range config.Files {
		if record.Origin == origin {
			return record.EncryptedHash
		}
	}
	t.Fatalf("No record for %s", origin)
	return ""
}

func failureFor(result *DecryptResult, path string) error {
	for _, failure := range result.Failed {
		if failure.Path == path {
			return failure.Err
		}
	}
	return nil
}

type countingUnpacker struct {
	calls int
}

func (u *countingUnpacker) Unpack(ctx context.Context, path string) ([]byte, error) {
	u.calls++
	return assembly.Unpack(path)
}
