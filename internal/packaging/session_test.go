package packaging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PolarWolf314/pkgseal/internal/assembly"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/secrets"
)

var (
	certOnce sync.Once
	cert     *certificates.Certificate
	certErr  error
)

func testCertificate(t *testing.T) *certificates.Certificate {
	t.Helper()
	certOnce.Do(func() {
		cert, certErr = certificates.CreateSelfSigned(certificates.CreateOptions{CommonName: "packaging test"})
	})
	if certErr != nil {
		t.Fatalf("CreateSelfSigned failed: %v", certErr)
	}
	return cert
}

func quietLogger(errOut io.Writer) logger.Logger {
	return logger.Logger{Out: io.Discard, ErrOut: errOut}
}

func writeSource(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return p
}

// sessionPassword unwraps the session key recorded in the configuration.
func sessionPassword(t *testing.T, config *configs.EncryptionConfiguration) string {
	t.Helper()
	key, err := secrets.UnwrapSessionKey(config.Metadata.Key, testCertificate(t).PrivateKey)
	if err != nil {
		t.Fatalf("UnwrapSessionKey failed: %v", err)
	}
	return string(key)
}

func TestNewSessionMetadata(t *testing.T) {
	workDir := t.TempDir()
	session, err := NewSession("My.Package", workDir, testCertificate(t), quietLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	if session.StagingDir != filepath.Join(workDir, "__encrypted") {
		t.Errorf("Unexpected staging dir %s", session.StagingDir)
	}
	if info, err := os.Stat(session.StagingDir); err != nil || !info.IsDir() {
		t.Fatalf("Expected staging dir to exist: %v", err)
	}

	config := session.Configuration()
	if config.Metadata.ID != "My.Package" {
		t.Errorf("Expected package id, got %q", config.Metadata.ID)
	}
	if config.Metadata.Certificate != testCertificate(t).Thumbprint() {
		t.Errorf("Expected thumbprint %s, got %s", testCertificate(t).Thumbprint(), config.Metadata.Certificate)
	}
	if config.Metadata.Key != strings.ToUpper(config.Metadata.Key) {
		t.Error("Expected wrapped key as uppercase hex")
	}

	password := sessionPassword(t, config)
	if len(password) != secrets.SessionKeyLength {
		t.Errorf("Expected %d character session key, got %d", secrets.SessionKeyLength, len(password))
	}
}

func TestEncryptFileDirect(t *testing.T) {
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "readme.txt", []byte("hello"))

	session, err := NewSession("P", t.TempDir(), testCertificate(t), quietLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	record, err := session.EncryptFile(source, "content/readme.txt")
	if err != nil {
		t.Fatalf("EncryptFile failed: %v", err)
	}

	if record.Type != configs.Direct {
		t.Errorf("Expected Direct storage, got %s", record.Type)
	}
	if record.Origin != "content/readme.txt" {
		t.Errorf("Unexpected origin %q", record.Origin)
	}
	if record.OriginalHash != secrets.HashBytes([]byte("hello")) {
		t.Errorf("Unexpected original hash %s", record.OriginalHash)
	}

	staged, err := os.ReadFile(session.StagedPath(record.Origin))
	if err != nil {
		t.Fatalf("Failed to read staged file: %v", err)
	}
	if record.EncryptedHash != secrets.HashBytes(staged) {
		t.Error("Expected encrypted hash to match the staged file")
	}

	plaintext, err := secrets.Decrypt(staged, sessionPassword(t, session.Configuration()))
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(plaintext) != "hello" {
		t.Errorf("Expected hello, got %q", plaintext)
	}
}

func TestEncryptFileManagedAssembly(t *testing.T) {
	for _, bitness := range []int{32, 64} {
		library, err := assembly.BuildCarrier(assembly.CarrierOptions{AssemblyName: "Library", Bitness: bitness},
			assembly.Resource{Name: "Library.Strings.resources", Data: []byte("resource data")})
		if err != nil {
			t.Fatalf("BuildCarrier failed: %v", err)
		}
		source := writeSource(t, t.TempDir(), "Library.dll", library)

		session, err := NewSession("P", t.TempDir(), testCertificate(t), quietLogger(io.Discard))
		if err != nil {
			t.Fatalf("NewSession failed: %v", err)
		}

		record, err := session.EncryptFile(source, "lib/net45/Library.dll")
		if err != nil {
			t.Fatalf("EncryptFile failed: %v", err)
		}
		if record.Type != configs.CarrierEmbedded {
			t.Fatalf("Expected carrier storage, got %s", record.Type)
		}

		staged := session.StagedPath(record.Origin)
		class := assembly.Classify(staged)
		if class.Kind != assembly.Managed || class.Bitness != bitness {
			t.Errorf("Expected managed %d-bit carrier, got %s %d-bit", bitness, class.Kind, class.Bitness)
		}
		hash, err := secrets.HashFile(staged)
		if err != nil {
			t.Fatalf("HashFile failed: %v", err)
		}
		if hash != record.EncryptedHash {
			t.Error("Expected encrypted hash to be the carrier's digest")
		}

		img, err := assembly.Open(staged)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		ciphertext, err := img.ReadResource(CarrierResourceName)
		if err != nil {
			t.Fatalf("ReadResource failed: %v", err)
		}
		plaintext, err := secrets.Decrypt(ciphertext, sessionPassword(t, session.Configuration()))
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(plaintext, library) {
			t.Error("Expected the carrier payload to decrypt to the original assembly")
		}
		session.Close()
	}
}

func TestEncryptFileFallsBackToDirect(t *testing.T) {
	library, err := assembly.BuildCarrier(assembly.CarrierOptions{AssemblyName: "Library"},
		assembly.Resource{Name: "r", Data: []byte("x")})
	if err != nil {
		t.Fatalf("BuildCarrier failed: %v", err)
	}
	// A file named only by its extension yields no assembly name, so the
	// carrier cannot be built.
	source := writeSource(t, t.TempDir(), ".dll", library)

	var warnings bytes.Buffer
	session, err := NewSession("P", t.TempDir(), testCertificate(t), quietLogger(&warnings))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	record, err := session.EncryptFile(source, "lib/.dll")
	if err != nil {
		t.Fatalf("EncryptFile failed: %v", err)
	}
	if record.Type != configs.Direct {
		t.Errorf("Expected fallback to Direct, got %s", record.Type)
	}
	if !strings.Contains(warnings.String(), "storing it directly") {
		t.Errorf("Expected a downgrade warning, got %q", warnings.String())
	}
}

func TestSessionWithoutCertificate(t *testing.T) {
	source := writeSource(t, t.TempDir(), "a.txt", []byte("a"))

	session, err := NewSession("P", t.TempDir(), nil, quietLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	config := session.Configuration()
	if config.Metadata.Certificate != "" || config.Metadata.Key != "" {
		t.Errorf("Expected empty metadata, got %+v", config.Metadata)
	}

	if _, err := session.EncryptFile(source, "a.txt"); !errors.Is(err, kerrors.ErrNoCertificate) {
		t.Errorf("Expected ErrNoCertificate, got %v", err)
	}
}

func TestEncryptFileErrors(t *testing.T) {
	source := writeSource(t, t.TempDir(), "a.txt", []byte("a"))

	session, err := NewSession("P", t.TempDir(), testCertificate(t), quietLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if _, err := session.EncryptFile(filepath.Join(t.TempDir(), "missing.txt"), "m.txt"); !errors.Is(err, kerrors.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	for _, destination := range []string{"", "../escape.txt", "/abs.txt", "."} {
		if _, err := session.EncryptFile(source, destination); err == nil {
			t.Errorf("Expected error for destination %q", destination)
		}
	}

	session.Close()
	if _, err := session.EncryptFile(source, "a.txt"); err == nil {
		t.Error("Expected error after Close")
	}
}

func TestSaveConfiguration(t *testing.T) {
	session, err := NewSession("P", t.TempDir(), testCertificate(t), quietLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := session.EncryptFile(writeSource(t, dir, name, []byte(name)), "content/"+name); err != nil {
			t.Fatalf("EncryptFile failed: %v", err)
		}
	}
	// Re-encrypting a destination replaces its record.
	if _, err := session.EncryptFile(writeSource(t, dir, "a2.txt", []byte("changed")), "content/a.txt"); err != nil {
		t.Fatalf("EncryptFile failed: %v", err)
	}

	path, err := session.SaveConfiguration()
	if err != nil {
		t.Fatalf("SaveConfiguration failed: %v", err)
	}
	if path != filepath.Join(session.StagingDir, "encryption.config") {
		t.Errorf("Unexpected configuration path %s", path)
	}

	loaded, err := configs.LoadEncryptionConfiguration(path)
	if err != nil {
		t.Fatalf("LoadEncryptionConfiguration failed: %v", err)
	}
	if len(loaded.Files) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(loaded.Files))
	}
	if loaded.Files[0].OriginalHash != secrets.HashBytes([]byte("changed")) {
		t.Error("Expected the replaced record to describe the latest source")
	}
	if loaded.Metadata.Certificate != testCertificate(t).Thumbprint() {
		t.Error("Expected the certificate thumbprint to be saved")
	}
}
