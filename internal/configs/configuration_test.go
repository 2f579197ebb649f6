package configs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

func TestSaveAndLoadEncryptionConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staging", DefaultConfigurationFile)

	original := &EncryptionConfiguration{
		Metadata: Metadata{ID: "My.Package", Certificate: "ABCDEF", Key: "0011AA"},
		Files: []FileRecord{
			{EncryptedHash: "E1", Origin: "lib/net45/Library.dll", Type: CarrierEmbedded, OriginalHash: "O1"},
			{EncryptedHash: "E2", Origin: "content/readme.txt", Type: Direct, OriginalHash: "O2"},
		},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadEncryptionConfiguration(path)
	if err != nil {
		t.Fatalf("LoadEncryptionConfiguration failed: %v", err)
	}

	if loaded.Metadata != original.Metadata {
		t.Errorf("Expected metadata %+v, got %+v", original.Metadata, loaded.Metadata)
	}
	if len(loaded.Files) != len(original.Files) {
		t.Fatalf("Expected %d files, got %d", len(original.Files), len(loaded.Files))
	}
	for i := range original.Files {
		if loaded.Files[i] != original.Files[i] {
			t.Errorf("File %d: expected %+v, got %+v", i, original.Files[i], loaded.Files[i])
		}
	}
}

func TestEncryptionConfigurationElementNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigurationFile)
	config := &EncryptionConfiguration{
		Metadata: Metadata{Certificate: "THUMB", Key: "KEY"},
		Files:    []FileRecord{{EncryptedHash: "E", Origin: "a.txt", Type: Direct, OriginalHash: "O"}},
	}
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read configuration: %v", err)
	}
	for _, want := range []string{
		"<configuration>", "<files>", "<file>", "<encrypted>E</encrypted>",
		"<path>a.txt</path>", "<type>Direct</type>", "<original>O</original>",
		"<metadata>", "<certificate>THUMB</certificate>", "<key>KEY</key>",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected configuration to contain %s:\n%s", want, data)
		}
	}
}

func TestLoadEncryptionConfigurationWithoutFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigurationFile)
	body := `<?xml version="1.0"?><configuration><metadata><certificate>A</certificate><key>B</key></metadata></configuration>`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("Failed to write configuration: %v", err)
	}

	config, err := LoadEncryptionConfiguration(path)
	if err != nil {
		t.Fatalf("LoadEncryptionConfiguration failed: %v", err)
	}
	if len(config.Files) != 0 {
		t.Errorf("Expected no files, got %d", len(config.Files))
	}
}

func TestLoadEncryptionConfigurationErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"Missing", filepath.Join(dir, "missing.config"), kerrors.ErrConfigNotFound},
		{"NotXML", write("garbage.config", "this is not xml"), kerrors.ErrConfigInvalid},
		{"WrongRoot", write("root.config", "<certificates></certificates>"), kerrors.ErrConfigInvalid},
		{"UnknownType", write("type.config", "<configuration><files><file><path>a.txt</path><type>Zip</type></file></files></configuration>"), kerrors.ErrConfigInvalid},
		{"AbsoluteOrigin", write("abs.config", "<configuration><files><file><path>/etc/passwd</path></file></files></configuration>"), kerrors.ErrConfigInvalid},
		{"ParentOrigin", write("parent.config", "<configuration><files><file><path>content/../../outside.txt</path></file></files></configuration>"), kerrors.ErrConfigInvalid},
		{"EmptyOrigin", write("empty.config", "<configuration><files><file><path></path></file></files></configuration>"), kerrors.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEncryptionConfiguration(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
