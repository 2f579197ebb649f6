package configs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

// StorageKind tells the decrypt tool how a file's ciphertext is stored.
type StorageKind string

const (
	// Direct files hold the raw ciphertext.
	Direct StorageKind = "Direct"

	// CarrierEmbedded files are managed images carrying the ciphertext as
	// their first manifest resource.
	CarrierEmbedded StorageKind = "ManifestResource"
)

// EncryptionConfiguration is the document shipped beside encrypted
// package content.
type EncryptionConfiguration struct {
	XMLName  xml.Name     `xml:"configuration"`
	Files    []FileRecord `xml:"files>file"`
	Metadata Metadata     `xml:"metadata"`
}

// Metadata identifies the package and the wrapped session key.
type Metadata struct {
	// ID is the package id, used to find certificate overrides.
	ID string `xml:"id,omitempty"`

	// Certificate is the wrapping certificate's thumbprint.
	Certificate string `xml:"certificate"`

	// Key is the session key wrapped by Certificate, as uppercase hex.
	Key string `xml:"key"`
}

// FileRecord describes one protected file. Origin is relative to the
// configuration's directory.
type FileRecord struct {
	EncryptedHash string      `xml:"encrypted"`
	Origin        string      `xml:"path"`
	Type          StorageKind `xml:"type"`
	OriginalHash  string      `xml:"original"`
}

// LoadEncryptionConfiguration reads the configuration at path.
func LoadEncryptionConfiguration(configPath string) (*EncryptionConfiguration, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrIOFailure, configPath, err)
	}

	var config EncryptionConfiguration
	if err := xml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrConfigInvalid, configPath, err)
	}
	for i, f := range config.Files {
		switch f.Type {
		case "":
			config.Files[i].Type = Direct
		case Direct, CarrierEmbedded:
		default:
			return nil, fmt.Errorf("%w: %s: unknown file type %q", kerrors.ErrConfigInvalid, configPath, f.Type)
		}
		if !validOrigin(f.Origin) {
			return nil, fmt.Errorf("%w: %s: file path %q leaves the package", kerrors.ErrConfigInvalid, configPath, f.Origin)
		}
	}
	return &config, nil
}

// validOrigin reports whether origin names a file below the
// configuration's directory.
func validOrigin(origin string) bool {
	o := strings.TrimSpace(filepath.ToSlash(origin))
	if o == "" || path.IsAbs(o) || filepath.IsAbs(origin) || filepath.VolumeName(origin) != "" {
		return false
	}
	clean := path.Clean(o)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

// Save writes the configuration to path as indented XML.
func (c *EncryptionConfiguration) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	buf.WriteString("\n")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	// #nosec G306 -- the configuration ships inside the package.
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write configuration %s: %w", path, err)
	}
	return nil
}
