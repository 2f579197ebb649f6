package certificates

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/utils"
)

// OverrideFileName is the certificate override document searched for
// next to a package and in its parent directories.
const OverrideFileName = "NuGet.Encryption.config"

// OverrideConfiguration maps package ids to certificate sources.
type OverrideConfiguration struct {
	XMLName  xml.Name          `xml:"certificates"`
	Packages []PackageOverride `xml:"package"`

	// path is the file the document was loaded from; relative sources
	// resolve against its directory.
	path string
}

// PackageOverride names exactly one certificate source for a package.
type PackageOverride struct {
	ID       string            `xml:"id,attr"`
	Storage  *StorageOverride  `xml:"storage"`
	File     *FileOverride     `xml:"file"`
	Resource *ResourceOverride `xml:"resource"`
}

type StorageOverride struct {
	Location  string `xml:"location,attr,omitempty"`
	Store     string `xml:"store,attr,omitempty"`
	FindType  string `xml:"findType,attr,omitempty"`
	FindValue string `xml:"findValue,attr,omitempty"`
}

type FileOverride struct {
	Source   string `xml:"source,attr"`
	Password string `xml:"password,attr,omitempty"`
}

type ResourceOverride struct {
	Assembly string `xml:"assembly,attr"`
	Name     string `xml:"name,attr"`
	Password string `xml:"password,attr,omitempty"`
}

// LoadOverride parses the override document at path.
func LoadOverride(path string) (*OverrideConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc OverrideConfiguration
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	doc.path = path
	return &doc, nil
}

// SearchFor returns the certificate source configured for packageID.
// Package ids compare case-insensitively; the first entry wins.
func (o *OverrideConfiguration) SearchFor(packageID string) (Search, bool, error) {
	for _, p := range o.Packages {
		if !strings.EqualFold(strings.TrimSpace(p.ID), strings.TrimSpace(packageID)) {
			continue
		}
		search, err := p.search(filepath.Dir(o.path))
		if err != nil {
			return nil, false, fmt.Errorf("package %q in %s: %w", p.ID, o.path, err)
		}
		return search, true, nil
	}
	return nil, false, nil
}

func (p PackageOverride) search(baseDir string) (Search, error) {
	switch {
	case p.Storage != nil:
		location, err := ParseLocation(p.Storage.Location)
		if err != nil {
			return nil, err
		}
		findType, err := ParseFindType(p.Storage.FindType)
		if err != nil {
			return nil, err
		}
		return StoreSearch{
			Location:  location,
			Name:      p.Storage.Store,
			FindType:  findType,
			FindValue: p.Storage.FindValue,
		}, nil
	case p.File != nil:
		if p.File.Source == "" {
			return nil, fmt.Errorf("file override needs a source")
		}
		return FileSearch{Source: resolve(baseDir, p.File.Source), Password: p.File.Password}, nil
	case p.Resource != nil:
		if p.Resource.Assembly == "" || p.Resource.Name == "" {
			return nil, fmt.Errorf("resource override needs an assembly and a name")
		}
		return CarrierSearch{
			Carrier:  resolve(baseDir, p.Resource.Assembly),
			Resource: p.Resource.Name,
			Password: p.Resource.Password,
		}, nil
	}
	return nil, fmt.Errorf("override names no certificate source")
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindOverride looks for a certificate override for packageID. When
// explicit is set only that file is consulted; otherwise every
// OverrideFileName from startDir up to the filesystem root is tried,
// nearest first. Unreadable or invalid documents are logged and skipped.
func FindOverride(log logger.Logger, explicit, startDir, packageID string) (Search, string, bool) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		found, err := utils.FindUpward(startDir, OverrideFileName)
		if err != nil {
			log.Warnf("Stopped searching for %s: %v", OverrideFileName, err)
		}
		candidates = found
	}

	for _, path := range candidates {
		log.Debugf("Checking certificate override %s", path)
		doc, err := LoadOverride(path)
		if err != nil {
			log.Warnf("Ignoring certificate override %s: %v", path, err)
			continue
		}
		search, ok, err := doc.SearchFor(packageID)
		if err != nil {
			log.Warnf("Ignoring certificate override: %v", err)
			continue
		}
		if ok {
			return search, path, true
		}
	}
	return nil, "", false
}

// OverrideExample is a template override document.
const OverrideExample = `<?xml version="1.0" encoding="utf-8"?>
<certificates>
  <!-- Certificate in a keyring-backed store. location: CurrentUser | LocalMachine;
       findType: FindByThumbprint | FindBySubjectName | FindByIssuerName | FindBySerialNumber -->
  <package id="My.Package">
    <storage location="CurrentUser" store="My" findType="FindByThumbprint" findValue="0123456789ABCDEF0123456789ABCDEF01234567" />
  </package>

  <!-- PKCS #12 or PEM file, relative to this document. -->
  <package id="My.Other.Package">
    <file source="certificates/signing.pfx" password="secret" />
  </package>

  <!-- Container embedded as a manifest resource of a managed assembly. -->
  <package id="My.Third.Package">
    <resource assembly="tools/Certificates.dll" name="Certificates/signing.pfx" password="secret" />
  </package>
</certificates>
`
