package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/pkgseal/internal/audit"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/packaging"
	"github.com/PolarWolf314/pkgseal/internal/utils"
)

// EncryptOptions configures the encrypt workflow.
type EncryptOptions struct {
	// ManifestPath is the build manifest. Defaults to pkgseal.toml.
	ManifestPath string

	// CertificatePassword replaces the manifest's container password when set.
	CertificatePassword string

	// DryRun expands the manifest without encrypting anything.
	DryRun bool

	Logger logger.Logger
}

// EncryptResult contains the outcome of an encrypt operation.
type EncryptResult struct {
	PackageID string

	// StagingDir holds the encrypted files, the configuration and the decryptor.
	StagingDir string

	// ConfigurationPath is the staged encryption configuration.
	ConfigurationPath string

	// Decryptor is the staged copy of the decrypt tool.
	Decryptor string

	// Thumbprint identifies the wrapping certificate.
	Thumbprint string

	// Planned lists the expanded manifest entries.
	Planned []configs.FileMapping

	// Files lists the records written to the configuration.
	Files []configs.FileRecord

	DryRun bool
}

// Encrypt runs an encryption session over the files named by a build
// manifest.
//
// Every file is attempted; if any fails the errors are joined and returned
// and nothing else is staged. On success the decrypt tool is copied next to
// the encrypted files and the configuration is written.
//
// Returns ErrInvalidManifest if the manifest cannot be used.
// Returns ErrCertificateNotFound if the certificate cannot be resolved.
// Returns ErrNoFilesFound or ErrFileNotFound if a manifest entry matches nothing.
func Encrypt(ctx context.Context, opts EncryptOptions) (*EncryptResult, error) {
	log := opts.Logger
	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = configs.DefaultManifestFile
	}

	manifest, err := configs.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded manifest for %s from %s", manifest.Package.ID, manifestPath)

	mappings, err := manifest.ExpandFiles()
	if err != nil {
		return nil, err
	}

	result := &EncryptResult{
		PackageID:  manifest.Package.ID,
		StagingDir: filepath.Join(manifest.OutputDir(), configs.StagingDirName),
		Planned:    mappings,
		DryRun:     opts.DryRun,
	}
	if opts.DryRun {
		return result, nil
	}

	cert, storeLocation, err := resolveManifestCertificate(manifest, opts.CertificatePassword)
	if err != nil {
		return nil, err
	}
	result.Thumbprint = cert.Thumbprint()
	log.Infof("Using certificate %s (%s)", cert.Thumbprint(), cert.Subject())

	session, err := packaging.NewSession(manifest.Package.ID, manifest.OutputDir(), cert, log)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var errs []error
	for _, mapping := range mappings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := session.EncryptFile(mapping.Source, mapping.Destination)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mapping.Source, err))
			continue
		}
		result.Files = append(result.Files, record)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("encrypting package files: %w", errors.Join(errs...))
	}

	decryptor, err := stageDecryptor(manifest, session.StagingDir)
	if err != nil {
		return nil, err
	}
	result.Decryptor = decryptor

	result.ConfigurationPath, err = session.SaveConfiguration()
	if err != nil {
		return nil, err
	}

	files := make([]string, len(result.Files))
	for i, f := range result.Files {
		files[i] = f.Origin
	}
	audit.Log(audit.StoreLogPath(storeLocation == certificates.LocalMachine), audit.Entry{
		Operation:  "encrypt",
		Location:   string(storeLocation),
		Thumbprint: cert.Thumbprint(),
		Subject:    cert.Subject(),
		PackageID:  manifest.Package.ID,
		Files:      files,
	})

	return result, nil
}

// resolveManifestCertificate loads the certificate the manifest names. The
// returned location is empty when the certificate came from a file.
func resolveManifestCertificate(manifest *configs.Manifest, password string) (*certificates.Certificate, certificates.Location, error) {
	c := manifest.Certificate
	if password == "" {
		password = c.Password
	}

	if c.File != "" {
		cert, err := certificates.LoadContainer(manifest.Resolve(c.File), password)
		if err != nil {
			return nil, "", err
		}
		return cert, "", nil
	}

	var search certificates.StoreSearch
	if c.Identifier != "" {
		parsed, err := certificates.ParseStoreIdentifier(c.Identifier)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", kerrors.ErrInvalidManifest, err)
		}
		search = parsed
	} else {
		location := certificates.CurrentUser
		if c.Location != "" {
			parsed, err := certificates.ParseLocation(c.Location)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %v", kerrors.ErrInvalidManifest, err)
			}
			location = parsed
		}
		search = certificates.StoreSearch{
			Location:  location,
			Name:      c.Store,
			FindType:  certificates.FindByThumbprint,
			FindValue: c.Thumbprint,
		}
	}

	cert, err := firstCandidate(search)
	if err != nil {
		return nil, "", err
	}
	return cert, search.Location, nil
}

// firstCandidate runs search and returns its first result.
func firstCandidate(search certificates.Search) (*certificates.Certificate, error) {
	certs, err := search.Search()
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrCertificateNotFound, search)
	}
	return certs[0], nil
}

// stageDecryptor copies the decrypt tool into the staging directory.
func stageDecryptor(manifest *configs.Manifest, stagingDir string) (string, error) {
	source := manifest.Resolve(manifest.Package.Decryptor)
	if source == "" {
		self, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to locate the decrypt tool: %w", err)
		}
		source = self
	}

	destination := filepath.Join(stagingDir, filepath.Base(source))
	if err := utils.CopyFile(source, destination, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	return destination, nil
}
