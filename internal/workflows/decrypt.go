package workflows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	"github.com/PolarWolf314/pkgseal/internal/isolated"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/secrets"
	"github.com/PolarWolf314/pkgseal/internal/utils"
)

const (
	decryptedSuffix = ".decrypted"
	backupSuffix    = ".encrypted"
)

// DecryptOptions configures the decrypt workflow.
type DecryptOptions struct {
	// ConfigPath is the encryption configuration. Defaults to
	// encryption.config in the working directory.
	ConfigPath string

	// CertificateFile takes precedence over every other certificate source.
	CertificateFile     string
	CertificatePassword string

	// StoreLocation and StoreName select a store to search by thumbprint.
	StoreLocation string
	StoreName     string

	// OverridePath restricts the override lookup to a single document.
	OverridePath string

	// Unpacker extracts carrier payloads. Defaults to isolated.InProcess.
	Unpacker isolated.Unpacker

	Logger logger.Logger
}

// FileFailure records why a protected file was left untouched.
type FileFailure struct {
	Path string
	Err  error
}

// DecryptResult contains the outcome of a decrypt operation.
type DecryptResult struct {
	ConfigPath string
	PackageID  string
	Thumbprint string

	// CertificateSource describes where the certificate was found.
	CertificateSource string

	// Decrypted lists files that were replaced with their plaintext.
	Decrypted []string

	// AlreadyDecrypted lists files whose content was already the original.
	AlreadyDecrypted []string

	// Failed lists files that could not be restored.
	Failed []FileFailure
}

var errAlreadyDecrypted = errors.New("already decrypted")

// Decrypt restores the files listed in an encryption configuration.
//
// The certificate is resolved, in order, from an explicit file, an
// explicit store, an override document and finally the current user's
// personal store. Per-file problems are logged as warnings and reported in
// the result; they never abort the run.
//
// Returns ErrConfigNotFound or ErrConfigInvalid if the configuration cannot be loaded.
// Returns ErrConfigCorrupt if the configuration lacks a thumbprint or a key.
// Returns ErrCertificateNotFound or ErrCertificateMismatch if no usable certificate is found.
// Returns ErrKeyDecryptFailed if the session key cannot be unwrapped.
func Decrypt(ctx context.Context, opts DecryptOptions) (*DecryptResult, error) {
	log := opts.Logger
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = configs.DefaultConfigurationFile
	}
	configPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}

	config, err := configs.LoadEncryptionConfiguration(configPath)
	if err != nil {
		return nil, err
	}

	result := &DecryptResult{
		ConfigPath: configPath,
		PackageID:  config.Metadata.ID,
		Thumbprint: config.Metadata.Certificate,
	}
	if len(config.Files) == 0 {
		log.Infof("No encrypted files listed in %s", configPath)
		return result, nil
	}
	if config.Metadata.Certificate == "" || config.Metadata.Key == "" {
		return nil, fmt.Errorf("%w: certificate thumbprint and key are required", kerrors.ErrConfigCorrupt)
	}

	configDir := filepath.Dir(configPath)
	search, err := resolveDecryptionSearch(opts, config, configDir)
	if err != nil {
		return nil, err
	}
	result.CertificateSource = search.String()
	log.Infof("Searching for certificate in %s", search)

	cert, err := firstCandidate(search)
	if err != nil {
		return nil, err
	}
	if cert.Thumbprint() != certificates.NormalizeThumbprint(config.Metadata.Certificate) {
		return nil, fmt.Errorf("%w: found %s, expected %s", kerrors.ErrCertificateMismatch, cert.Thumbprint(), config.Metadata.Certificate)
	}

	key, err := cert.UnwrapSessionKey(config.Metadata.Key)
	if err != nil {
		return nil, err
	}
	defer secrets.Zeroize(key)

	unpacker := opts.Unpacker
	if unpacker == nil {
		unpacker = isolated.InProcess{}
	}

	for _, record := range config.Files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		path := filepath.Join(configDir, filepath.FromSlash(record.Origin))
		err := decryptFile(ctx, path, record, string(key), unpacker)
		switch {
		case err == nil:
			log.Infof("Decrypted %s", record.Origin)
			result.Decrypted = append(result.Decrypted, path)
		case errors.Is(err, errAlreadyDecrypted):
			log.Infof("Skipping %s: already decrypted", record.Origin)
			result.AlreadyDecrypted = append(result.AlreadyDecrypted, path)
		default:
			log.Warnf("Could not decrypt %s: %v", record.Origin, err)
			result.Failed = append(result.Failed, FileFailure{Path: path, Err: err})
		}
	}

	return result, nil
}

// resolveDecryptionSearch picks the certificate source with the highest
// precedence that is configured.
func resolveDecryptionSearch(opts DecryptOptions, config *configs.EncryptionConfiguration, configDir string) (certificates.Search, error) {
	thumbprint := config.Metadata.Certificate

	if opts.CertificateFile != "" {
		return certificates.FileSearch{Source: opts.CertificateFile, Password: opts.CertificatePassword}, nil
	}

	if opts.StoreLocation != "" || opts.StoreName != "" {
		location := certificates.CurrentUser
		if opts.StoreLocation != "" {
			parsed, err := certificates.ParseLocation(opts.StoreLocation)
			if err != nil {
				return nil, err
			}
			location = parsed
		}
		return certificates.StoreSearch{
			Location:  location,
			Name:      opts.StoreName,
			FindType:  certificates.FindByThumbprint,
			FindValue: thumbprint,
		}, nil
	}

	if search, path, ok := certificates.FindOverride(opts.Logger, opts.OverridePath, configDir, config.Metadata.ID); ok {
		opts.Logger.Infof("Using certificate override from %s", path)
		return search, nil
	}

	return certificates.DefaultStoreSearch(thumbprint), nil
}

// decryptFile verifies, decrypts and swaps a single protected file. The
// original ciphertext is kept at path.encrypted.
func decryptFile(ctx context.Context, path string, record configs.FileRecord, password string, unpacker isolated.Unpacker) error {
	hash, err := secrets.HashFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return resumeSwap(path, record)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	if secrets.HashEqual(hash, record.OriginalHash) {
		return errAlreadyDecrypted
	}
	if !secrets.HashEqual(hash, record.EncryptedHash) {
		return fmt.Errorf("%w: %s", kerrors.ErrFileCorrupted, hash)
	}

	var ciphertext []byte
	switch record.Type {
	case configs.CarrierEmbedded:
		ciphertext, err = unpacker.Unpack(ctx, path)
	default:
		ciphertext, err = os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
		}
	}
	if err != nil {
		return err
	}

	plaintext, err := secrets.Decrypt(ciphertext, password)
	if err != nil {
		return err
	}
	defer secrets.Zeroize(plaintext)

	temp := path + decryptedSuffix
	// #nosec G306 -- restored package content keeps ordinary permissions.
	if err := os.WriteFile(temp, plaintext, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerrors.ErrIOFailure, temp, err)
	}

	tempHash, err := secrets.HashFile(temp)
	if err != nil || !secrets.HashEqual(tempHash, record.OriginalHash) {
		_ = os.Remove(temp)
		if err != nil {
			return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
		}
		return fmt.Errorf("%w: got %s, expected %s", kerrors.ErrVerificationFailed, tempHash, record.OriginalHash)
	}

	return swap(path, temp)
}

// resumeSwap finishes a swap that stopped after path was moved to its
// backup name, provided the plaintext at path.decrypted still verifies.
func resumeSwap(path string, record configs.FileRecord) error {
	temp := path + decryptedSuffix
	if !utils.FileExists(temp) {
		return fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	hash, err := secrets.HashFile(temp)
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	if !secrets.HashEqual(hash, record.OriginalHash) {
		return fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
	}
	if err := os.Rename(temp, path); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	return nil
}

// swap keeps the ciphertext at path.encrypted and replaces path with temp.
// The backup is a hard link, so path always holds either the ciphertext
// or the plaintext.
func swap(path, temp string) error {
	backup := path + backupSuffix
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		_ = os.Remove(temp)
		return fmt.Errorf("%w: removing stale %s: %v", kerrors.ErrIOFailure, backup, err)
	}
	if err := os.Link(path, backup); err != nil {
		return swapByRename(path, temp, backup)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(backup)
		_ = os.Remove(temp)
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	return nil
}

// swapByRename is used where hard links are unsupported. If the second
// rename fails the first is undone; a crash in between is repaired by
// resumeSwap on the next run.
func swapByRename(path, temp, backup string) error {
	if err := os.Rename(path, backup); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	if err := os.Rename(temp, path); err != nil {
		if rollbackErr := os.Rename(backup, path); rollbackErr != nil {
			return fmt.Errorf("%w: %v (restoring %s also failed: %v)", kerrors.ErrIOFailure, err, path, rollbackErr)
		}
		_ = os.Remove(temp)
		return fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	return nil
}
