package packaging

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/pkgseal/internal/assembly"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"
	"github.com/PolarWolf314/pkgseal/internal/secrets"
)

// CarrierResourceName names the manifest resource holding a carrier's
// ciphertext.
const CarrierResourceName = "encrypted"

// Session encrypts the files of one package under a single session key.
// Encrypted files and the configuration are staged under StagingDir,
// laid out the way they will appear inside the package.
type Session struct {
	PackageID  string
	StagingDir string

	cert   *certificates.Certificate
	key    []byte
	config configs.EncryptionConfiguration
	log    logger.Logger
}

// NewSession creates a session staging into workDir/__encrypted. With a nil
// certificate the session can be created but cannot encrypt files.
func NewSession(packageID, workDir string, cert *certificates.Certificate, log logger.Logger) (*Session, error) {
	staging := filepath.Join(workDir, configs.StagingDirName)
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating staging directory %s: %v", kerrors.ErrIOFailure, staging, err)
	}

	key, err := secrets.CreateSessionKey()
	if err != nil {
		return nil, err
	}

	s := &Session{
		PackageID:  packageID,
		StagingDir: staging,
		cert:       cert,
		key:        key,
		log:        log,
	}
	s.config.Metadata.ID = packageID

	if cert != nil {
		wrapped, err := cert.Encrypt(key)
		if err != nil {
			secrets.Zeroize(key)
			return nil, fmt.Errorf("failed to wrap session key: %w", err)
		}
		s.config.Metadata.Certificate = cert.Thumbprint()
		s.config.Metadata.Key = secrets.ToHex(wrapped)
		log.Debugf("Session key wrapped with certificate %s", cert.Thumbprint())
	}

	return s, nil
}

// EncryptFile encrypts source and stages it at destination, a slash
// separated path inside the package. Managed assemblies are staged as
// carrier images of the same bitness; everything else as raw ciphertext.
func (s *Session) EncryptFile(source, destination string) (configs.FileRecord, error) {
	if s.cert == nil {
		return configs.FileRecord{}, kerrors.ErrNoCertificate
	}
	if s.key == nil {
		return configs.FileRecord{}, fmt.Errorf("session is closed")
	}

	origin, err := cleanDestination(destination)
	if err != nil {
		return configs.FileRecord{}, err
	}

	plaintext, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return configs.FileRecord{}, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, source)
		}
		return configs.FileRecord{}, fmt.Errorf("%w: reading %s: %v", kerrors.ErrIOFailure, source, err)
	}
	defer secrets.Zeroize(plaintext)

	ciphertext, err := secrets.Encrypt(plaintext, string(s.key))
	if err != nil {
		return configs.FileRecord{}, fmt.Errorf("encrypting %s: %w", source, err)
	}

	record := configs.FileRecord{
		Origin:       origin,
		OriginalHash: secrets.HashBytes(plaintext),
	}
	staged := s.StagedPath(origin)

	if class := assembly.Classify(source); class.Kind == assembly.Managed {
		hash, err := s.writeCarrier(source, staged, class.Bitness, ciphertext)
		if err == nil {
			record.Type = configs.CarrierEmbedded
			record.EncryptedHash = hash
		} else {
			s.log.Warnf("Could not embed %s in a carrier image, storing it directly: %v", source, err)
		}
	}

	if record.Type == "" {
		if err := writeFile(staged, ciphertext); err != nil {
			return configs.FileRecord{}, err
		}
		record.Type = configs.Direct
		record.EncryptedHash = secrets.HashBytes(ciphertext)
	}

	s.addRecord(record)
	s.log.Infof("Encrypted %s -> %s (%s)", source, origin, record.Type)
	return record, nil
}

func (s *Session) writeCarrier(source, staged string, bitness int, ciphertext []byte) (string, error) {
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	opts := assembly.CarrierOptions{AssemblyName: name, Bitness: bitness}
	if err := assembly.WriteCarrier(staged, opts, assembly.Resource{Name: CarrierResourceName, Data: ciphertext}); err != nil {
		return "", err
	}
	return secrets.HashFile(staged)
}

func (s *Session) addRecord(record configs.FileRecord) {
	for i, existing := range s.config.Files {
		if existing.Origin == record.Origin {
			s.config.Files[i] = record
			return
		}
	}
	s.config.Files = append(s.config.Files, record)
}

// StagedPath maps a package path onto the staging directory.
func (s *Session) StagedPath(origin string) string {
	return filepath.Join(s.StagingDir, filepath.FromSlash(origin))
}

// Configuration returns the configuration built so far.
func (s *Session) Configuration() *configs.EncryptionConfiguration {
	c := s.config
	c.Files = append([]configs.FileRecord(nil), s.config.Files...)
	return &c
}

// ConfigurationPath is where SaveConfiguration writes.
func (s *Session) ConfigurationPath() string {
	return filepath.Join(s.StagingDir, configs.DefaultConfigurationFile)
}

// SaveConfiguration writes the configuration into the staging directory.
func (s *Session) SaveConfiguration() (string, error) {
	p := s.ConfigurationPath()
	if err := s.config.Save(p); err != nil {
		return "", fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	return p, nil
}

// Close discards the session key.
func (s *Session) Close() error {
	if s.key != nil {
		secrets.Zeroize(s.key)
		s.key = nil
	}
	return nil
}

func cleanDestination(destination string) (string, error) {
	d := strings.TrimSpace(filepath.ToSlash(destination))
	if d == "" {
		return "", fmt.Errorf("destination is required")
	}
	if path.IsAbs(d) || filepath.IsAbs(destination) {
		return "", fmt.Errorf("destination %q must be relative to the package", destination)
	}
	clean := path.Clean(d)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("destination %q leaves the package", destination)
	}
	return clean, nil
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("%w: creating directory for %s: %v", kerrors.ErrIOFailure, p, err)
	}
	// #nosec G306 -- staged files ship inside the package.
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", kerrors.ErrIOFailure, p, err)
	}
	return nil
}
