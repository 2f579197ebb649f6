package certificates

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PolarWolf314/pkgseal/internal/configs"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"

	"github.com/99designs/keyring"
)

// Location selects the scope of a certificate store.
type Location string

const (
	CurrentUser  Location = "CurrentUser"
	LocalMachine Location = "LocalMachine"
)

// DefaultStoreName is the personal store searched when nothing else is configured.
const DefaultStoreName = "My"

// ParseLocation parses a store location name case-insensitively. An empty
// name yields CurrentUser.
func ParseLocation(name string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "currentuser":
		return CurrentUser, nil
	case "localmachine":
		return LocalMachine, nil
	}
	return "", fmt.Errorf("unknown store location %q", name)
}

// Store is a named certificate store backed by a keyring. Items are keyed
// by thumbprint and hold a PEM bundle of the certificate and its key.
type Store struct {
	Location Location
	Name     string

	ring keyring.Keyring
}

// OpenStore opens the named store at location. CurrentUser stores prefer
// the operating system's keychain and fall back to an encrypted file;
// LocalMachine stores are always file-backed.
func OpenStore(location Location, name string) (*Store, error) {
	if name == "" {
		name = DefaultStoreName
	}
	settings, err := configs.ResolveStores()
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", kerrors.ErrStoreUnavailable, location, name, err)
	}

	root := settings.UserStoresPath
	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.WinCredBackend,
		keyring.SecretServiceBackend,
		keyring.FileBackend,
	}
	if location == LocalMachine {
		root = settings.MachineStoresPath
	}
	if location == LocalMachine || settings.FileOnly {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	service := fmt.Sprintf("pkgseal.%s.%s", strings.ToLower(string(location)), name)
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              service,
		AllowedBackends:          backends,
		KeychainName:             "",
		KeychainTrustApplication: true,
		WinCredPrefix:            "pkgseal",
		LibSecretCollectionName:  "pkgseal",
		FileDir:                  filepath.Join(root, name),
		FilePasswordFunc:         keyring.FixedStringPrompt(settings.Password),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", kerrors.ErrStoreUnavailable, location, name, err)
	}

	return &Store{Location: location, Name: name, ring: ring}, nil
}

// Add stores c under its thumbprint, replacing any previous entry.
func (s *Store) Add(c *Certificate) error {
	bundle, err := c.EncodePEM()
	if err != nil {
		return err
	}
	err = s.ring.Set(keyring.Item{
		Key:         c.Thumbprint(),
		Data:        bundle,
		Label:       c.Subject(),
		Description: "pkgseal certificate",
	})
	if err != nil {
		return fmt.Errorf("failed to store certificate in %s/%s: %w", s.Location, s.Name, err)
	}
	return nil
}

// Remove deletes the certificate with the given thumbprint.
func (s *Store) Remove(thumbprint string) error {
	err := s.ring.Remove(NormalizeThumbprint(thumbprint))
	// The file backend reports a missing item as a missing file.
	if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", kerrors.ErrCertificateNotFound, thumbprint)
	}
	return err
}

// Certificates returns every parsable certificate in the store, ordered
// by thumbprint.
func (s *Store) Certificates() ([]*Certificate, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", s.Location, s.Name, err)
	}
	sort.Strings(keys)

	var certs []*Certificate
	for _, key := range keys {
		item, err := s.ring.Get(key)
		if err != nil {
			continue
		}
		cert, err := ParsePEM(item.Data)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// Find returns the certificates matching value under findType. An empty
// value matches every certificate.
func (s *Store) Find(findType FindType, value string) ([]*Certificate, error) {
	if findType == FindByThumbprint && value != "" {
		item, err := s.ring.Get(NormalizeThumbprint(value))
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s/%s: %w", s.Location, s.Name, err)
		}
		cert, err := ParsePEM(item.Data)
		if err != nil {
			return nil, nil
		}
		return []*Certificate{cert}, nil
	}

	all, err := s.Certificates()
	if err != nil {
		return nil, err
	}
	var matched []*Certificate
	for _, c := range all {
		if findType.Matches(c, value) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// NormalizeThumbprint upper-cases a thumbprint and drops spaces and dashes.
func NormalizeThumbprint(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.Join(strings.Fields(s), ""), "-", ""))
}
