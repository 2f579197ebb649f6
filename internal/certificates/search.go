package certificates

import (
	"fmt"
	"os"
	"strings"

	"github.com/PolarWolf314/pkgseal/internal/assembly"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

// Search yields the candidate certificates of one certificate source.
// An empty result is not an error; errors are reserved for sources that
// were explicitly named but do not exist.
type Search interface {
	Search() ([]*Certificate, error)
	String() string
}

// FindType selects how StoreSearch compares FindValue.
type FindType string

const (
	FindByThumbprint   FindType = "FindByThumbprint"
	FindBySubjectName  FindType = "FindBySubjectName"
	FindByIssuerName   FindType = "FindByIssuerName"
	FindBySerialNumber FindType = "FindBySerialNumber"
)

// ParseFindType parses a find type name case-insensitively. An empty name
// yields FindByThumbprint.
func ParseFindType(name string) (FindType, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return FindByThumbprint, nil
	}
	for _, t := range []FindType{FindByThumbprint, FindBySubjectName, FindByIssuerName, FindBySerialNumber} {
		if strings.EqualFold(n, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown find type %q", name)
}

// Matches reports whether c matches value. Name searches are
// case-insensitive substring matches.
func (t FindType) Matches(c *Certificate, value string) bool {
	if value == "" {
		return true
	}
	switch t {
	case FindByThumbprint:
		return c.Thumbprint() == NormalizeThumbprint(value)
	case FindBySubjectName:
		return containsFold(c.X509.Subject.String(), value)
	case FindByIssuerName:
		return containsFold(c.X509.Issuer.String(), value)
	case FindBySerialNumber:
		return strings.EqualFold(c.X509.SerialNumber.Text(16), strings.TrimLeft(NormalizeThumbprint(value), "0"))
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// StoreSearch looks a certificate up in a keyring-backed store.
type StoreSearch struct {
	Location  Location
	Name      string
	FindType  FindType
	FindValue string
}

// DefaultStoreSearch finds thumbprint in the current user's personal store.
func DefaultStoreSearch(thumbprint string) StoreSearch {
	return StoreSearch{
		Location:  CurrentUser,
		Name:      DefaultStoreName,
		FindType:  FindByThumbprint,
		FindValue: thumbprint,
	}
}

// Search opens the store read-only. A store that cannot be opened yields
// no candidates.
func (s StoreSearch) Search() ([]*Certificate, error) {
	location := s.Location
	if location == "" {
		location = CurrentUser
	}
	findType := s.FindType
	if findType == "" {
		findType = FindByThumbprint
	}

	store, err := OpenStore(location, s.Name)
	if err != nil {
		return nil, nil
	}
	certs, err := store.Find(findType, s.FindValue)
	if err != nil {
		return nil, nil
	}
	return certs, nil
}

// ParseStoreIdentifier parses the compact Location\Store:Thumbprint form
// into a thumbprint search.
func ParseStoreIdentifier(id string) (StoreSearch, error) {
	head, thumbprint, ok := strings.Cut(id, ":")
	if !ok {
		return StoreSearch{}, fmt.Errorf("store identifier %q is not Location\\Store:Thumbprint", id)
	}
	locationName, storeName, ok := strings.Cut(head, `\`)
	if !ok || storeName == "" {
		return StoreSearch{}, fmt.Errorf("store identifier %q is not Location\\Store:Thumbprint", id)
	}
	location, err := ParseLocation(locationName)
	if err != nil {
		return StoreSearch{}, err
	}
	if !IsThumbprintValid(thumbprint) {
		return StoreSearch{}, fmt.Errorf("invalid thumbprint %q", thumbprint)
	}
	return StoreSearch{
		Location:  location,
		Name:      storeName,
		FindType:  FindByThumbprint,
		FindValue: NormalizeThumbprint(thumbprint),
	}, nil
}

// IsThumbprintValid reports whether s is 40 hex digits once spaces and
// dashes are removed.
func IsThumbprintValid(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func (s StoreSearch) String() string {
	name := s.Name
	if name == "" {
		name = DefaultStoreName
	}
	return fmt.Sprintf("store %s/%s (%s %q)", s.Location, name, s.FindType, s.FindValue)
}

// FileSearch loads a certificate container from disk.
type FileSearch struct {
	Source   string
	Password string
}

// Search fails when the file is missing and yields nothing when it cannot
// be parsed.
func (s FileSearch) Search() ([]*Certificate, error) {
	if _, err := os.Stat(s.Source); err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrCertificateFileNotFound, s.Source)
	}
	cert, err := LoadContainer(s.Source, s.Password)
	if err != nil {
		return nil, nil
	}
	return []*Certificate{cert}, nil
}

func (s FileSearch) String() string {
	return fmt.Sprintf("file %s", s.Source)
}

// CarrierSearch reads a certificate container embedded as a manifest
// resource in a managed image. The image is parsed, never loaded.
type CarrierSearch struct {
	Carrier  string
	Resource string
	Password string
}

// Search fails when the carrier file is missing and yields nothing when the
// resource or container is unusable.
func (s CarrierSearch) Search() ([]*Certificate, error) {
	if _, err := os.Stat(s.Carrier); err != nil {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrCertificateFileNotFound, s.Carrier)
	}
	img, err := assembly.Open(s.Carrier)
	if err != nil {
		return nil, nil
	}
	data, err := img.ReadResource(s.Resource)
	if err != nil {
		return nil, nil
	}
	cert, err := ParseContainer(data, s.Password)
	if err != nil {
		return nil, nil
	}
	return []*Certificate{cert}, nil
}

func (s CarrierSearch) String() string {
	return fmt.Sprintf("resource %s in %s", s.Resource, s.Carrier)
}
