package configs

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// Manifest is the build-side description of a package to protect.
type Manifest struct {
	Package     ManifestPackage     `toml:"package"`
	Certificate ManifestCertificate `toml:"certificate"`
	Files       []ManifestFile      `toml:"files"`

	dir string
}

type ManifestPackage struct {
	ID string `toml:"id"`

	// Output is the work directory; staged files land in Output/__encrypted.
	Output string `toml:"output"`

	// Decryptor is the decrypt tool copied into the staging directory.
	// Empty means the running executable.
	Decryptor string `toml:"decryptor,omitempty"`
}

// ManifestCertificate names the wrapping certificate, either as a
// container file or as a store entry.
type ManifestCertificate struct {
	File     string `toml:"file,omitempty"`
	Password string `toml:"password,omitempty"`

	Location   string `toml:"location,omitempty"`
	Store      string `toml:"store,omitempty"`
	Thumbprint string `toml:"thumbprint,omitempty"`

	// Identifier is the compact Location\Store:Thumbprint form.
	Identifier string `toml:"identifier,omitempty"`
}

// ManifestFile maps a source path or doublestar glob to a destination
// inside the package. With a glob, Destination is a directory.
type ManifestFile struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
}

// FileMapping is an expanded ManifestFile entry.
type FileMapping struct {
	Source      string
	Destination string
}

const defaultOutputDir = "obj/pkgseal"

// LoadManifest reads and validates the build manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	manifest := &Manifest{}
	meta, err := toml.DecodeFile(path, manifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", kerrors.ErrInvalidManifest, path)
		}
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidManifest, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", kerrors.ErrInvalidManifest, undecoded[0].String())
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	manifest.dir = filepath.Dir(abs)

	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Validate checks the fields every build needs.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Package.ID) == "" {
		return fmt.Errorf("%w: package.id is required", kerrors.ErrInvalidManifest)
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("%w: at least one [[files]] entry is required", kerrors.ErrInvalidManifest)
	}
	for i, f := range m.Files {
		if strings.TrimSpace(f.Source) == "" {
			return fmt.Errorf("%w: files[%d].source is required", kerrors.ErrInvalidManifest, i)
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(f.Source)) {
			return fmt.Errorf("%w: files[%d].source %q is not a valid pattern", kerrors.ErrInvalidManifest, i, f.Source)
		}
		if isOutside(f.Destination) {
			return fmt.Errorf("%w: files[%d].destination %q leaves the package", kerrors.ErrInvalidManifest, i, f.Destination)
		}
	}
	c := m.Certificate
	if c.File == "" && c.Thumbprint == "" && c.Identifier == "" {
		return fmt.Errorf("%w: certificate needs a file, a thumbprint or an identifier", kerrors.ErrInvalidManifest)
	}
	return nil
}

// Dir returns the directory relative paths in the manifest resolve against.
func (m *Manifest) Dir() string {
	if m.dir == "" {
		wd, _ := os.Getwd()
		return wd
	}
	return m.dir
}

// Resolve makes p absolute relative to the manifest directory.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(p))
}

// OutputDir returns the absolute work directory.
func (m *Manifest) OutputDir() string {
	if m.Package.Output == "" {
		return m.Resolve(defaultOutputDir)
	}
	return m.Resolve(m.Package.Output)
}

// ExpandFiles resolves every [[files]] entry. Glob matches keep their
// path below the pattern's static prefix. Results are sorted by destination.
func (m *Manifest) ExpandFiles() ([]FileMapping, error) {
	var mappings []FileMapping
	seen := make(map[string]string)

	for _, f := range m.Files {
		pattern := filepath.ToSlash(f.Source)
		destination := strings.Trim(filepath.ToSlash(f.Destination), "/")

		var expanded []FileMapping
		if hasMeta(pattern) {
			base, _ := doublestar.SplitPattern(pattern)
			matches, err := doublestar.FilepathGlob(m.Resolve(pattern), doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid glob pattern %q: %w", f.Source, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("%w: %s", kerrors.ErrNoFilesFound, f.Source)
			}
			root := m.Resolve(base)
			for _, match := range matches {
				rel, err := filepath.Rel(root, match)
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, FileMapping{
					Source:      match,
					Destination: path.Join(destination, filepath.ToSlash(rel)),
				})
			}
		} else {
			source := m.Resolve(pattern)
			info, err := os.Stat(source)
			if err != nil || !info.Mode().IsRegular() {
				return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, f.Source)
			}
			dest := destination
			if dest == "" || strings.HasSuffix(filepath.ToSlash(f.Destination), "/") {
				dest = path.Join(dest, path.Base(pattern))
			}
			expanded = append(expanded, FileMapping{Source: source, Destination: dest})
		}

		for _, e := range expanded {
			if previous, ok := seen[e.Destination]; ok && previous != e.Source {
				return nil, fmt.Errorf("%w: %s and %s both map to %s", kerrors.ErrInvalidManifest, previous, e.Source, e.Destination)
			}
			if _, ok := seen[e.Destination]; ok {
				continue
			}
			seen[e.Destination] = e.Source
			mappings = append(mappings, e)
		}
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].Destination < mappings[j].Destination
	})
	return mappings, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func isOutside(destination string) bool {
	d := filepath.ToSlash(destination)
	if d == "" {
		return false
	}
	if path.IsAbs(d) || filepath.IsAbs(destination) {
		return true
	}
	clean := path.Clean(d)
	return clean == ".." || strings.HasPrefix(clean, "../")
}
