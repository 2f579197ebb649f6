package assembly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	peparser "github.com/saferwall/pe"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

// ManifestResource is a row of an image's ManifestResource table.
type ManifestResource struct {
	Name   string
	Offset uint32
	Flags  uint32

	// Implementation is zero for resources embedded in the image itself.
	Implementation uint32
}

// Image is a parsed managed PE image. Parsing walks header and metadata
// tables only; nothing in the image is ever executed.
type Image struct {
	resources []byte
	manifest  []ManifestResource
}

// Open reads and parses the managed image at path.
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a managed image held in memory.
func Parse(data []byte) (*Image, error) {
	f, err := peparser.NewBytes(data, &peparser.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidImage, err)
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidImage, err)
	}
	if !f.FileInfo.HasCLR {
		return nil, fmt.Errorf("%w: no CLR runtime header", kerrors.ErrInvalidImage)
	}
	if f.CLR.MetadataHeader.Signature != metadataSignBSJB {
		return nil, fmt.Errorf("%w: bad metadata signature", kerrors.ErrInvalidImage)
	}

	img := &Image{}
	res := f.CLR.CLRHeader.Resources
	if res.VirtualAddress != 0 && res.Size != 0 {
		blob, err := f.GetData(res.VirtualAddress, res.Size)
		if err != nil || uint32(len(blob)) < res.Size {
			return nil, fmt.Errorf("%w: resources RVA 0x%x (+%d) outside of image", kerrors.ErrInvalidImage, res.VirtualAddress, res.Size)
		}
		img.resources = append([]byte(nil), blob[:res.Size]...)
	}

	if err := img.readManifest(f); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) readManifest(f *peparser.File) error {
	table, ok := f.CLR.MetadataTables[peparser.ManifestResource]
	if !ok || table == nil {
		return nil
	}
	rows, ok := table.Content.([]peparser.ManifestResourceTableRow)
	if !ok {
		return fmt.Errorf("%w: unreadable manifest resource table", kerrors.ErrInvalidImage)
	}

	heap := f.CLR.MetadataStreams["#Strings"]
	img.manifest = make([]ManifestResource, 0, len(rows))
	for _, row := range rows {
		name, err := heapString(heap, row.Name)
		if err != nil {
			return err
		}
		img.manifest = append(img.manifest, ManifestResource{
			Name:           name,
			Offset:         row.Offset,
			Flags:          row.Flags,
			Implementation: row.Implementation,
		})
	}
	return nil
}

// Resources returns the manifest resources declared by the image.
func (img *Image) Resources() []ManifestResource {
	return append([]ManifestResource(nil), img.manifest...)
}

// ResourceData returns the bytes of a resource embedded in the image.
func (img *Image) ResourceData(r ManifestResource) ([]byte, error) {
	if r.Implementation != 0 {
		return nil, fmt.Errorf("%w: resource %q is stored outside the image", kerrors.ErrCarrierPayloadMissing, r.Name)
	}
	off := uint64(r.Offset)
	if off+4 > uint64(len(img.resources)) {
		return nil, fmt.Errorf("%w: resource %q offset out of range", kerrors.ErrInvalidImage, r.Name)
	}
	length := uint64(binary.LittleEndian.Uint32(img.resources[off:]))
	if off+4+length > uint64(len(img.resources)) {
		return nil, fmt.Errorf("%w: resource %q length out of range", kerrors.ErrInvalidImage, r.Name)
	}
	return append([]byte(nil), img.resources[off+4:off+4+length]...), nil
}

// ReadResource resolves name with ResolveResourceName and returns its bytes.
func (img *Image) ReadResource(name string) ([]byte, error) {
	r, ok := ResolveResourceName(img.manifest, name)
	if !ok {
		return nil, fmt.Errorf("%w: no resource matching %q", kerrors.ErrCarrierPayloadMissing, name)
	}
	return img.ResourceData(r)
}

// FirstResource returns the bytes of the first declared resource.
func (img *Image) FirstResource() ([]byte, error) {
	if len(img.manifest) == 0 {
		return nil, kerrors.ErrCarrierPayloadMissing
	}
	return img.ResourceData(img.manifest[0])
}

// Unpack opens the carrier at path and returns its first embedded resource.
func Unpack(path string) ([]byte, error) {
	img, err := Open(path)
	if err != nil {
		return nil, err
	}
	return img.FirstResource()
}

// ResolveResourceName finds the resource whose name ends with name once
// path separators in name are turned into namespace dots. The match is
// case-insensitive.
func ResolveResourceName(resources []ManifestResource, name string) (ManifestResource, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return ManifestResource{}, false
	}
	want = strings.NewReplacer("/", ".", "\\", ".").Replace(want)
	for _, r := range resources {
		if strings.HasSuffix(strings.ToLower(r.Name), want) {
			return r, true
		}
	}
	return ManifestResource{}, false
}

// heapString reads the NUL-terminated entry at idx of a #Strings heap.
func heapString(heap []byte, idx uint32) (string, error) {
	if uint64(idx) >= uint64(len(heap)) {
		return "", fmt.Errorf("%w: string index %d out of range", kerrors.ErrInvalidImage, idx)
	}
	end := bytes.IndexByte(heap[idx:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", kerrors.ErrInvalidImage, idx)
	}
	return string(heap[idx : int(idx)+end]), nil
}
