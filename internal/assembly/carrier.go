package assembly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	peparser "github.com/saferwall/pe"
)

// Resource is a named blob embedded in a carrier's manifest.
type Resource struct {
	Name string
	Data []byte
}

// CarrierOptions controls the shape of a synthesized carrier image.
type CarrierOptions struct {
	// AssemblyName is recorded in the Assembly and Module tables.
	AssemblyName string

	// Bitness selects a PE32 (32) or PE32+ (64) image. Zero means 32.
	Bitness int
}

// Layout constants for the synthesized image. The image contains a single
// .text section holding the CLI header, the managed resources blob and the
// metadata, in that order.
const (
	fileAlignment    = 0x200
	sectionAlignment = 0x2000
	textRVA          = 0x2000
	ntHeaderOffset   = 0x80

	cliHeaderSize    = 72
	comImageILOnly   = 0x1
	resourcePublic   = 0x1
	sha1HashAlgID    = 0x8004
	metadataVersion  = "v4.0.30319"
	metadataSignBSJB = 0x424A5342

	imageFileExecutable   = 0x0002
	imageFileLargeAddress = 0x0020
	imageFile32BitMachine = 0x0100
	imageFileDLL          = 0x2000

	machineI386  = 0x14C
	machineAMD64 = 0x8664

	sectionCode    = 0x00000020
	sectionExecute = 0x20000000
	sectionRead    = 0x40000000
)

// WriteCarrier synthesizes a carrier image and writes it to path.
func WriteCarrier(path string, opts CarrierOptions, resources ...Resource) error {
	image, err := BuildCarrier(opts, resources...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	// #nosec G306 -- carriers ship inside packages and must be readable.
	if err := os.WriteFile(path, image, 0644); err != nil {
		return fmt.Errorf("failed to write carrier %s: %w", path, err)
	}
	return nil
}

// BuildCarrier returns a minimal managed PE image whose manifest embeds
// the given resources. The image has no code and no entry point.
func BuildCarrier(opts CarrierOptions, resources ...Resource) ([]byte, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("carrier needs at least one resource")
	}
	name := strings.TrimSpace(opts.AssemblyName)
	if name == "" {
		return nil, fmt.Errorf("carrier needs an assembly name")
	}
	bitness := opts.Bitness
	if bitness == 0 {
		bitness = 32
	}
	if bitness != 32 && bitness != 64 {
		return nil, fmt.Errorf("unsupported carrier bitness %d", bitness)
	}

	var text bytes.Buffer
	text.Write(make([]byte, cliHeaderSize))

	resourcesStart := text.Len()
	offsets := make([]uint32, len(resources))
	for i, r := range resources {
		if r.Name == "" {
			return nil, fmt.Errorf("carrier resource %d has no name", i)
		}
		offsets[i] = uint32(text.Len() - resourcesStart)
		_ = binary.Write(&text, binary.LittleEndian, uint32(len(r.Data)))
		text.Write(r.Data)
		padTo(&text, 8)
	}
	resourcesSize := text.Len() - resourcesStart

	padTo(&text, 4)
	metadataStart := text.Len()
	text.Write(buildMetadata(name, resources, offsets))
	metadataSize := text.Len() - metadataStart

	section := text.Bytes()
	cli := section[:cliHeaderSize]
	binary.LittleEndian.PutUint32(cli[0:], cliHeaderSize)
	binary.LittleEndian.PutUint16(cli[4:], 2)
	binary.LittleEndian.PutUint16(cli[6:], 5)
	binary.LittleEndian.PutUint32(cli[8:], uint32(textRVA+metadataStart))
	binary.LittleEndian.PutUint32(cli[12:], uint32(metadataSize))
	binary.LittleEndian.PutUint32(cli[16:], comImageILOnly)
	binary.LittleEndian.PutUint32(cli[24:], uint32(textRVA+resourcesStart))
	binary.LittleEndian.PutUint32(cli[28:], uint32(resourcesSize))

	return buildPE(section, bitness), nil
}

// buildPE wraps the .text section into DOS, COFF and optional headers.
func buildPE(section []byte, bitness int) []byte {
	rawSize := alignUp(len(section), fileAlignment)
	virtualSize := alignUp(len(section), sectionAlignment)

	var out bytes.Buffer
	le := func(v any) { _ = binary.Write(&out, binary.LittleEndian, v) }

	dos := make([]byte, ntHeaderOffset)
	binary.LittleEndian.PutUint16(dos[0:], dosMagic)
	binary.LittleEndian.PutUint32(dos[lfanewOffset:], ntHeaderOffset)
	out.Write(dos)

	le(uint32(peSignature))

	optionalSize := 224
	machine := uint16(machineI386)
	characteristics := uint16(imageFileExecutable | imageFile32BitMachine | imageFileDLL)
	if bitness == 64 {
		optionalSize = 240
		machine = machineAMD64
		characteristics = imageFileExecutable | imageFileLargeAddress | imageFileDLL
	}

	// COFF file header.
	le(machine)
	le(uint16(1))
	le(uint32(0))
	le(uint32(0))
	le(uint32(0))
	le(uint16(optionalSize))
	le(characteristics)

	// Optional header, standard fields.
	if bitness == 64 {
		le(uint16(pe32PlusMagic))
	} else {
		le(uint16(pe32Magic))
	}
	le(uint8(8))
	le(uint8(0))
	le(uint32(rawSize))
	le(uint32(0))
	le(uint32(0))
	le(uint32(0))
	le(uint32(textRVA))
	if bitness == 64 {
		le(uint64(0x180000000))
	} else {
		le(uint32(0))
		le(uint32(0x10000000))
	}

	// Windows-specific fields.
	le(uint32(sectionAlignment))
	le(uint32(fileAlignment))
	le(uint16(4))
	le(uint16(0))
	le(uint16(0))
	le(uint16(0))
	le(uint16(4))
	le(uint16(0))
	le(uint32(0))
	le(uint32(textRVA + virtualSize))
	le(uint32(fileAlignment))
	le(uint32(0))
	le(uint16(3))
	le(uint16(0x8540))
	if bitness == 64 {
		le(uint64(0x400000))
		le(uint64(0x4000))
		le(uint64(0x100000))
		le(uint64(0x2000))
	} else {
		le(uint32(0x100000))
		le(uint32(0x1000))
		le(uint32(0x100000))
		le(uint32(0x1000))
	}
	le(uint32(0))
	le(uint32(16))

	// Data directories; only the CLR runtime header is populated.
	for i := 0; i < 16; i++ {
		if i == 14 {
			le(uint32(textRVA))
			le(uint32(cliHeaderSize))
			continue
		}
		le(uint64(0))
	}

	// Section table.
	var name [8]byte
	copy(name[:], ".text")
	out.Write(name[:])
	le(uint32(len(section)))
	le(uint32(textRVA))
	le(uint32(rawSize))
	le(uint32(fileAlignment))
	le(uint32(0))
	le(uint32(0))
	le(uint16(0))
	le(uint16(0))
	le(uint32(sectionCode | sectionExecute | sectionRead))

	padTo(&out, fileAlignment)
	out.Write(section)
	padTo(&out, fileAlignment)

	return out.Bytes()
}

// buildMetadata emits an ECMA-335 metadata root with Module, TypeDef,
// Assembly and ManifestResource tables.
func buildMetadata(assemblyName string, resources []Resource, offsets []uint32) []byte {
	strs := newStringHeap()
	moduleName := strs.add(assemblyName + ".dll")
	moduleType := strs.add("<Module>")
	asmName := strs.add(assemblyName)
	resourceNames := make([]uint16, len(resources))
	for i, r := range resources {
		resourceNames[i] = strs.add(r.Name)
	}

	mvid := uuid.New()
	guids := append([]byte(nil), mvid[:]...)
	blobs := []byte{0, 0, 0, 0}

	var tables bytes.Buffer
	le := func(v any) { _ = binary.Write(&tables, binary.LittleEndian, v) }

	le(uint32(0))
	le(uint8(2))
	le(uint8(0))
	le(uint8(0))
	le(uint8(1))
	le(uint64(1<<peparser.Module | 1<<peparser.TypeDef | 1<<peparser.Assembly | 1<<peparser.ManifestResource))
	le(uint64(0x000016003301FA00))
	le(uint32(1))
	le(uint32(1))
	le(uint32(1))
	le(uint32(len(resources)))

	// Module: Generation, Name, Mvid, EncId, EncBaseId.
	le(uint16(0))
	le(moduleName)
	le(uint16(1))
	le(uint16(0))
	le(uint16(0))

	// TypeDef <Module>: Flags, TypeName, TypeNamespace, Extends, FieldList, MethodList.
	le(uint32(0))
	le(moduleType)
	le(uint16(0))
	le(uint16(0))
	le(uint16(1))
	le(uint16(1))

	// Assembly: HashAlgId, version 1.0.0.0, Flags, PublicKey, Name, Culture.
	le(uint32(sha1HashAlgID))
	le([4]uint16{1, 0, 0, 0})
	le(uint32(0))
	le(uint16(0))
	le(asmName)
	le(uint16(0))

	// ManifestResource: Offset, Flags, Name, Implementation.
	for i := range resources {
		le(offsets[i])
		le(uint32(resourcePublic))
		le(resourceNames[i])
		le(uint16(0))
	}
	padTo(&tables, 4)

	stringHeap := strs.bytes()

	type stream struct {
		name string
		data []byte
	}
	streams := []stream{
		{"#~", tables.Bytes()},
		{"#Strings", stringHeap},
		{"#GUID", guids},
		{"#Blob", blobs},
	}

	version := make([]byte, alignUp(len(metadataVersion)+1, 4))
	copy(version, metadataVersion)

	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + alignUp(len(s.name)+1, 4)
	}

	var md bytes.Buffer
	mle := func(v any) { _ = binary.Write(&md, binary.LittleEndian, v) }
	mle(uint32(metadataSignBSJB))
	mle(uint16(1))
	mle(uint16(1))
	mle(uint32(0))
	mle(uint32(len(version)))
	md.Write(version)
	mle(uint16(0))
	mle(uint16(len(streams)))

	offset := headerSize
	for _, s := range streams {
		mle(uint32(offset))
		mle(uint32(len(s.data)))
		n := make([]byte, alignUp(len(s.name)+1, 4))
		copy(n, s.name)
		md.Write(n)
		offset += len(s.data)
	}
	for _, s := range streams {
		md.Write(s.data)
	}

	return md.Bytes()
}

type stringHeap struct {
	buf   bytes.Buffer
	index map[string]uint16
}

func newStringHeap() *stringHeap {
	h := &stringHeap{index: map[string]uint16{"": 0}}
	h.buf.WriteByte(0)
	return h
}

func (h *stringHeap) add(s string) uint16 {
	if idx, ok := h.index[s]; ok {
		return idx
	}
	idx := uint16(h.buf.Len())
	h.buf.WriteString(s)
	h.buf.WriteByte(0)
	h.index[s] = idx
	return idx
}

func (h *stringHeap) bytes() []byte {
	padTo(&h.buf, 4)
	return h.buf.Bytes()
}

func padTo(b *bytes.Buffer, alignment int) {
	if rem := b.Len() % alignment; rem != 0 {
		b.Write(make([]byte, alignment-rem))
	}
}

func alignUp(n, alignment int) int {
	return (n + alignment - 1) / alignment * alignment
}
