package assembly

import (
	"encoding/binary"
	"io"
	"os"
)

// Kind classifies a file by its executable header.
type Kind int

const (
	Invalid Kind = iota
	Native
	Managed
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Managed:
		return "managed"
	default:
		return "invalid"
	}
}

// Classification is the result of Classify. Bitness is 32 or 64 for PE
// images and 0 for invalid files.
type Classification struct {
	Kind    Kind
	Bitness int
}

const (
	headerProbeSize = 4096

	dosMagic       = 0x5A4D
	peSignature    = 0x00004550
	pe32Magic      = 0x10B
	pe32PlusMagic  = 0x20B
	lfanewOffset   = 60
	coffHeaderSize = 20

	// Offset of the CLR runtime header data directory inside the optional header.
	clrDirectoryOffset32 = 208
	clrDirectoryOffset64 = 224
	dataDirectorySize    = 8
)

// Classify reads the header of the file at path and reports whether it is
// a native or managed PE image. Any read failure or header mismatch
// yields Invalid.
func Classify(path string) Classification {
	f, err := os.Open(path)
	if err != nil {
		return Classification{}
	}
	defer f.Close()

	header := make([]byte, headerProbeSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return Classification{}
	}

	return ClassifyHeader(header[:n])
}

// ClassifyHeader classifies an in-memory image header.
func ClassifyHeader(data []byte) Classification {
	u16 := func(off int) (uint16, bool) {
		if off < 0 || off+2 > len(data) {
			return 0, false
		}
		return binary.LittleEndian.Uint16(data[off:]), true
	}
	u32 := func(off int) (uint32, bool) {
		if off < 0 || off+4 > len(data) {
			return 0, false
		}
		return binary.LittleEndian.Uint32(data[off:]), true
	}

	if magic, ok := u16(0); !ok || magic != dosMagic {
		return Classification{}
	}

	lfanew, ok := u32(lfanewOffset)
	if !ok || lfanew > uint32(len(data)) {
		return Classification{}
	}
	ntHeader := int(lfanew)

	if sig, ok := u32(ntHeader); !ok || sig != peSignature {
		return Classification{}
	}

	optionalHeader := ntHeader + 4 + coffHeaderSize
	magic, ok := u16(optionalHeader)
	if !ok {
		return Classification{}
	}

	var clrDirectory, bitness int
	switch magic {
	case pe32Magic:
		clrDirectory, bitness = optionalHeader+clrDirectoryOffset32, 32
	case pe32PlusMagic:
		clrDirectory, bitness = optionalHeader+clrDirectoryOffset64, 64
	default:
		return Classification{}
	}

	if clrDirectory+dataDirectorySize > len(data) {
		return Classification{}
	}

	var sum byte
	for _, b := range data[clrDirectory : clrDirectory+dataDirectorySize] {
		sum |= b
	}
	if sum == 0 {
		return Classification{Kind: Native, Bitness: bitness}
	}
	return Classification{Kind: Managed, Bitness: bitness}
}
