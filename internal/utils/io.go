package utils

import (
	"fmt"
	"io"
	"os"
)

// MaxPipedSize bounds what a command accepts on stdin. Certificate
// containers are a few kilobytes.
const MaxPipedSize = 1 << 20

// ReadPiped reads f until EOF. It refuses a terminal, since nothing was
// piped, and input that is empty or larger than MaxPipedSize.
func ReadPiped(f *os.File) ([]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", f.Name(), err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("no data piped to %s (hint: cat signing.pfx | pkgseal store import -)", f.Name())
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxPipedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	switch {
	case len(data) == 0:
		return nil, fmt.Errorf("%s is empty", f.Name())
	case len(data) > MaxPipedSize:
		return nil, fmt.Errorf("%s holds more than %d bytes", f.Name(), MaxPipedSize)
	}
	return data, nil
}
