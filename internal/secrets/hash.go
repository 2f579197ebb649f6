package secrets

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// HashBytes returns the uppercase hex MD5 digest of data.
func HashBytes(data []byte) string {
	sum := md5.Sum(data) // #nosec G401 -- content addressing, not a security boundary.
	return ToHex(sum[:])
}

// HashFile returns the uppercase hex MD5 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() // #nosec G401
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return ToHex(h.Sum(nil)), nil
}

// HashEqual compares two hex digests case-insensitively.
func HashEqual(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// ToHex encodes data as uppercase hex without separators.
func ToHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// FromHex decodes a hex string of either case.
func FromHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return data, nil
}
