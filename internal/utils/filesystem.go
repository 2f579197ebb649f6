package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindUpward traverses from startDir up to the filesystem root and returns
// every regular file called name, nearest first.
func FindUpward(startDir, name string) ([]string, error) {
	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	var found []string
	for {
		candidate := filepath.Join(currentDir, name)
		fileInfo, err := os.Stat(candidate)
		// No error means the path exists
		if err == nil {
			if fileInfo.Mode().IsRegular() {
				found = append(found, candidate)
			}
		} else if !os.IsNotExist(err) && !os.IsPermission(err) {
			return found, fmt.Errorf("error checking for %s at %s: %w", name, currentDir, err)
		}

		parentDir := filepath.Dir(currentDir)

		// Reached the filesystem root
		if parentDir == currentDir {
			return found, nil
		}
		currentDir = parentDir
	}
}

// CopyFile copies src to dst, creating dst's directory.
func CopyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
