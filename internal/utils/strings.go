package utils

import (
	"path/filepath"
	"strings"

	"github.com/PolarWolf314/pkgseal/internal/ui"
)

// FormatPaths renders paths as an indented list, one per line. Paths
// below base are shown relative to it, with forward slashes.
func FormatPaths(base string, paths []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, p := range paths {
		if base != "" {
			if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
				p = rel
			}
		}
		b.WriteString("    - ")
		b.WriteString(ui.Path.Sprint(filepath.ToSlash(p)))
		b.WriteString("\n")
	}
	return b.String()
}
