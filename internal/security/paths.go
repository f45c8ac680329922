// Package security keeps output paths derived from input directory names
// inside the configured output root.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxNameLen bounds a sanitised file name component.
const maxNameLen = 128

// SanitizeFilename turns an arbitrary directory name into a single safe
// path component. Runs of characters other than ASCII letters, digits, dot,
// underscore and dash become one underscore; leading and trailing dots and
// underscores are trimmed. The empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxNameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if ok {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// JoinWithin joins elems onto root and rejects the result if it escapes
// root lexically. The check does not touch the filesystem, so it works the
// same for in-memory trees used in tests.
func JoinWithin(root string, elems ...string) (string, error) {
	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(append([]string{cleanRoot}, elems...)...)

	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil {
		return "", fmt.Errorf("path %s is outside %s: %w", joined, cleanRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s escapes %s", joined, cleanRoot)
	}
	return joined, nil
}
