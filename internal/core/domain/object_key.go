package domain

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectKey builds "{category}/{scope...}/{random-hex}.{ext}".
func ObjectKey(category, ext string, scope ...string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "bin"
	}
	parts := append([]string{category}, scope...)
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
	return path.Join(append(parts, name)...)
}
