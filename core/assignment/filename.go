package assignment

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// secureFilename reduces name to a flat ASCII filename: path separators and
// whitespace become underscores and anything outside [A-Za-z0-9_.-] is dropped.
// It may return an empty string.
func secureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// uploadName sanitises the stem of name and keeps its extension.
// A stem left empty by sanitising becomes "upload".
func uploadName(name string) string {
	ext := filepath.Ext(name)
	stem := secureFilename(strings.TrimSuffix(name, ext))
	if stem == "" {
		stem = "upload"
	}
	return stem + ext
}

// storedFilename prefixes a sanitised name with the owner id, the upload time and a random suffix.
func storedFilename(ownerID int64, at time.Time, safeName string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s_%s_%s", ownerID, at.Format("20060102_150405"), suffix, safeName)
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// humanList renders [pdf doc docx] as "PDF, DOC, and DOCX".
func humanList(exts []string) string {
	up := make([]string, len(exts))
	for i, ext := range exts {
		up[i] = strings.ToUpper(ext)
	}
	switch len(up) {
	case 0:
		return ""
	case 1:
		return up[0]
	case 2:
		return up[0] + " and " + up[1]
	}
	return strings.Join(up[:len(up)-1], ", ") + ", and " + up[len(up)-1]
}
