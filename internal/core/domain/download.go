package domain

import (
	"path/filepath"
	"strings"
)

type DownloadView string

const (
	ViewOriginal DownloadView = "original"
	ViewRedacted DownloadView = "redacted"
)

func ParseDownloadView(raw string) (DownloadView, bool) {
	switch DownloadView(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ViewOriginal:
		return ViewOriginal, true
	case ViewRedacted:
		return ViewRedacted, true
	default:
		return "", false
	}
}

// Artifact describes a downloadable file.
type Artifact struct {
	Filename    string
	ContentType string
}

// RedactedFilename derives "<name without extension>_REDACTED.txt".
func RedactedFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "document"
	}
	return base + "_REDACTED.txt"
}
