package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docfields/constants"
)

// extSet builds a lookup of normalized extensions, defaulting to every
// supported document format.
func extSet(exts []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, e := range exts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			set[e] = struct{}{}
		}
	}
	if len(set) == 0 {
		for e := range constants.AllowedExtensions {
			set[e] = struct{}{}
		}
	}
	return set
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
