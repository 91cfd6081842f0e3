package transfer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourceValidator restricts upload sources to configured directories.
// The drop-folder watcher uses it so a crafted symlink or event cannot
// make the client read files from outside the watched tree.
type SourceValidator struct {
	roots []string
}

// NewSourceValidator creates a validator over the given root
// directories. Roots that cannot be made absolute are skipped.
func NewSourceValidator(roots []string) *SourceValidator {
	normalized := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		normalized = append(normalized, filepath.Clean(abs))
	}
	return &SourceValidator{roots: normalized}
}

// Validate reports whether path resolves to a location inside one of
// the allowed roots. A validator with no roots allows everything.
func (v *SourceValidator) Validate(path string) error {
	if v == nil || len(v.roots) == 0 {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	abs = filepath.Clean(abs)
	for _, root := range v.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside the watched directories", abs)
}
