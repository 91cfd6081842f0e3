package sharefile

import (
	"path/filepath"
	"strings"
	"time"
)

// Record represents one file in the shared folder. Filename is the unique
// key within the collection: the server keeps a flat namespace with no path
// hierarchy and no versioning.
type Record struct {
	Filename   string
	Uploader   string
	UploadTime time.Time
	Size       int64
}

// Ext returns the lowercased filename extension without the dot, or "" when
// the name has none.
func (r Record) Ext() string {
	ext := strings.TrimPrefix(filepath.Ext(r.Filename), ".")
	return strings.ToLower(ext)
}
