package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aviellagerev/shareterm/internal/session"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

// DefaultMaxUploadSize matches the server's per-file request cap.
const DefaultMaxUploadSize = 16 << 20

var (
	ErrNotPermitted        = errors.New("action not permitted for current role")
	ErrTooLarge            = errors.New("file exceeds maximum upload size")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// Remote is the server surface the dispatcher drives.
type Remote interface {
	Upload(ctx context.Context, path string) (sharefile.Record, error)
	Delete(ctx context.Context, filename string) error
	Download(ctx context.Context, filename string) (io.ReadCloser, error)
}

// Config holds dispatcher settings.
type Config struct {
	Remote      Remote
	Guard       *session.Guard
	DownloadDir string
	// MaxUploadSize defaults to DefaultMaxUploadSize when zero.
	MaxUploadSize int64
	// AllowedExtensions limits uploads by extension (".pdf"). Empty
	// means any extension.
	AllowedExtensions []string
	// OnDeleted, when set, is called after a delete is accepted by the
	// server, before the confirming file_deleted event arrives.
	OnDeleted func(filename string)
}

// UploadedFile describes one successfully uploaded file.
type UploadedFile struct {
	Name   string
	Record sharefile.Record
}

// Failure describes one file that could not be uploaded.
type Failure struct {
	Name string
	Err  error
}

// Result is the outcome of a batch upload. A batch is not atomic:
// files that pass land on the server even when siblings fail.
type Result struct {
	Uploaded []UploadedFile
	Failed   []Failure
}

// Summary renders a one-line outcome for status display.
func (r Result) Summary() string {
	switch {
	case len(r.Failed) == 0:
		return fmt.Sprintf("uploaded %d file(s)", len(r.Uploaded))
	case len(r.Uploaded) == 0:
		return fmt.Sprintf("all %d file(s) failed", len(r.Failed))
	default:
		return fmt.Sprintf("uploaded %d file(s), %d failed", len(r.Uploaded), len(r.Failed))
	}
}

// Dispatcher performs uploads, deletes and downloads against the
// server. It never mutates the local collection: the result of every
// action arrives back through the event stream.
type Dispatcher struct {
	remote      Remote
	guard       *session.Guard
	downloadDir string
	maxSize     int64
	allowedExts map[string]bool
	onDeleted   func(string)
}

// New creates a dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	maxSize := cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	var exts map[string]bool
	if len(cfg.AllowedExtensions) > 0 {
		exts = make(map[string]bool, len(cfg.AllowedExtensions))
		for _, e := range cfg.AllowedExtensions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[e] = true
		}
	}
	return &Dispatcher{
		remote:      cfg.Remote,
		guard:       cfg.Guard,
		downloadDir: cfg.DownloadDir,
		maxSize:     maxSize,
		allowedExts: exts,
		onDeleted:   cfg.OnDeleted,
	}
}

// Precheck rejects a file locally before any bytes leave the machine.
func (d *Dispatcher) Precheck(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	if info.Size() > d.maxSize {
		return fmt.Errorf("%w: %s is %d bytes (limit %d)",
			ErrTooLarge, filepath.Base(path), info.Size(), d.maxSize)
	}
	if d.allowedExts != nil {
		ext := strings.ToLower(filepath.Ext(path))
		if !d.allowedExts[ext] {
			return fmt.Errorf("%w: %s", ErrExtensionNotAllowed, filepath.Base(path))
		}
	}
	return nil
}

// Upload sends each path to the server, collecting per-file outcomes.
// A file that fails its precheck or its request does not stop the rest
// of the batch.
func (d *Dispatcher) Upload(ctx context.Context, paths []string) Result {
	var res Result
	if d.guard != nil && !d.guard.Permission().CanUpload() {
		for _, p := range paths {
			res.Failed = append(res.Failed, Failure{Name: filepath.Base(p), Err: ErrNotPermitted})
		}
		return res
	}
	for _, p := range paths {
		name := filepath.Base(p)
		if err := d.Precheck(p); err != nil {
			res.Failed = append(res.Failed, Failure{Name: name, Err: err})
			continue
		}
		rec, err := d.remote.Upload(ctx, p)
		if err != nil {
			res.Failed = append(res.Failed, Failure{Name: name, Err: err})
			continue
		}
		res.Uploaded = append(res.Uploaded, UploadedFile{Name: name, Record: rec})
	}
	return res
}

// Delete removes a file on the server. Callers confirm with the user
// first; the collection itself is updated only by the resulting
// file_deleted event.
func (d *Dispatcher) Delete(ctx context.Context, filename string) error {
	if d.guard != nil && !d.guard.Permission().CanDelete() {
		return ErrNotPermitted
	}
	if err := d.remote.Delete(ctx, filename); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	if d.onDeleted != nil {
		d.onDeleted(filename)
	}
	return nil
}

// Download fetches a file into the download directory and returns the
// written path. An existing file with the same name is never
// overwritten; a numeric suffix is chosen instead.
func (d *Dispatcher) Download(ctx context.Context, filename string) (string, error) {
	body, err := d.remote.Download(ctx, filename)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", filename, err)
	}
	defer body.Close()

	if err := os.MkdirAll(d.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dest, err := availableName(d.downloadDir, filename)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dest, err)
	}
	return dest, nil
}

// availableName picks a destination path inside dir that does not
// collide with an existing file. The server-supplied name is reduced
// to its base so it cannot escape dir.
func availableName(dir, filename string) (string, error) {
	base := filepath.Base(filepath.Clean(filename))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("unusable filename %q", filename)
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	dest := filepath.Join(dir, base)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest, nil
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
}
