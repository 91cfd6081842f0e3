package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a file must stay quiet after its last
// write before it is considered complete.
const DefaultSettleDelay = 2 * time.Second

// Validator screens candidate paths before they are handed off.
type Validator interface {
	Validate(path string) error
}

// Config wires a Watcher to its drop directory and consumer.
type Config struct {
	Dir string
	// SettleDelay defaults to DefaultSettleDelay when zero.
	SettleDelay time.Duration
	// Validator is optional; rejected paths are logged and skipped.
	Validator Validator
	// OnFile receives each settled file path. Required.
	OnFile func(path string)
	// ScanExisting also hands off files already present at startup.
	ScanExisting bool
}

// Watcher monitors a drop directory and reports files once they have
// stopped changing. Editors and browsers write downloads in bursts;
// settling avoids uploading half-written files.
type Watcher struct {
	dir      string
	delay    time.Duration
	validate Validator
	onFile   func(string)
	scan     bool

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: directory is required")
	}
	if cfg.OnFile == nil {
		return nil, errors.New("watch: OnFile is required")
	}
	delay := cfg.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Watcher{
		dir:      cfg.Dir,
		delay:    delay,
		validate: cfg.Validator,
		onFile:   cfg.OnFile,
		scan:     cfg.ScanExisting,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	if w.scan {
		if err := w.scanExisting(); err != nil {
			log.Printf("watch: initial scan: %v", err)
		}
	}

	defer w.cancelPending()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				w.schedule(ev.Name)
			}
			if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				w.forget(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

func (w *Watcher) scanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.schedule(filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// schedule starts or resets the settle timer for a path.
func (w *Watcher) schedule(path string) {
	if skipName(filepath.Base(path)) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[path] = time.AfterFunc(w.delay, func() { w.settled(path) })
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) settled(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if w.validate != nil {
		if err := w.validate.Validate(path); err != nil {
			log.Printf("watch: skipping %s: %v", path, err)
			return
		}
	}
	w.onFile(path)
}

// skipName filters editor temp files and in-progress downloads.
func skipName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".part", ".crdownload", ".swp":
		return true
	}
	return strings.HasSuffix(name, "~")
}
