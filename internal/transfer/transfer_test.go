package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/session"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

type fakeRemote struct {
	uploaded  []string
	deleted   []string
	uploadErr error
	content   string
}

func (f *fakeRemote) Upload(ctx context.Context, path string) (sharefile.Record, error) {
	if f.uploadErr != nil {
		return sharefile.Record{}, f.uploadErr
	}
	f.uploaded = append(f.uploaded, filepath.Base(path))
	return sharefile.Record{Filename: filepath.Base(path)}, nil
}

func (f *fakeRemote) Delete(ctx context.Context, filename string) error {
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *fakeRemote) Download(ctx context.Context, filename string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func writeTemp(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestUploadBatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	small := writeTemp(t, dir, "small.txt", 10)
	big := writeTemp(t, dir, "big.bin", 200)
	ok := writeTemp(t, dir, "ok.txt", 50)

	remote := &fakeRemote{}
	d := New(Config{
		Remote:        remote,
		Guard:         session.NewGuard("alice", account.PermWrite),
		MaxUploadSize: 100,
	})

	res := d.Upload(context.Background(), []string{small, big, ok})
	if len(res.Uploaded) != 2 || len(res.Failed) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Failed[0].Name != "big.bin" || !errors.Is(res.Failed[0].Err, ErrTooLarge) {
		t.Fatalf("failure = %+v", res.Failed[0])
	}
	// The oversize file must never have produced a request.
	if len(remote.uploaded) != 2 {
		t.Fatalf("remote saw %v", remote.uploaded)
	}
	if got := res.Summary(); got != "uploaded 2 file(s), 1 failed" {
		t.Fatalf("summary = %q", got)
	}
}

func TestUploadExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	pdf := writeTemp(t, dir, "doc.PDF", 5)
	exe := writeTemp(t, dir, "tool.exe", 5)

	d := New(Config{Remote: &fakeRemote{}, AllowedExtensions: []string{"pdf", ".txt"}})
	res := d.Upload(context.Background(), []string{pdf, exe})
	if len(res.Uploaded) != 1 || res.Uploaded[0].Name != "doc.PDF" {
		t.Fatalf("uploaded = %+v", res.Uploaded)
	}
	if !errors.Is(res.Failed[0].Err, ErrExtensionNotAllowed) {
		t.Fatalf("failure = %+v", res.Failed[0])
	}
}

func TestUploadRequiresWriteRole(t *testing.T) {
	dir := t.TempDir()
	path := writeTemp(t, dir, "a.txt", 1)

	d := New(Config{
		Remote: &fakeRemote{},
		Guard:  session.NewGuard("alice", account.PermRead),
	})
	res := d.Upload(context.Background(), []string{path})
	if len(res.Failed) != 1 || !errors.Is(res.Failed[0].Err, ErrNotPermitted) {
		t.Fatalf("result = %+v", res)
	}
}

func TestDeleteRequiresDeleteRole(t *testing.T) {
	remote := &fakeRemote{}
	d := New(Config{Remote: remote, Guard: session.NewGuard("alice", account.PermWrite)})
	if err := d.Delete(context.Background(), "a.txt"); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v", err)
	}

	d = New(Config{Remote: remote, Guard: session.NewGuard("alice", account.PermDelete)})
	if err := d.Delete(context.Background(), "a.txt"); err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(remote.deleted) != 1 {
		t.Fatalf("remote saw %v", remote.deleted)
	}
}

func TestDeleteNotifiesOnDeleted(t *testing.T) {
	var notified []string
	remote := &fakeRemote{}
	d := New(Config{
		Remote:    remote,
		Guard:     session.NewGuard("alice", account.PermDelete),
		OnDeleted: func(name string) { notified = append(notified, name) },
	})

	if err := d.Delete(context.Background(), "a.txt"); err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(notified) != 1 || notified[0] != "a.txt" {
		t.Fatalf("notified = %v", notified)
	}

	// A rejected delete must not raise the notification.
	d = New(Config{
		Remote:    remote,
		Guard:     session.NewGuard("alice", account.PermRead),
		OnDeleted: func(name string) { notified = append(notified, name) },
	})
	if err := d.Delete(context.Background(), "b.txt"); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v", err)
	}
	if len(notified) != 1 {
		t.Fatalf("notified after rejection: %v", notified)
	}
}

func TestDownloadAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	remote := &fakeRemote{content: "hello"}
	d := New(Config{Remote: remote, DownloadDir: dir})

	first, err := d.Download(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := d.Download(context.Background(), "report.pdf")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first == second {
		t.Fatal("second download overwrote the first")
	}
	if filepath.Base(second) != "report (1).pdf" {
		t.Fatalf("second = %s", second)
	}
	data, err := os.ReadFile(second)
	if err != nil || string(data) != "hello" {
		t.Fatalf("content = %q, err = %v", data, err)
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{Remote: &fakeRemote{content: "x"}, DownloadDir: dir})

	path, err := d.Download(context.Background(), "../../etc/passwd")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("escaped download dir: %s", path)
	}
}

func TestSourceValidator(t *testing.T) {
	root := t.TempDir()
	v := NewSourceValidator([]string{root})

	if err := v.Validate(filepath.Join(root, "sub", "a.txt")); err != nil {
		t.Fatalf("inside root rejected: %v", err)
	}
	if err := v.Validate(filepath.Join(root, "..", "outside.txt")); err == nil {
		t.Fatal("escape accepted")
	}
	if err := (&SourceValidator{}).Validate("/anywhere"); err != nil {
		t.Fatalf("empty validator should allow: %v", err)
	}
}
