package hooks

import (
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/reconcile"
	"github.com/aviellagerev/shareterm/internal/sharefile"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestDispatchFileAdded(t *testing.T) {
	r, err := Load(writeScript(t, `
		seen = {}
		function on_file_added(file)
			seen.filename = file.filename
			seen.uploader = file.uploader
			seen.own = file.own
		end
	`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer r.Close()

	r.Dispatch(reconcile.Change{
		Kind:     reconcile.ChangeFileAdded,
		Filename: "a.txt",
		File:     sharefile.Record{Filename: "a.txt", Uploader: "bob", Size: 3},
	})

	seen, ok := r.L.GetGlobal("seen").(*lua.LTable)
	if !ok {
		t.Fatal("seen table missing")
	}
	if got := lua.LVAsString(seen.RawGetString("filename")); got != "a.txt" {
		t.Fatalf("filename = %q", got)
	}
	if got := lua.LVAsString(seen.RawGetString("uploader")); got != "bob" {
		t.Fatalf("uploader = %q", got)
	}
}

func TestDispatchPermissionUpdated(t *testing.T) {
	r, err := Load(writeScript(t, `
		function on_permission_updated(from, to)
			transition = from .. "->" .. to
		end
	`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer r.Close()

	r.Dispatch(reconcile.Change{
		Kind:       reconcile.ChangeOwnPermission,
		Previous:   account.PermAdmin,
		Permission: account.PermRead,
	})

	if got := lua.LVAsString(r.L.GetGlobal("transition")); got != "admin->read" {
		t.Fatalf("transition = %q", got)
	}
}

func TestMissingHandlerIsSkipped(t *testing.T) {
	r, err := Load(writeScript(t, `function on_file_added(f) end`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer r.Close()

	// No on_file_deleted defined; must be a silent no-op.
	r.Dispatch(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "x"})
}

func TestHandlerErrorDoesNotPanic(t *testing.T) {
	r, err := Load(writeScript(t, `
		function on_file_deleted(name)
			error("deliberate failure")
		end
	`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer r.Close()

	r.Dispatch(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "x"})
}

func TestTableReturnStyle(t *testing.T) {
	r, err := Load(writeScript(t, `
		local m = {}
		function m.on_file_deleted(name)
			deleted = name
		end
		return m
	`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer r.Close()

	r.Dispatch(reconcile.Change{Kind: reconcile.ChangeFileRemoved, Filename: "gone.txt"})
	if got := lua.LVAsString(r.L.GetGlobal("deleted")); got != "gone.txt" {
		t.Fatalf("deleted = %q", got)
	}
}

func TestLoadFailure(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatal("expected error for missing script")
	}
}
