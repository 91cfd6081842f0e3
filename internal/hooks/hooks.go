package hooks

import (
	"fmt"
	"log"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/reconcile"
)

// Handler names the hook script may define. A script defines only the
// ones it cares about; the rest are skipped.
const (
	handlerFileAdded         = "on_file_added"
	handlerFileDeleted       = "on_file_deleted"
	handlerPermissionUpdated = "on_permission_updated"
	handlerUserRegistered    = "on_user_registered"
	handlerUserDeleted       = "on_user_deleted"
)

// Runner executes a user-provided Lua hook script against reconciled
// changes. Hook failures are logged and never propagate: a broken
// script must not take the client down.
type Runner struct {
	mu sync.Mutex
	L  *lua.LState
}

// Load creates a runner from a hook script. The script may define
// handlers as globals or return them in a table.
func Load(path string) (*Runner, error) {
	L := lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load hook script %s: %w", path, err)
	}
	return &Runner{L: L}, nil
}

// Close shuts down the Lua state.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}

// Dispatch runs the handler matching the change, if the script
// defines one.
func (r *Runner) Dispatch(c reconcile.Change) {
	switch c.Kind {
	case reconcile.ChangeFileAdded:
		tbl := r.newTable()
		r.setString(tbl, "filename", c.Filename)
		r.setString(tbl, "uploader", c.File.Uploader)
		r.mu.Lock()
		tbl.RawSetString("size", lua.LNumber(c.File.Size))
		tbl.RawSetString("own", lua.LBool(c.Self))
		r.mu.Unlock()
		r.call(handlerFileAdded, tbl)
	case reconcile.ChangeFileRemoved:
		r.call(handlerFileDeleted, lua.LString(c.Filename))
	case reconcile.ChangeOwnPermission:
		r.call(handlerPermissionUpdated,
			lua.LString(string(c.Previous)), lua.LString(string(c.Permission)))
	case reconcile.ChangeUserAdded:
		r.call(handlerUserRegistered, lua.LString(c.User.Username))
	case reconcile.ChangeUserRemoved:
		r.call(handlerUserDeleted, lua.LString(c.User.Username))
	}
}

// NotifyRole lets the app report the initial role at startup, so a
// script can size its own state before any change arrives.
func (r *Runner) NotifyRole(p account.Permission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.SetGlobal("role", lua.LString(string(p)))
}

func (r *Runner) newTable() *lua.LTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.L.NewTable()
}

func (r *Runner) setString(tbl *lua.LTable, key, val string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl.RawSetString(key, lua.LString(val))
}

// call invokes a handler by name. Missing handlers are skipped;
// handler errors are logged.
func (r *Runner) call(name string, args ...lua.LValue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn := r.handler(name)
	if fn == nil {
		return
	}
	if err := r.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		log.Printf("hooks: %s failed: %v", name, err)
	}
}

// handler finds a hook function, either in the table the script
// returned or as a global.
func (r *Runner) handler(name string) lua.LValue {
	top := r.L.Get(-1)
	if tbl, ok := top.(*lua.LTable); ok {
		if fn, ok := tbl.RawGetString(name).(*lua.LFunction); ok {
			return fn
		}
	}
	if fn, ok := r.L.GetGlobal(name).(*lua.LFunction); ok {
		return fn
	}
	return nil
}
