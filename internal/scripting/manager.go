package scripting

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// SuppressHook is the global Lua function consulted before every production task.
const SuppressHook = "suppress"

// Manager owns one sandboxed LState and exposes hook dispatch.
//
// Manager is safe for concurrent use: an LState is single-threaded, so every call
// holds the mutex. Each hook call gets a fresh instruction budget.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	cancel    func()
	instLimit int
	logger    *zap.Logger

	// IsTool backs autohtn.is_tool(name). nil = always false.
	IsTool func(name string) bool
}

// NewManager creates a Manager with no script loaded.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager; CallHook is a no-op until a script is loaded.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	return &Manager{instLimit: normalizeLimit(instLimit), logger: logger}
}

// LoadFile creates a fresh VM, registers the autohtn module and executes path.
// A previously loaded VM is replaced only on success.
//
// Precondition: path must name a readable Lua file.
// Postcondition: returns error on Lua load failure.
func (m *Manager) LoadFile(path string) error {
	return m.load(path, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is LoadFile for an in-memory chunk; name is only used in errors.
func (m *Manager) LoadString(name, src string) error {
	return m.load(name, func(L *lua.LState) error { return L.DoString(src) })
}

func (m *Manager) load(name string, run func(*lua.LState) error) error {
	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)
	if err := run(L); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: loading %q: %w", name, err)
	}

	m.mu.Lock()
	if m.L != nil {
		m.cancel()
		m.L.Close()
	}
	m.L = L
	m.cancel = cancel
	m.mu.Unlock()
	return nil
}

// CallHook calls the named Lua global function. Returns (LNil, nil) if no script
// is loaded or the hook is not defined. Lua runtime errors, including an exhausted
// instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.L == nil {
		return lua.LNil, nil
	}
	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	ctx, cancel := newCountingContext(m.instLimit)
	defer cancel()
	m.L.SetContext(ctx)

	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}

// Suppress asks the suppress hook whether producing item should be vetoed.
//
// Postcondition: true only when the hook exists and returns Lua true.
func (m *Manager) Suppress(agent, item string, depth int, inGoal, isTool bool) bool {
	ret, _ := m.CallHook(SuppressHook,
		lua.LString(agent), lua.LString(item), lua.LNumber(depth), lua.LBool(inGoal), lua.LBool(isTool))
	return ret == lua.LTrue
}

// HasHook reports whether a loaded script defines the global function hook.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return false
	}
	_, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.cancel()
		m.L.Close()
		m.L = nil
	}
}
