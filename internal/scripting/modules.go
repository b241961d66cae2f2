package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the autohtn Lua table into L:
//
//	autohtn.log(msg)        debug-level log line
//	autohtn.is_tool(name)   true if name is a declared tool
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: autohtn global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Debug("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetField(mod, "is_tool", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(lua.LBool(m.IsTool != nil && m.IsTool(name)))
		return 1
	}))
	L.SetGlobal("autohtn", mod)
}
