/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lua

import (
	_ "embed"
	"fmt"

	"github.com/Comcast/fibers/capabilities"
	"github.com/Comcast/fibers/core"

	lua "github.com/yuin/gopher-lua"
)

//go:embed fiber.lua
var prelude string

// install builds the "fiber" module, makes it a global, and
// preloads it for require.
//
// The module has the log levels, the shutdown sentinel, fail, the
// given capabilities, and the helpers in fiber.lua.
func (e *Engine) install(L *lua.LState, caps *core.Capabilities) error {
	mod := L.NewTable()

	for name, level := range capabilities.Levels {
		mod.RawSetString(name, lua.LNumber(level))
	}
	mod.RawSetString("engine", lua.LString(e.Name()))

	e.shutdown = L.NewTable()
	mt := L.NewTable()
	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("fiber.shutdown"))
		return 1
	}))
	L.SetMetatable(e.shutdown, mt)
	mod.RawSetString("shutdown", e.shutdown)

	mod.RawSetString("fail", L.NewFunction(fail))

	caps.Each(func(c *core.Capability) {
		mod.RawSetString(c.Name, L.NewFunction(e.capability(c)))
	})

	fn, err := L.LoadString(prelude)
	if err != nil {
		return err
	}
	L.Push(fn)
	L.Push(mod)
	if err = L.PCall(1, 0, nil); err != nil {
		return err
	}

	L.SetGlobal("fiber", mod)
	L.PreloadModule("fiber", func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})

	return nil
}

// fail(message[, value]) returns an application error, which a
// worker can return as its result.
func fail(L *lua.LState) int {
	ae := &core.AppError{
		Message: L.OptString(1, "application error"),
	}
	if 1 < L.GetTop() {
		ae.Value = fromLua(L.Get(2))
	}
	ud := L.NewUserData()
	ud.Value = ae
	L.Push(ud)
	return 1
}

// capability wraps a Capability as a Lua function.  A Go error comes
// back as a second return value after nil.
func (e *Engine) capability(c *core.Capability) lua.LGFunction {
	return func(L *lua.LState) (n int) {
		defer func() {
			if r := recover(); r != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(fmt.Sprintf("%s: %v", c.Name, r)))
				n = 2
			}
		}()
		x, err := c.Fn(e.context(), fromLuaArgs(L))
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(toLua(L, x))
		return 1
	}
}
