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
	"fmt"
	"math"

	"github.com/Comcast/fibers/core"

	lua "github.com/yuin/gopher-lua"
)

// maxDepth bounds conversion of nested tables.
const maxDepth = 64

// toLua converts a Go value to a Lua value.
//
// Values that aren't JSON-ish go through core.Canonicalize first.  An
// *core.AppError becomes userdata so that it survives a round trip.
func toLua(L *lua.LState, x interface{}) lua.LValue {
	return toLuaDepth(L, x, 0)
}

func toLuaDepth(L *lua.LState, x interface{}, depth int) lua.LValue {
	if maxDepth < depth {
		return lua.LNil
	}
	depth++

	switch vv := x.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return vv
	case bool:
		return lua.LBool(vv)
	case string:
		return lua.LString(vv)
	case []byte:
		return lua.LString(vv)
	case int:
		return lua.LNumber(vv)
	case int8:
		return lua.LNumber(vv)
	case int16:
		return lua.LNumber(vv)
	case int32:
		return lua.LNumber(vv)
	case int64:
		return lua.LNumber(vv)
	case uint:
		return lua.LNumber(vv)
	case uint8:
		return lua.LNumber(vv)
	case uint16:
		return lua.LNumber(vv)
	case uint32:
		return lua.LNumber(vv)
	case uint64:
		return lua.LNumber(vv)
	case float32:
		return lua.LNumber(vv)
	case float64:
		return lua.LNumber(vv)
	case error:
		if ae, is := vv.(*core.AppError); is {
			ud := L.NewUserData()
			ud.Value = ae
			return ud
		}
		return lua.LString(vv.Error())
	case []interface{}:
		t := L.CreateTable(len(vv), 0)
		for i, y := range vv {
			t.RawSetInt(i+1, toLuaDepth(L, y, depth))
		}
		return t
	case []string:
		t := L.CreateTable(len(vv), 0)
		for i, s := range vv {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case map[string]interface{}:
		t := L.CreateTable(0, len(vv))
		for k, y := range vv {
			t.RawSetString(k, toLuaDepth(L, y, depth))
		}
		return t
	case map[string]string:
		t := L.CreateTable(0, len(vv))
		for k, s := range vv {
			t.RawSetString(k, lua.LString(s))
		}
		return t
	case fmt.Stringer:
		return lua.LString(vv.String())
	}

	y, err := core.Canonicalize(x)
	if err != nil {
		return lua.LString(fmt.Sprintf("%v", x))
	}
	return toLuaDepth(L, y, depth)
}

// fromLua converts a Lua value to a Go value.
//
// Integral numbers become int64.  A table with keys 1..n (and no
// others) becomes a []interface{}.  Any other table becomes a
// map[string]interface{} with non-string keys rendered as strings.
// Cycles and functions become nil.
func fromLua(v lua.LValue) interface{} {
	return fromLuaSeen(v, make(map[*lua.LTable]bool), 0)
}

func fromLuaSeen(v lua.LValue, seen map[*lua.LTable]bool, depth int) interface{} {
	if maxDepth < depth {
		return nil
	}
	depth++

	switch vv := v.(type) {
	case nil:
		return nil
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(vv)
	case lua.LString:
		return string(vv)
	case lua.LNumber:
		return number(vv)
	case *lua.LUserData:
		return vv.Value
	case *lua.LTable:
		if seen[vv] {
			return nil
		}
		seen[vv] = true
		defer delete(seen, vv)

		if n := vv.Len(); 0 < n && countKeys(vv) == n {
			acc := make([]interface{}, n)
			for i := 1; i <= n; i++ {
				acc[i-1] = fromLuaSeen(vv.RawGetInt(i), seen, depth)
			}
			return acc
		}

		acc := make(map[string]interface{})
		vv.ForEach(func(k, x lua.LValue) {
			acc[keyString(k)] = fromLuaSeen(x, seen, depth)
		})
		return acc
	default:
		return nil
	}
}

func number(n lua.LNumber) interface{} {
	f := float64(n)
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) {
		n++
	})
	return n
}

func keyString(k lua.LValue) string {
	if n, is := k.(lua.LNumber); is {
		return fmt.Sprintf("%v", number(n))
	}
	return k.String()
}

// fromLuaArgs converts the arguments on L's stack.
func fromLuaArgs(L *lua.LState) []interface{} {
	n := L.GetTop()
	acc := make([]interface{}, n)
	for i := 1; i <= n; i++ {
		acc[i-1] = fromLua(L.Get(i))
	}
	return acc
}
