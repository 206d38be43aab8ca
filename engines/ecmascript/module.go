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

package ecmascript

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/fibers/capabilities"
	"github.com/Comcast/fibers/core"

	"github.com/dop251/goja"
)

//go:embed fiber.js
var prelude string

// install builds the global "fiber" object: log levels, the shutdown
// Symbol, fail, require, the given capabilities, and the helpers in
// fiber.js.
func (e *Engine) install(caps *core.Capabilities) error {
	vm := e.vm
	e.fiber = vm.NewObject()
	e.shutdown = goja.NewSymbol("fiber.shutdown")

	for name, level := range capabilities.Levels {
		e.fiber.Set(name, level)
	}
	e.fiber.Set("engine", e.Name())
	e.fiber.Set("shutdown", e.shutdown)
	e.fiber.Set("fail", e.fail)
	e.fiber.Set("require", e.require)

	caps.Each(func(c *core.Capability) {
		e.fiber.Set(c.Name, e.capability(c))
	})

	v, err := vm.RunString(prelude)
	if err != nil {
		return err
	}
	f, is := goja.AssertFunction(v)
	if !is {
		return fmt.Errorf("prelude is a %T", v)
	}
	if _, err = f(goja.Undefined(), e.fiber); err != nil {
		return err
	}

	return vm.Set("fiber", e.fiber)
}

// fail(message[, value]) returns an application error, which a
// worker can return as its result.
func (e *Engine) fail(call goja.FunctionCall) goja.Value {
	ae := &core.AppError{
		Message: "application error",
	}
	if s := call.Argument(0); !goja.IsUndefined(s) {
		ae.Message = s.String()
	}
	if 1 < len(call.Arguments) {
		ae.Value = export(call.Argument(1))
	}
	return e.vm.ToValue(ae)
}

// require(name) loads ModuleDir/name.js in CommonJS style and caches
// the module's exports.
func (e *Engine) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	if m, have := e.modules[name]; have {
		return m
	}
	if name == "" || strings.Contains(name, "..") {
		panic(e.vm.NewTypeError("bad module name '%s'", name))
	}

	filename := filepath.Join(e.ModuleDir, name+".js")
	bs, err := os.ReadFile(filename)
	if err != nil {
		e.throw(err)
	}
	src := "(function (module, exports, fiber) {\n" + string(bs) + "\n})"
	v, err := e.vm.RunScript(filename, src)
	if err != nil {
		e.throw(err)
	}
	f, is := goja.AssertFunction(v)
	if !is {
		panic(e.vm.NewTypeError("module '%s' didn't compile to a function", name))
	}

	module := e.vm.NewObject()
	exports := e.vm.NewObject()
	module.Set("exports", exports)
	if _, err = f(goja.Undefined(), module, exports, e.fiber); err != nil {
		e.throw(err)
	}

	m := module.Get("exports")
	e.modules[name] = m
	return m
}

// throw raises err as a JavaScript exception.
func (e *Engine) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		panic(ex.Value())
	}
	panic(e.vm.NewGoError(err))
}

// capability wraps a Capability as a JavaScript function.  A Go error
// is thrown.
func (e *Engine) capability(c *core.Capability) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = export(a)
		}
		x, err := c.Fn(e.context(), args)
		if err != nil {
			e.throw(fmt.Errorf("%s: %w", c.Name, err))
		}
		return e.vm.ToValue(x)
	}
}
