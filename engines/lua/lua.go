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

// Package lua provides a core.Engine based on gopher-lua.
//
// Fibers are Lua coroutines.  The driver is the script's main chunk
// running in its own thread.  The script performs its setup, yields
// once, and then receives (action, payload) from each resume.  It
// answers with a coroutine made by coroutine.create.  The shutdown
// request arrives as (fiber.shutdown, nil), and fiber.shutdown is a
// table that no action string can equal.
//
// A worker reports an application error by returning nil and a
// message (or by returning fiber.fail(message)).
//
// See https://github.com/yuin/gopher-lua.
package lua

import (
	"context"
	_ "embed"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Comcast/fibers/core"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed driver.lua
var DefaultDriver string

// Engine implements core.Engine with gopher-lua.
type Engine struct {
	// ModuleDir, if not empty, is added to package.path.
	ModuleDir string

	// CallStackSize and RegistrySize are passed to lua.NewState.
	// Zero means gopher-lua's defaults.
	CallStackSize int
	RegistrySize  int

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	state    *lua.LState
	driver   *lua.LState
	cancel   context.CancelFunc
	main     *lua.LFunction
	resume   *lua.LFunction
	shutdown *lua.LTable
	ctx      context.Context

	// handed holds every coroutine already given to the host as a
	// worker.
	handed map[*lua.LState]bool
}

// NewEngine makes an Engine with default settings.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "lua"
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *Engine) Load(ctx context.Context, src *core.Source, caps *core.Capabilities) error {
	label := "load '" + src.Label() + "' failed"
	if e.state != nil {
		return core.NewFault(core.ErrorRuntime, label, "engine already loaded")
	}

	e.ctx = ctx
	L := lua.NewState(lua.Options{
		CallStackSize: e.CallStackSize,
		RegistrySize:  e.RegistrySize,
	})
	e.state = L

	if e.ModuleDir != "" {
		pkg := L.GetGlobal("package")
		path := lua.LVAsString(L.GetField(pkg, "path"))
		path += ";" + filepath.Join(e.ModuleDir, "?.lua") +
			";" + filepath.Join(e.ModuleDir, "?", "init.lua")
		L.SetField(pkg, "path", lua.LString(path))
	}

	if err := e.install(L, caps); err != nil {
		return core.NewFault(loadCode(err), "install fiber module failed", diagnostic(err))
	}

	resume, is := L.GetField(L.GetGlobal("coroutine"), "resume").(*lua.LFunction)
	if !is {
		return core.NewFault(core.ErrorRuntime, label, "coroutine.resume is missing")
	}
	e.resume = resume

	var (
		fn  *lua.LFunction
		err error
	)
	switch {
	case src.Empty():
		fn, err = L.Load(strings.NewReader(DefaultDriver), "driver.lua")
	case src.Path != "":
		fn, err = L.LoadFile(src.Path)
	default:
		name := src.Name
		if name == "" {
			name = "<string>"
		}
		fn, err = L.Load(strings.NewReader(src.Code), name)
	}
	if err != nil {
		return core.NewFault(loadCode(err), label, diagnostic(err))
	}
	e.main = fn
	e.driver, e.cancel = L.NewThread()

	e.logger().Debug("driver loaded", zap.String("source", src.Label()))

	return nil
}

func (e *Engine) Start(ctx context.Context) *core.Outcome {
	return e.resumeDriver(ctx)
}

func (e *Engine) Resume(ctx context.Context, req core.Request) *core.Outcome {
	if e.state == nil {
		return core.Failure(core.ErrorRuntime, "engine closed")
	}
	switch vv := req.(type) {
	case *core.ActionRequest:
		return e.resumeDriver(ctx, lua.LString(vv.Action), toLua(e.state, vv.Payload))
	case *core.ShutdownRequest:
		return e.resumeDriver(ctx, e.shutdown, lua.LNil)
	default:
		return core.Failure(core.ErrorRuntime, "unknown request")
	}
}

func (e *Engine) resumeDriver(ctx context.Context, args ...lua.LValue) (out *core.Outcome) {
	if e.driver == nil {
		return core.Failure(core.ErrorRuntime, "engine not loaded")
	}
	defer e.guard(&out)
	e.ctx = ctx

	st, err, vs := e.state.Resume(e.driver, e.main, args...)
	switch st {
	case lua.ResumeError:
		return failure(err)
	case lua.ResumeYield:
		return core.Suspend(e.yielded(vs)...)
	default:
		return core.Complete(values(vs)...)
	}
}

// yielded converts what the driver yielded.  Fresh coroutines become
// Workers.  The driver's own thread and coroutines that were handed
// out before are passed along as is, which the host will reject.
func (e *Engine) yielded(vs []lua.LValue) []interface{} {
	acc := make([]interface{}, len(vs))
	for i, v := range vs {
		if th, is := v.(*lua.LState); is {
			if th == e.driver || e.handed[th] {
				acc[i] = th
			} else {
				if e.handed == nil {
					e.handed = make(map[*lua.LState]bool)
				}
				e.handed[th] = true
				acc[i] = &worker{
					e:  e,
					co: th,
				}
			}
			continue
		}
		acc[i] = fromLua(v)
	}
	return acc
}

func values(vs []lua.LValue) []interface{} {
	acc := make([]interface{}, len(vs))
	for i, v := range vs {
		acc[i] = fromLua(v)
	}
	return acc
}

func (e *Engine) guard(out **core.Outcome) {
	if r := recover(); r != nil {
		e.logger().Warn("recovered", zap.Any("panic", r))
		if err, is := r.(error); is {
			*out = failure(err)
			return
		}
		*out = core.Failure(core.ErrorRuntime, r)
	}
}

func (e *Engine) Close() error {
	if e.state == nil {
		return nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.state.Close()
	e.state = nil
	e.driver = nil
	e.main = nil
	e.resume = nil
	e.shutdown = nil
	e.handed = nil
	e.logger().Debug("closed")
	return nil
}

// worker is a coroutine yielded by the driver.
type worker struct {
	e    *Engine
	co   *lua.LState
	used bool
}

// Resume calls coroutine.resume on the worker from the main thread.
// The driver is suspended at the time and regains control only at
// its next resume.
func (w *worker) Resume(ctx context.Context) (out *core.Outcome) {
	e := w.e
	if e.state == nil {
		return core.Failure(core.ErrorRuntime, "engine closed")
	}
	if w.used {
		return core.Failure(core.ErrorRuntime, "cannot resume dead coroutine")
	}
	w.used = true

	defer e.guard(&out)
	e.ctx = ctx

	L := e.state
	top := L.GetTop()
	defer L.SetTop(top)

	err := L.CallByParam(lua.P{
		Fn:      e.resume,
		NRet:    lua.MultRet,
		Protect: true,
	}, w.co)
	if err != nil {
		return failure(err)
	}

	vs := make([]lua.LValue, 0, L.GetTop()-top)
	for i := top + 1; i <= L.GetTop(); i++ {
		vs = append(vs, L.Get(i))
	}
	if len(vs) == 0 || lua.LVIsFalse(vs[0]) {
		var diag lua.LValue = lua.LNil
		if 1 < len(vs) {
			diag = vs[1]
		}
		return core.Failure(code(diag.String()), errValue(diag))
	}

	if w.co.Dead {
		return core.Complete(values(vs[1:])...)
	}
	return core.Suspend(values(vs[1:])...)
}

// loadCode maps a load error to a StatusCode.
func loadCode(err error) core.StatusCode {
	var ae *lua.ApiError
	if errors.As(err, &ae) {
		switch ae.Type {
		case lua.ApiErrorFile:
			return core.ErrorFile
		case lua.ApiErrorSyntax:
			return core.ErrorSyntax
		}
	}
	return code(err.Error())
}

// overflow matches gopher-lua's own stack and registry overflow
// errors: the bare message, optionally preceded by a "chunk:line:"
// location.  A script's error message that merely mentions an
// overflow doesn't match.
var overflow = regexp.MustCompile(`^(?:[^:\n]*:\d+:|\[G\]:)?\s*(?:stack|registry) overflow$|^lua callstack overflow`)

// code recognizes out-of-memory conditions in gopher-lua's error
// messages.  Everything else is a runtime error.
func code(msg string) core.StatusCode {
	if overflow.MatchString(strings.TrimSpace(msg)) {
		return core.ErrorMemory
	}
	return core.ErrorRuntime
}

func failure(err error) *core.Outcome {
	var ae *lua.ApiError
	if errors.As(err, &ae) && ae.Object != nil {
		return core.Failure(code(ae.Object.String()), errValue(ae.Object))
	}
	return core.Failure(code(err.Error()), err.Error())
}

func diagnostic(err error) interface{} {
	var ae *lua.ApiError
	if errors.As(err, &ae) && ae.Object != nil {
		return errValue(ae.Object)
	}
	return err.Error()
}

// errValue gives the Go version of an error object, which is usually
// a string.
func errValue(v lua.LValue) interface{} {
	if s, is := v.(lua.LString); is {
		return string(s)
	}
	if x := fromLua(v); x != nil {
		return x
	}
	return v.String()
}
