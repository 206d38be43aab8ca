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

// Package ecmascript provides a core.Engine based on Goja, which is a
// Go implementation of ECMAScript 5.1+.
//
// Fibers are generators.  A driver script evaluates to a generator
// function, which the engine calls with the "fiber" object.  The
// generator performs its setup and yields once.  Each resume then
// delivers a request {action, payload}, and the driver answers by
// yielding a generator object: the worker.  The shutdown request has
// action fiber.shutdown, which is a Symbol.
//
// A worker reports an application error by returning
// fiber.fail(message).
//
// See https://github.com/dop251/goja.
package ecmascript

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Comcast/fibers/core"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

//go:embed driver.js
var DefaultDriver string

// DefaultMaxCallStackSize is used when an Engine's MaxCallStackSize
// is zero.
var DefaultMaxCallStackSize = 1024

// Engine implements core.Engine with Goja.
type Engine struct {
	// ModuleDir is where fiber.require finds modules.  Empty
	// means the current directory.
	ModuleDir string

	// MaxCallStackSize bounds the JavaScript call stack.
	MaxCallStackSize int

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	vm       *goja.Runtime
	prog     *goja.Program
	fiber    *goja.Object
	shutdown *goja.Symbol
	driver   *goja.Object
	next     goja.Callable
	modules  map[string]goja.Value
	ctx      context.Context

	// handed holds every generator already given to the host as a
	// worker.
	handed map[*goja.Object]bool
}

// NewEngine makes an Engine with default settings.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "ecmascript"
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
	if e.vm != nil {
		return core.NewFault(core.ErrorRuntime, label, "engine already loaded")
	}
	e.ctx = ctx

	var (
		name = src.Label()
		text string
	)
	switch {
	case src.Empty():
		name, text = "driver.js", DefaultDriver
	case src.Path != "":
		bs, err := os.ReadFile(src.Path)
		if err != nil {
			return core.NewFault(core.ErrorFile, label, err)
		}
		text = string(bs)
	default:
		text = src.Code
	}

	p, err := goja.Compile(name, text, false)
	if err != nil {
		return core.NewFault(core.ErrorSyntax, label, err)
	}
	e.prog = p

	e.vm = goja.New()
	max := e.MaxCallStackSize
	if max <= 0 {
		max = DefaultMaxCallStackSize
	}
	e.vm.SetMaxCallStackSize(max)
	e.modules = make(map[string]goja.Value)

	if err := e.install(caps); err != nil {
		return core.NewFault(code(err.Error()), "install fiber object failed", err)
	}

	e.logger().Debug("driver loaded", zap.String("source", src.Label()))

	return nil
}

// Start runs the program, calls the resulting generator function,
// and then calls the generator's next() the first time.
func (e *Engine) Start(ctx context.Context) (out *core.Outcome) {
	if e.prog == nil {
		return core.Failure(core.ErrorRuntime, "engine not loaded")
	}
	defer e.guard(&out)
	e.ctx = ctx

	v, err := e.vm.RunProgram(e.prog)
	if err != nil {
		return failure(err)
	}
	f, is := goja.AssertFunction(v)
	if !is {
		return core.Failure(core.ErrorRuntime, "driver script must evaluate to a generator function")
	}
	g, err := f(goja.Undefined(), e.fiber)
	if err != nil {
		return failure(err)
	}
	obj, is := g.(*goja.Object)
	if !is || !isGenerator(obj) {
		return core.Failure(core.ErrorRuntime, "driver function didn't return a generator")
	}
	e.driver = obj
	e.next, _ = goja.AssertFunction(obj.Get("next"))

	return e.step(e.driver, e.next, true)
}

func (e *Engine) Resume(ctx context.Context, req core.Request) (out *core.Outcome) {
	if e.next == nil {
		return core.Failure(core.ErrorRuntime, "engine not started")
	}
	defer e.guard(&out)
	e.ctx = ctx

	r := e.vm.NewObject()
	switch vv := req.(type) {
	case *core.ActionRequest:
		r.Set("action", vv.Action)
		r.Set("payload", e.vm.ToValue(vv.Payload))
	case *core.ShutdownRequest:
		r.Set("action", e.shutdown)
	default:
		return core.Failure(core.ErrorRuntime, "unknown request")
	}

	return e.step(e.driver, e.next, true, r)
}

// step calls a generator's next() and interprets the result.
func (e *Engine) step(g *goja.Object, next goja.Callable, driver bool, args ...goja.Value) *core.Outcome {
	v, err := next(g, args...)
	if err != nil {
		return failure(err)
	}
	res := v.ToObject(e.vm)
	value := res.Get("value")
	if res.Get("done").ToBoolean() {
		return core.Complete(export(value))
	}
	if driver {
		return core.Suspend(e.yielded(value))
	}
	return core.Suspend(export(value))
}

// yielded converts what the driver yielded.  Fresh generator objects
// become Workers.  The driver itself and generators that were handed
// out before are passed along as is, which the host will reject.
func (e *Engine) yielded(v goja.Value) interface{} {
	if obj, is := v.(*goja.Object); is && isGenerator(obj) {
		if obj == e.driver || e.handed[obj] {
			return obj
		}
		if e.handed == nil {
			e.handed = make(map[*goja.Object]bool)
		}
		e.handed[obj] = true
		next, _ := goja.AssertFunction(obj.Get("next"))
		return &worker{
			e:    e,
			g:    obj,
			next: next,
		}
	}
	return export(v)
}

// isGenerator reports whether the object looks like a generator:
// next, return, and throw are all functions.
func isGenerator(obj *goja.Object) bool {
	for _, name := range []string{"next", "return", "throw"} {
		if _, is := goja.AssertFunction(obj.Get(name)); !is {
			return false
		}
	}
	return true
}

func (e *Engine) guard(out **core.Outcome) {
	if r := recover(); r != nil {
		e.logger().Warn("recovered", zap.Any("panic", r))
		if err, is := r.(error); is {
			*out = failure(err)
			return
		}
		msg := fmt.Sprintf("%v", r)
		*out = core.Failure(code(msg), msg)
	}
}

// Close drops the runtime.
func (e *Engine) Close() error {
	if e.vm == nil {
		return nil
	}
	e.vm = nil
	e.prog = nil
	e.fiber = nil
	e.driver = nil
	e.next = nil
	e.modules = nil
	e.handed = nil
	e.logger().Debug("closed")
	return nil
}

type worker struct {
	e    *Engine
	g    *goja.Object
	next goja.Callable
	used bool
}

func (w *worker) Resume(ctx context.Context) (out *core.Outcome) {
	e := w.e
	if e.vm == nil {
		return core.Failure(core.ErrorRuntime, "engine closed")
	}
	if w.used || w.next == nil {
		return core.Failure(core.ErrorRuntime, "generator already used")
	}
	w.used = true

	defer e.guard(&out)
	e.ctx = ctx

	return e.step(w.g, w.next, false)
}

// code recognizes stack exhaustion, which is the closest thing to an
// out-of-memory condition.
func code(msg string) core.StatusCode {
	if strings.Contains(msg, "Maximum call stack size exceeded") || strings.Contains(msg, "stack overflow") {
		return core.ErrorMemory
	}
	return core.ErrorRuntime
}

func failure(err error) *core.Outcome {
	msg := err.Error()
	var so *goja.StackOverflowError
	if errors.As(err, &so) {
		return core.Failure(core.ErrorMemory, "Maximum call stack size exceeded")
	}
	var diagnostic interface{} = msg
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil && !goja.IsUndefined(v) {
			diagnostic = v.String()
		}
	}
	return core.Failure(code(msg), diagnostic)
}
