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

// Package native provides a core.Engine whose driver is written in Go.
//
// The default driver looks up each action in Handlers and yields a
// worker that calls the handler.  A Driver function can replace that
// behavior entirely, which is handy for exercising misbehaving
// drivers.
package native

import (
	"context"
	"errors"
	"fmt"

	"github.com/Comcast/fibers/core"

	"go.uber.org/zap"
)

// Handler performs an action.  A non-nil error is reported as an
// application error.
type Handler func(ctx context.Context, caps *core.Capabilities, payload interface{}) (interface{}, error)

// Engine implements core.Engine in Go.
type Engine struct {
	// Handlers maps action names to handlers.
	Handlers map[string]Handler

	// Setup, if not nil, replaces the first resume, which
	// normally just suspends.
	Setup func(ctx context.Context) *core.Outcome

	// Driver, if not nil, replaces the default dispatch.  It sees
	// every request (including the ShutdownRequest).
	Driver func(ctx context.Context, req core.Request) *core.Outcome

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Resumes counts driver resumes (including the first).
	Resumes int

	// Closed counts calls to Close.
	Closed int

	caps   *core.Capabilities
	loaded bool
	done   bool
}

// NewEngine makes an Engine with the given handlers.
func NewEngine(handlers map[string]Handler) *Engine {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Engine{
		Handlers: handlers,
	}
}

func (e *Engine) Name() string {
	return "native"
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e.Logger
}

// Load doesn't load anything.  A native Engine has no script loader,
// so a non-empty Source gives an ErrorFile fault.
func (e *Engine) Load(ctx context.Context, src *core.Source, caps *core.Capabilities) error {
	if !src.Empty() {
		return core.NewFault(core.ErrorFile, "load '"+src.Label()+"' failed",
			"native engine can't load scripts")
	}
	e.caps = caps
	e.loaded = true
	return nil
}

func (e *Engine) Start(ctx context.Context) *core.Outcome {
	if !e.loaded {
		return core.Failure(core.ErrorRuntime, "not loaded")
	}
	e.Resumes++
	if e.Setup != nil {
		return e.guard(func() *core.Outcome { return e.Setup(ctx) })
	}
	return core.Suspend()
}

func (e *Engine) Resume(ctx context.Context, req core.Request) *core.Outcome {
	if e.done {
		return core.Failure(core.ErrorRuntime, "cannot resume dead coroutine")
	}
	e.Resumes++

	var out *core.Outcome
	if e.Driver != nil {
		out = e.guard(func() *core.Outcome { return e.Driver(ctx, req) })
	} else {
		out = e.dispatch(req)
	}
	if out != nil && out.Status != core.Suspended {
		e.done = true
	}
	return out
}

func (e *Engine) dispatch(req core.Request) *core.Outcome {
	switch vv := req.(type) {
	case *core.ShutdownRequest:
		e.logger().Debug("driver stopping")
		return core.Complete()
	case *core.ActionRequest:
		h, have := e.Handlers[vv.Action]
		if !have {
			action := vv.Action
			h = func(context.Context, *core.Capabilities, interface{}) (interface{}, error) {
				return nil, errors.New(`unknown action "` + action + `"`)
			}
		}
		return core.Suspend(e.NewWorker(h, vv.Payload))
	default:
		return core.Failure(core.ErrorRuntime, fmt.Sprintf("unknown request %T", req))
	}
}

func (e *Engine) guard(f func() *core.Outcome) (out *core.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = core.Failure(core.ErrorRuntime, r)
		}
	}()
	return f()
}

// Close can be called more than once, but a Host calls it once.
func (e *Engine) Close() error {
	e.Closed++
	e.done = true
	e.caps = nil
	return nil
}

// Worker is a single-use fiber that calls a Handler.
type Worker struct {
	e       *Engine
	h       Handler
	payload interface{}
	used    bool
}

// NewWorker makes a Worker that will call the handler with the given
// payload.
func (e *Engine) NewWorker(h Handler, payload interface{}) *Worker {
	return &Worker{
		e:       e,
		h:       h,
		payload: payload,
	}
}

func (w *Worker) Resume(ctx context.Context) *core.Outcome {
	if w.used {
		return core.Failure(core.ErrorRuntime, "cannot resume dead coroutine")
	}
	w.used = true
	return w.e.guard(func() *core.Outcome {
		x, err := w.h(ctx, w.e.caps, w.payload)
		if err != nil {
			return core.Complete(x, err)
		}
		return core.Complete(x)
	})
}
