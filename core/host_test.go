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

package core_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/Comcast/fibers/core"
	"github.com/Comcast/fibers/engines/native"
)

func get42(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
	return 42, nil
}

func initialize(t *testing.T, e *native.Engine) *Host {
	h, err := Initialize(context.Background(), &Options{
		Engine: e,
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.State() != DriverReady {
		t.Fatal(h.State())
	}
	return h
}

func TestHostGet(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"get": get42,
	})
	h := initialize(t, e)

	x, err := h.Dispatch(ctx, "get", nil)
	if err != nil {
		t.Fatal(err)
	}
	if x != 42 {
		t.Fatal(x)
	}

	if err = h.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostClosure(t *testing.T) {
	ctx := context.Background()
	count := 0
	e := native.NewEngine(map[string]native.Handler{
		"inc": func(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
			count++
			return count, nil
		},
	})
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	for i := 1; i <= 10; i++ {
		x, err := h.Dispatch(ctx, "inc", nil)
		if err != nil {
			t.Fatal(err)
		}
		if x != i {
			t.Fatalf("%d: %v", i, x)
		}
		if h.State() != DriverReady {
			t.Fatalf("%d: %s", i, h.State())
		}
	}
}

func TestHostEmptySession(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	h := initialize(t, e)

	if err := h.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
	if h.State() != DriverCompleted {
		t.Fatal(h.State())
	}
}

func TestHostPayload(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"echo": func(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
			return payload, nil
		},
	})
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	x, err := h.Dispatch(ctx, "echo", "chips")
	if err != nil {
		t.Fatal(err)
	}
	if x != "chips" {
		t.Fatal(x)
	}
}

func TestHostNonFiberYield(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		if _, is := req.(*ShutdownRequest); is {
			return Complete()
		}
		return Suspend("not a fiber")
	}
	h := initialize(t, e)

	_, err := h.Dispatch(ctx, "get", nil)
	var pv *ProtocolViolation
	if !errors.As(err, &pv) {
		t.Fatalf("%#v", err)
	}
	if h.State() != DriverReady {
		t.Fatal(h.State())
	}

	if err = h.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostYieldShape(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		switch vv := req.(type) {
		case *ShutdownRequest:
			return Complete()
		case *ActionRequest:
			switch vv.Action {
			case "none":
				return Suspend()
			case "nil":
				return Suspend(nil)
			case "two":
				w := e.NewWorker(get42, nil)
				return Suspend(w, w)
			}
		}
		return Suspend(e.NewWorker(get42, nil))
	}
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	for _, action := range []string{"none", "nil", "two"} {
		_, err := h.Dispatch(ctx, action, nil)
		var pv *ProtocolViolation
		if !errors.As(err, &pv) {
			t.Fatalf("%s: %#v", action, err)
		}
	}

	x, err := h.Dispatch(ctx, "get", nil)
	if err != nil {
		t.Fatal(err)
	}
	if x != 42 {
		t.Fatal(x)
	}
}

func TestHostDispatchAfterError(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		return Failure(ErrorRuntime, "driver.lua:3: boom")
	}
	h := initialize(t, e)

	_, err := h.Dispatch(ctx, "get", nil)
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("%#v", err)
	}
	if f.Code != ErrorRuntime {
		t.Fatal(f.Code)
	}
	if h.State() != DriverFailed {
		t.Fatal(h.State())
	}

	resumes := e.Resumes
	_, err = h.Dispatch(ctx, "get", nil)
	var pv *ProtocolViolation
	if !errors.As(err, &pv) {
		t.Fatalf("%#v", err)
	}
	if e.Resumes != resumes {
		t.Fatal("resumed a failed driver")
	}

	if err = h.Shutdown(ctx); !errors.As(err, &pv) {
		t.Fatalf("%#v", err)
	}
	if e.Resumes != resumes {
		t.Fatal("resumed a failed driver")
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostDriverExit(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		return Complete()
	}
	h := initialize(t, e)

	_, err := h.Dispatch(ctx, "quit", nil)
	if !errors.Is(err, ErrDriverExited) {
		t.Fatalf("%#v", err)
	}
	if Kind(err) != KindExited {
		t.Fatal(Kind(err))
	}
	if h.State() != DriverCompleted {
		t.Fatal(h.State())
	}

	if _, err = h.Dispatch(ctx, "get", nil); Kind(err) != KindViolation {
		t.Fatalf("%#v", err)
	}

	h.Shutdown(ctx)
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostAppError(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"nope": func(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
			return nil, errors.New("not today")
		},
	})
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	_, err := h.Dispatch(ctx, "nope", nil)
	var ae *AppError
	if !errors.As(err, &ae) {
		t.Fatalf("%#v", err)
	}
	if ae.Message != "not today" || ae.Action != "nope" {
		t.Fatalf("%#v", ae)
	}
	if h.State() != DriverReady {
		t.Fatal(h.State())
	}

	// The default driver reports unknown actions the same way.
	if _, err = h.Dispatch(ctx, "tacos", nil); Kind(err) != KindApp {
		t.Fatalf("%#v", err)
	}
}

func TestHostWorkerFailure(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"panic": func(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
			panic("worker trouble")
		},
		"get": get42,
	})
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	_, err := h.Dispatch(ctx, "panic", nil)
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("%#v", err)
	}
	if f.Code != ErrorRuntime || f.Diagnostic != "worker trouble" {
		t.Fatalf("%#v", f)
	}

	// A worker failure doesn't hurt the driver.
	if h.State() != DriverReady {
		t.Fatal(h.State())
	}
	if x, err := h.Dispatch(ctx, "get", nil); err != nil || x != 42 {
		t.Fatal(x, err)
	}
}

func TestHostWorkerSingleUse(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	w := e.NewWorker(get42, nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		if _, is := req.(*ShutdownRequest); is {
			return Complete()
		}
		return Suspend(w)
	}
	h := initialize(t, e)
	defer h.Shutdown(ctx)

	if x, err := h.Dispatch(ctx, "get", nil); err != nil || x != 42 {
		t.Fatal(x, err)
	}
	if _, err := h.Dispatch(ctx, "get", nil); Kind(err) != KindFault {
		t.Fatalf("%#v", err)
	}
}

func TestHostStartMustSuspend(t *testing.T) {
	ctx := context.Background()
	for _, out := range []*Outcome{
		Complete(),
		Failure(ErrorMemory, "not enough memory"),
	} {
		e := native.NewEngine(nil)
		setup := out
		e.Setup = func(ctx context.Context) *Outcome {
			return setup
		}
		h, err := Initialize(ctx, &Options{
			Engine: e,
		})
		if h != nil {
			t.Fatal(h)
		}
		var f *Fault
		if !errors.As(err, &f) {
			t.Fatalf("%#v", err)
		}
		if out.Status.IsError() && f.Code != out.Status {
			t.Fatal(f.Code)
		}
		if e.Closed != 1 {
			t.Fatal(e.Closed)
		}
	}
}

func TestHostLoadFault(t *testing.T) {
	e := native.NewEngine(nil)
	_, err := Initialize(context.Background(), &Options{
		Engine: e,
		Source: &Source{
			Path: "driver.lua",
		},
	})
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("%#v", err)
	}
	if f.Code != ErrorFile {
		t.Fatal(f.Code)
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostNoEngine(t *testing.T) {
	if _, err := Initialize(context.Background(), &Options{}); err != ErrNoEngine {
		t.Fatal(err)
	}
}

func TestHostShutdownFailure(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(nil)
	e.Driver = func(ctx context.Context, req Request) *Outcome {
		// Ignore the request.
		return Suspend(e.NewWorker(get42, nil))
	}
	h := initialize(t, e)

	err := h.Shutdown(ctx)
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("%#v", err)
	}
	if f.Code != ErrorRuntime {
		t.Fatal(f.Code)
	}
	if e.Closed != 1 {
		t.Fatal(e.Closed)
	}
}

func TestHostAfterShutdown(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"get": get42,
	})
	h := initialize(t, e)
	if err := h.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	resumes := e.Resumes
	_, err := h.Dispatch(ctx, "get", nil)
	if !errors.Is(err, ErrReleased) {
		t.Fatalf("%#v", err)
	}
	if e.Resumes != resumes {
		t.Fatal("resumed after release")
	}
}

func TestHostListener(t *testing.T) {
	ctx := context.Background()
	e := native.NewEngine(map[string]native.Handler{
		"get": get42,
		"nope": func(ctx context.Context, caps *Capabilities, payload interface{}) (interface{}, error) {
			return nil, errors.New("no")
		},
	})
	var recs []*Record
	h, err := Initialize(ctx, &Options{
		Engine: e,
		Listener: func(r *Record) {
			recs = append(recs, r)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Shutdown(ctx)

	h.Dispatch(ctx, "get", nil)
	h.Dispatch(ctx, "nope", nil)

	if len(recs) != 2 {
		t.Fatal(len(recs))
	}
	if recs[0].Kind != KindOK || recs[0].Result != 42 || recs[0].Host != h.Id() {
		t.Fatalf("%#v", recs[0])
	}
	if recs[1].Kind != KindApp || recs[1].Error == "" {
		t.Fatalf("%#v", recs[1])
	}
}
