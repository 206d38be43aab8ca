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

package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// driver controls the single driver fiber of an Engine.
//
// Every resume of the driver happens here, and every resume goes
// through the state machine in DriverState.
type driver struct {
	engine Engine
	state  DriverState
	rep    *reporter
}

func (d *driver) load(ctx context.Context, src *Source, caps *Capabilities) error {
	if d.state != DriverUninitialized {
		return d.rep.violation(d.state, "driver already loaded")
	}
	if err := d.engine.Load(ctx, src, caps); err != nil {
		d.state = DriverFailed
		var f *Fault
		if errors.As(err, &f) {
			d.rep.logger.Warn("load failed",
				zap.Stringer("code", f.Code),
				zap.String("source", src.Label()),
				zap.String("diagnostic", f.Diagnostic))
			return f
		}
		return d.rep.fault(ErrorRuntime, "load '"+src.Label()+"' failed", err)
	}
	d.state = DriverLoaded
	return nil
}

// start performs the first resume, which must leave the driver
// suspended.  There is no retry.
func (d *driver) start(ctx context.Context) error {
	if d.state != DriverLoaded {
		return d.rep.violation(d.state, "driver not loaded")
	}
	out := d.engine.Start(ctx)
	if out == nil {
		d.state = DriverFailed
		return d.rep.fault(ErrorRuntime, "launch driver fiber failed", "engine gave no outcome")
	}
	switch out.Status {
	case Suspended:
		d.state = DriverReady
		return nil
	case Completed:
		d.state = DriverFailed
		return d.rep.fault(ErrorRuntime, "launch driver fiber failed", "driver completed without suspending")
	default:
		d.state = DriverFailed
		return d.rep.fault(out.Status, "launch driver fiber failed", out.Diagnostic)
	}
}

// resume delivers an ActionRequest and returns the Worker that the
// driver yielded.
//
// A driver that yields the wrong thing stays Ready.  A driver that
// completes or fails is done for good.
func (d *driver) resume(ctx context.Context, req *ActionRequest) (Worker, error) {
	if d.state != DriverReady {
		return nil, d.rep.violation(d.state, `can't dispatch "`+req.Action+`"`)
	}

	d.state = DriverDispatching
	out := d.engine.Resume(ctx, req)
	if out == nil {
		d.state = DriverFailed
		return nil, d.rep.fault(ErrorRuntime, "switch to driver fiber failed", "engine gave no outcome")
	}

	switch out.Status {
	case Suspended:
		d.state = DriverReady
		if len(out.Values) != 1 {
			return nil, d.rep.violation(d.state,
				fmt.Sprintf("driver yielded %d values instead of one fiber", len(out.Values)))
		}
		switch vv := out.Values[0].(type) {
		case nil:
			return nil, d.rep.violation(d.state, "driver yielded nil instead of a fiber")
		case Worker:
			return vv, nil
		default:
			return nil, d.rep.violation(d.state,
				fmt.Sprintf("driver yielded a %T instead of a fiber", vv))
		}
	case Completed:
		d.state = DriverCompleted
		d.rep.logger.Info("driver fiber exited", zap.String("action", req.Action))
		return nil, ErrDriverExited
	default:
		d.state = DriverFailed
		return nil, d.rep.fault(out.Status, "switch to driver fiber failed", out.Diagnostic)
	}
}

// shutdown delivers the ShutdownRequest, which should complete the
// driver.
func (d *driver) shutdown(ctx context.Context) error {
	if d.state != DriverReady {
		return d.rep.violation(d.state, "shutdown requires a suspended driver")
	}

	d.state = DriverDispatching
	out := d.engine.Resume(ctx, &ShutdownRequest{})
	if out != nil && out.Status == Completed {
		d.state = DriverCompleted
		return nil
	}

	d.state = DriverFailed
	var diagnostic interface{}
	switch {
	case out == nil:
		diagnostic = "engine gave no outcome"
	case out.Diagnostic != nil:
		diagnostic = out.Diagnostic
	case out.Status == Suspended:
		diagnostic = "driver yielded instead of completing"
	}
	return d.rep.fault(ErrorRuntime, "stop driver fiber failed", diagnostic)
}
