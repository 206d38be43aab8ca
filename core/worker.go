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

	"go.uber.org/zap"
)

// dispatcher runs worker fibers.  A Worker is resumed once and then
// dropped.
type dispatcher struct {
	rep *reporter
}

func (wd *dispatcher) run(ctx context.Context, action string, w Worker) (interface{}, error) {
	out := w.Resume(ctx)
	if out == nil {
		return nil, wd.rep.fault(ErrorRuntime, "run worker fiber failed", "engine gave no outcome")
	}

	switch out.Status {
	case Completed:
		if e := appError(action, out.Values); e != nil {
			wd.rep.logger.Info("application error",
				zap.String("action", action),
				zap.String("message", e.Message))
			return nil, e
		}
		if len(out.Values) == 0 {
			return nil, nil
		}
		return out.Values[0], nil
	case Suspended:
		diagnostic := out.Diagnostic
		if diagnostic == nil {
			diagnostic = "worker yielded instead of completing"
		}
		return nil, wd.rep.fault(Suspended, "run worker fiber failed", diagnostic)
	default:
		return nil, wd.rep.fault(out.Status, "run worker fiber failed", out.Diagnostic)
	}
}

// appError applies the application-error convention to a worker's
// return values.
//
// A worker signals an application error either by returning an
// *AppError (engines make one for fiber.fail) or by returning a
// second value that is a string, a number, or an error: the usual
// "return nil, err" idiom.  Any other second value (true, a table)
// is just another result.
func appError(action string, vs []interface{}) *AppError {
	for _, v := range vs {
		if e, is := v.(*AppError); is && e != nil {
			if e.Action == "" {
				e.Action = action
			}
			return e
		}
	}
	if len(vs) < 2 || !errorLike(vs[1]) {
		return nil
	}
	msg, ok := diagnosticText(vs[1], DefaultMaxDiagnostic)
	if !ok {
		msg = "application error"
	}
	return &AppError{
		Action:  action,
		Message: msg,
		Value:   vs[0],
	}
}

func errorLike(x interface{}) bool {
	switch x.(type) {
	case string, error,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
