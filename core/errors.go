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
	"errors"
	"fmt"
)

// Fault is an error reported by the engine at a resume (or load)
// boundary.
type Fault struct {
	Code StatusCode `json:"code"`

	// Label says what the host was doing ("switch to driver
	// fiber", for example).
	Label string `json:"label"`

	// Diagnostic is the bounded text of the engine's error value,
	// if any.
	Diagnostic string `json:"diagnostic,omitempty"`
}

func (e *Fault) Error() string {
	if e.Diagnostic == "" {
		return report(e.Code, e.Label, nil, 0)
	}
	return report(e.Code, e.Label, e.Diagnostic, 0)
}

// NewFault makes a Fault with the diagnostic rendered as text.
//
// Engines use this function to report load failures.
func NewFault(code StatusCode, label string, diagnostic interface{}) *Fault {
	f := &Fault{
		Code:  code,
		Label: label,
	}
	if diagnostic != nil {
		if text, ok := diagnosticText(diagnostic, DefaultMaxDiagnostic); ok {
			f.Diagnostic = text
		}
	}
	return f
}

// ProtocolViolation occurs when the host detects a shape mismatch:
// a driver yielded something other than one fiber handle, or a
// request arrived when the driver wasn't ready.
//
// A ProtocolViolation aborts only the offending dispatch.
type ProtocolViolation struct {
	State  DriverState `json:"state"`
	Reason string      `json:"reason"`

	// Err, if not nil, is a sentinel like ErrReleased.
	Err error `json:"-"`
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation (driver %s): %s", e.State, e.Reason)
}

func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}

// AppError is an application-level error reported by a worker that
// otherwise completed normally.
type AppError struct {
	Action  string      `json:"action,omitempty"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *AppError) Error() string {
	if e.Action == "" {
		return e.Message
	}
	return `action "` + e.Action + `": ` + e.Message
}

var (
	// ErrDriverExited is returned by Dispatch when the driver
	// completed instead of yielding a worker.  It isn't a fault:
	// the driver left its loop on its own.
	ErrDriverExited = errors.New("driver fiber exited")

	// ErrReleased is returned when a Host is used after its
	// Engine was released.
	ErrReleased = errors.New("engine released")

	// ErrNoEngine occurs when Initialize isn't given an Engine.
	ErrNoEngine = errors.New("no engine")
)
