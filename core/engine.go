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
)

// Request is what a driver fiber receives when it is resumed.
//
// A Request is either an ActionRequest or a ShutdownRequest.  Engines
// deliver a ShutdownRequest as a sentinel value that no action
// identifier can equal.
type Request interface {
	request()
}

// ActionRequest asks the driver for a worker that performs Action.
type ActionRequest struct {
	Action string `json:"action"`

	// Payload is optional.  Engines deliver nil as the script's
	// nil/undefined.
	Payload interface{} `json:"payload,omitempty"`
}

// ShutdownRequest asks the driver to leave its loop and complete.
type ShutdownRequest struct{}

func (*ActionRequest) request()   {}
func (*ShutdownRequest) request() {}

// Outcome is the result of one resume.
type Outcome struct {
	Status StatusCode

	// Values are the yielded (Suspended) or returned (Completed)
	// values, already converted to Go.  A fiber handle yielded by
	// a driver appears as a Worker.
	Values []interface{}

	// Diagnostic is the engine's error value when Status is an
	// error code.  Often a string.  Might be nil.
	Diagnostic interface{}
}

// Suspend is a convenience constructor.
func Suspend(vs ...interface{}) *Outcome {
	return &Outcome{Status: Suspended, Values: vs}
}

// Complete is a convenience constructor.
func Complete(vs ...interface{}) *Outcome {
	return &Outcome{Status: Completed, Values: vs}
}

// Failure is a convenience constructor.
func Failure(code StatusCode, diagnostic interface{}) *Outcome {
	return &Outcome{Status: code, Diagnostic: diagnostic}
}

// Source locates a driver script.
//
// If Path is given, the engine's own loader reads it.  Otherwise Code
// is used.  If both are empty, the engine uses its built-in driver.
type Source struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// Empty reports whether the source specifies nothing.
func (s *Source) Empty() bool {
	return s == nil || (s.Path == "" && s.Code == "")
}

// Label returns something to call this source in diagnostics.
func (s *Source) Label() string {
	switch {
	case s == nil:
		return "built-in driver"
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return s.Path
	case s.Code != "":
		return "inline driver"
	}
	return "built-in driver"
}

// Engine is an embedded scripting runtime that can host a driver
// fiber.
//
// An Engine instance is owned by exactly one Host, which calls Load
// once, Start once, Resume zero or more times, and Close exactly once.
// All fiber memory lives inside the Engine, so Workers are invalid
// after Close.
type Engine interface {
	// Name is the engine's name (for example, "lua").
	Name() string

	// Load creates the runtime, installs the given capabilities,
	// and loads (but does not run) the driver.  Failures are
	// returned as a *Fault with code ErrorFile, ErrorSyntax, or
	// ErrorMemory.
	Load(ctx context.Context, src *Source, caps *Capabilities) error

	// Start performs the first resume of the driver with no
	// arguments.
	Start(ctx context.Context) *Outcome

	// Resume resumes the driver with the given request.
	Resume(ctx context.Context, req Request) *Outcome

	// Close releases the runtime.
	Close() error
}

// Worker is an engine's handle to a worker fiber.
type Worker interface {
	// Resume runs the worker, with the driver as its execution
	// context, and no arguments.
	Resume(ctx context.Context) *Outcome
}
