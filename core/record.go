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
	"time"
)

// Kinds of dispatch results.
const (
	KindOK        = "ok"
	KindApp       = "app"
	KindFault     = "fault"
	KindViolation = "violation"
	KindExited    = "exited"
)

// Kind classifies the error (if any) returned by Dispatch.
func Kind(err error) string {
	if err == nil {
		return KindOK
	}
	var (
		ae *AppError
		pv *ProtocolViolation
	)
	switch {
	case errors.As(err, &ae):
		return KindApp
	case errors.As(err, &pv):
		return KindViolation
	case errors.Is(err, ErrDriverExited):
		return KindExited
	}
	return KindFault
}

// Record describes one dispatch.  A Host gives a Record to its
// Listener after every Dispatch.
type Record struct {
	Id     string `json:"id"`
	Host   string `json:"host"`
	Action string `json:"action"`

	// Kind is one of the Kind* constants.
	Kind string `json:"kind"`

	// Status is set for faults.
	Status *StatusCode `json:"status,omitempty"`

	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`

	At      time.Time     `json:"at"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r *Record) finish(result interface{}, err error, elapsed time.Duration) {
	r.Elapsed = elapsed
	r.Kind = Kind(err)
	if err != nil {
		r.Error = err.Error()
		var f *Fault
		if errors.As(err, &f) {
			code := f.Code
			r.Status = &code
		}
		return
	}
	r.Result = result
}
