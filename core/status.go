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

import "fmt"

// StatusCode is the outcome of a resume (or a load).
type StatusCode int

const (
	Suspended    StatusCode = iota // The fiber yielded.
	Completed                      // The fiber returned.
	ErrorRuntime                   // Uncaught fault during execution.
	ErrorSyntax                    // Malformed script.
	ErrorMemory                    // The engine ran out of room.
	ErrorFile                      // Script source missing or unreadable.
)

var statusNames = []string{
	"Suspended",
	"Completed",
	"ErrorRuntime",
	"ErrorSyntax",
	"ErrorMemory",
	"ErrorFile",
}

func (c StatusCode) String() string {
	if c < 0 || int(c) >= len(statusNames) {
		return fmt.Sprintf("StatusCode(%d)", int(c))
	}
	return statusNames[c]
}

// IsError reports whether the code is one of the Error* codes.
func (c StatusCode) IsError() bool {
	return c >= ErrorRuntime
}

func (c StatusCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *StatusCode) UnmarshalText(bs []byte) error {
	s := string(bs)
	for i, name := range statusNames {
		if name == s {
			*c = StatusCode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status code %q", s)
}

// DriverState is the state of a Host's driver fiber.
//
//	Uninitialized -> Loaded -> Ready -> Dispatching -> Ready ...
//
// Completed and Failed are terminal.
type DriverState int

const (
	DriverUninitialized DriverState = iota
	DriverLoaded
	DriverReady // Suspended and able to take a request.
	DriverDispatching
	DriverCompleted
	DriverFailed
)

var stateNames = []string{
	"Uninitialized",
	"Loaded",
	"Ready",
	"Dispatching",
	"Completed",
	"Failed",
}

func (s DriverState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("DriverState(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further resumes are permitted.
func (s DriverState) Terminal() bool {
	return s == DriverCompleted || s == DriverFailed
}

func (s DriverState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
