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

// Package core provides the host side of a fiber-based action
// dispatch protocol.  A Host embeds a scripting Engine and
// coordinates control transfer between one long-lived driver fiber
// and the short-lived worker fibers that the driver yields, one per
// action.
//
// The lifecycle is simple.  Initialize() makes a Host: the Engine
// loads the driver script, and the first resume must leave the driver
// suspended.  Each Dispatch() resumes the driver with an
// ActionRequest.  The driver answers by yielding exactly one worker
// fiber, which the Host then runs to completion.  The worker's return
// value is the action's result.  Shutdown() delivers a
// ShutdownRequest, which should let the driver complete, and then
// releases the Engine no matter what happened.
//
// Only one fiber runs at a time.  Control moves by explicit resume and
// yield, so a Host needs no locks, but it is not safe for concurrent
// use: callers must serialize calls.  There are no timeouts.  A fiber
// that never yields blocks the caller.
//
// Engine failures never escape as panics.  Every resume returns an
// Outcome, and the Host turns failed Outcomes into a *Fault (status
// code plus diagnostic text).  Shape mismatches that the host detects
// itself, such as a driver that yields something other than a fiber,
// are reported as a *ProtocolViolation, which aborts only the
// offending dispatch.
//
// See the engines directory for Engine implementations.
package core
