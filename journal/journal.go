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

// Package journal records dispatches.
package journal

import (
	"context"

	"github.com/Comcast/fibers/core"
)

// Journal is a persistence interface for dispatch Records.
type Journal interface {
	Open(ctx context.Context) error

	// Append writes a Record for the given host.
	Append(ctx context.Context, r *core.Record) error

	// Scan calls f on each of the host's Records in append order
	// until f returns false.
	Scan(ctx context.Context, host string, f func(*core.Record) bool) error

	Close(ctx context.Context) error
}

// Noop is a Journal that remembers nothing.
type Noop struct {
}

func (j *Noop) Open(ctx context.Context) error {
	return nil
}

func (j *Noop) Append(ctx context.Context, r *core.Record) error {
	return nil
}

func (j *Noop) Scan(ctx context.Context, host string, f func(*core.Record) bool) error {
	return nil
}

func (j *Noop) Close(ctx context.Context) error {
	return nil
}
