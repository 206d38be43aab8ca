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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures Initialize.
type Options struct {
	// Engine is required.  The Host takes ownership and closes it
	// exactly once.
	Engine Engine

	// Source is the driver script.  Nil means the engine's
	// built-in driver.
	Source *Source

	// Capabilities are installed in the engine's "fiber" module.
	Capabilities *Capabilities

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Listener, if not nil, receives a Record after every
	// Dispatch.  It is called synchronously.
	Listener func(*Record)

	// MaxDiagnostic bounds diagnostic text.  Zero means
	// DefaultMaxDiagnostic.
	MaxDiagnostic int
}

// Host owns an Engine and its driver fiber.
//
// A Host is not safe for concurrent use.  Callers serialize Dispatch
// and Shutdown themselves.
type Host struct {
	id       string
	engine   Engine
	driver   *driver
	workers  *dispatcher
	logger   *zap.Logger
	listener func(*Record)
	released bool
}

// Initialize loads the driver and resumes it once.  The driver must
// suspend.  If anything goes wrong, the Engine is released and the
// error is returned.
func Initialize(ctx context.Context, opts *Options) (*Host, error) {
	if opts == nil || opts.Engine == nil {
		return nil, ErrNoEngine
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	max := opts.MaxDiagnostic
	if max <= 0 {
		max = DefaultMaxDiagnostic
	}

	id := uuid.NewString()
	logger = logger.With(zap.String("host", id), zap.String("engine", opts.Engine.Name()))
	rep := &reporter{
		logger: logger,
		max:    max,
	}

	h := &Host{
		id:     id,
		engine: opts.Engine,
		driver: &driver{
			engine: opts.Engine,
			rep:    rep,
		},
		workers: &dispatcher{
			rep: rep,
		},
		logger:   logger,
		listener: opts.Listener,
	}

	if err := h.driver.load(ctx, opts.Source, opts.Capabilities); err != nil {
		h.release()
		return nil, err
	}
	if err := h.driver.start(ctx); err != nil {
		h.release()
		return nil, err
	}

	logger.Info("host initialized", zap.String("source", opts.Source.Label()))

	return h, nil
}

// Id is a UUID for this Host.
func (h *Host) Id() string {
	return h.id
}

// State is the driver's current state.
func (h *Host) State() DriverState {
	return h.driver.state
}

// Engine returns the name of the Host's engine.
func (h *Host) Engine() string {
	return h.engine.Name()
}

// Dispatch asks the driver for a worker that performs the action and
// then runs that worker.
//
// The error is nil, an *AppError, a *ProtocolViolation, a *Fault, or
// ErrDriverExited.  Only the last two end the driver.
func (h *Host) Dispatch(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	rec := &Record{
		Id:     uuid.NewString(),
		Host:   h.id,
		Action: action,
		At:     time.Now().UTC(),
	}

	result, err := h.dispatch(ctx, action, payload)

	rec.finish(result, err, time.Since(rec.At))
	h.logger.Debug("dispatched",
		zap.String("action", action),
		zap.String("kind", rec.Kind),
		zap.Duration("elapsed", rec.Elapsed))
	if h.listener != nil {
		h.listener(rec)
	}

	return result, err
}

func (h *Host) dispatch(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	if h.released {
		return nil, &ProtocolViolation{
			State:  h.driver.state,
			Reason: `can't dispatch "` + action + `"`,
			Err:    ErrReleased,
		}
	}

	w, err := h.driver.resume(ctx, &ActionRequest{
		Action:  action,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}

	return h.workers.run(ctx, action, w)
}

// Shutdown asks the driver to complete and then releases the Engine.
//
// The Engine is released even if the driver misbehaves.  Subsequent
// calls do nothing and return nil.
func (h *Host) Shutdown(ctx context.Context) error {
	if h.released {
		return nil
	}
	defer h.release()

	if err := h.driver.shutdown(ctx); err != nil {
		return err
	}
	h.logger.Info("host shut down")
	return nil
}

func (h *Host) release() {
	if h.released {
		return
	}
	h.released = true
	if err := h.engine.Close(); err != nil {
		h.logger.Warn("engine close failed", zap.Error(err))
	}
}
