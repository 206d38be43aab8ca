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

// Package engines is a registry of the standard engines.
package engines

import (
	"fmt"
	"sort"

	"github.com/Comcast/fibers/core"
	"github.com/Comcast/fibers/engines/ecmascript"
	"github.com/Comcast/fibers/engines/lua"
	"github.com/Comcast/fibers/engines/native"

	"go.uber.org/zap"
)

// Config is what a Maker needs to make an Engine.
type Config struct {
	// ModuleDir is where scripts find their modules.
	ModuleDir string

	Logger *zap.Logger
}

// Maker makes a fresh Engine.  Each Host needs its own.
type Maker func(cfg *Config) core.Engine

// Makers maps engine names to Makers.
type Makers map[string]Maker

// Standard returns the standard Makers.
func Standard() Makers {
	ms := make(Makers)

	ms["lua"] = func(cfg *Config) core.Engine {
		e := lua.NewEngine()
		e.ModuleDir = cfg.ModuleDir
		e.Logger = cfg.Logger
		return e
	}

	es := func(cfg *Config) core.Engine {
		e := ecmascript.NewEngine()
		e.ModuleDir = cfg.ModuleDir
		e.Logger = cfg.Logger
		return e
	}
	ms["ecmascript"] = es
	ms["goja"] = es

	// The native engine without handlers only reports unknown
	// actions.  It's useful for checking plumbing.
	ms["native"] = func(cfg *Config) core.Engine {
		e := native.NewEngine(nil)
		e.Logger = cfg.Logger
		return e
	}

	return ms
}

// Names returns the sorted names.
func (ms Makers) Names() []string {
	acc := make([]string, 0, len(ms))
	for name := range ms {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Make makes an Engine by name.
func (ms Makers) Make(name string, cfg *Config) (core.Engine, error) {
	m, have := ms[name]
	if !have {
		return nil, fmt.Errorf("unknown engine '%s' (have %v)", name, ms.Names())
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return m(cfg), nil
}
