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
	"sort"
)

// CapabilityFunc is the Go side of a native function exposed to
// scripts.  Arguments arrive converted to Go values.
type CapabilityFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// Capability is a named native function that an Engine installs in
// the script's "fiber" module.
type Capability struct {
	Name string

	// Doc is Markdown.
	Doc string

	Fn CapabilityFunc
}

// Capabilities is a registry of Capability, keyed by name.
type Capabilities struct {
	byName map[string]*Capability
}

func NewCapabilities() *Capabilities {
	return &Capabilities{
		byName: make(map[string]*Capability),
	}
}

// Add registers capabilities.  Names must be non-empty and unique, and
// every Capability needs a Fn.
func (cs *Capabilities) Add(caps ...*Capability) error {
	for _, c := range caps {
		if c == nil {
			continue
		}
		if c.Name == "" {
			return errors.New("capability name is empty")
		}
		if c.Fn == nil {
			return errors.New(`capability "` + c.Name + `" has no function`)
		}
		if _, have := cs.byName[c.Name]; have {
			return errors.New(`capability "` + c.Name + `" already exists`)
		}
		cs.byName[c.Name] = c
	}
	return nil
}

// Find returns the named Capability or nil.
func (cs *Capabilities) Find(name string) *Capability {
	if cs == nil {
		return nil
	}
	return cs.byName[name]
}

// Names returns the registered names in sorted order.
func (cs *Capabilities) Names() []string {
	if cs == nil {
		return nil
	}
	acc := make([]string, 0, len(cs.byName))
	for name := range cs.byName {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Each calls f on every Capability in name order.
func (cs *Capabilities) Each(f func(*Capability)) {
	for _, name := range cs.Names() {
		f(cs.byName[name])
	}
}

// Len is the number of registered capabilities.
func (cs *Capabilities) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.byName)
}

// Call invokes the named Capability.
func (cs *Capabilities) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	c := cs.Find(name)
	if c == nil {
		return nil, fmt.Errorf(`unknown capability "%s"`, name)
	}
	return c.Fn(ctx, args)
}
