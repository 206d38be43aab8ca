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
	"testing"
)

func TestAppErrorConvention(t *testing.T) {
	tests := []struct {
		name string
		vs   []interface{}
		want string
	}{
		{
			name: "none",
			vs:   nil,
		},
		{
			name: "value",
			vs:   []interface{}{42},
		},
		{
			name: "nil second",
			vs:   []interface{}{42, nil},
		},
		{
			name: "false second",
			vs:   []interface{}{42, false},
		},
		{
			name: "string second",
			vs:   []interface{}{nil, "bad payload"},
			want: "bad payload",
		},
		{
			name: "error second",
			vs:   []interface{}{nil, errors.New("bad payload")},
			want: "bad payload",
		},
		{
			name: "number second",
			vs:   []interface{}{nil, int64(404)},
			want: "404",
		},
		{
			name: "true second",
			vs:   []interface{}{42, true},
		},
		{
			name: "table second",
			vs:   []interface{}{42, map[string]interface{}{"likes": "tacos"}},
		},
		{
			name: "list second",
			vs:   []interface{}{42, []interface{}{"tacos"}},
		},
		{
			name: "marker",
			vs:   []interface{}{&AppError{Message: "nope"}},
			want: "nope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := appError("get", tt.vs)
			if tt.want == "" {
				if e != nil {
					t.Fatalf("%#v", e)
				}
				return
			}
			if e == nil {
				t.Fatal("expected an AppError")
			}
			if e.Message != tt.want || e.Action != "get" {
				t.Fatalf("%#v", e)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != KindOK {
		t.Fatal(Kind(nil))
	}
	if k := Kind(&AppError{}); k != KindApp {
		t.Fatal(k)
	}
	if k := Kind(&ProtocolViolation{Err: ErrReleased}); k != KindViolation {
		t.Fatal(k)
	}
	if k := Kind(NewFault(ErrorRuntime, "x", nil)); k != KindFault {
		t.Fatal(k)
	}
	if k := Kind(ErrDriverExited); k != KindExited {
		t.Fatal(k)
	}
}
