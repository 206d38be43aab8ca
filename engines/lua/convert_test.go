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

package lua

import (
	"testing"

	"github.com/Comcast/fibers/core"
	"github.com/Comcast/fibers/util/testutil"

	lua "github.com/yuin/gopher-lua"
)

func TestConvert(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(`
cycle = {name = "loop"}
cycle.self = cycle
list = {"a", "b", 3}
sparse = {[1] = "a", [3] = "c"}
mixed = {1, 2, x = "y"}
half = 1.5
`); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		global string
		want   string
	}{
		{"cycle", `{"name":"loop","self":null}`},
		{"list", `["a","b",3]`},
		{"sparse", `{"1":"a","3":"c"}`},
		{"mixed", `{"1":1,"2":2,"x":"y"}`},
		{"half", `1.5`},
		{"nothing", `null`},
	}
	for _, tt := range tests {
		got := fromLua(L.GetGlobal(tt.global))
		if !testutil.SameJS(got, tt.want) {
			t.Fatalf("%s: %s", tt.global, testutil.JS(got))
		}
	}

	if x := fromLua(lua.LNumber(7)); x != int64(7) {
		t.Fatalf("%#v", x)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	x := map[string]interface{}{
		"likes": []string{"tacos"},
		"n":     int32(3),
		"ok":    false,
		"bs":    []byte("chips"),
		"when":  struct{ At string }{"noon"},
	}
	got := fromLua(toLua(L, x))
	want := `{"likes":["tacos"],"n":3,"ok":false,"bs":"chips","when":{"At":"noon"}}`
	if !testutil.SameJS(got, want) {
		t.Fatal(testutil.JS(got))
	}

	ae := &core.AppError{Message: "no"}
	if y := fromLua(toLua(L, ae)); y != ae {
		t.Fatalf("%#v", y)
	}
}
