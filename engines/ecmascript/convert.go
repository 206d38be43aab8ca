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

package ecmascript

import (
	"math"
	"reflect"

	"github.com/dop251/goja"
)

// export converts a Goja value to a plain Go value.
//
// Undefined and null become nil, integral numbers become int64, and
// wrapped Go slices become []interface{}.
func export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return normalize(v.Export(), 0)
}

const maxDepth = 64

func normalize(x interface{}, depth int) interface{} {
	if maxDepth < depth {
		return nil
	}
	depth++

	switch vv := x.(type) {
	case float64:
		if vv == math.Trunc(vv) && math.Abs(vv) < 1<<53 {
			return int64(vv)
		}
		return vv
	case int:
		return int64(vv)
	case map[string]interface{}:
		for k, y := range vv {
			vv[k] = normalize(y, depth)
		}
		return vv
	case []interface{}:
		for i, y := range vv {
			vv[i] = normalize(y, depth)
		}
		return vv
	case nil, bool, string, int64:
		return vv
	}
	if xs, is := iSlice(x); is {
		return normalize(xs, depth)
	}
	return x
}

// iSlice will convert reflect.Slices to actual slices.
//
// Payloads come back from Goja with their Go types, so a []string
// goes in and a []string comes out.
func iSlice(xs interface{}) (interface{}, bool) {
	v := reflect.ValueOf(xs)
	switch v.Kind() {
	case reflect.Slice:
		if _, is := xs.([]byte); is {
			return nil, false
		}
		acc := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			acc[i] = v.Index(i).Interface()
		}
		return acc, true
	}
	return nil, false
}
