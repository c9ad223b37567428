/* Copyright 2018 Comcast Cable Communications Management, LLC
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
	"reflect"
)

// Data in a Tree is JSON-shaped: map[string]interface{},
// []interface{}, and primitives.  Two other things can appear:
// *MonkeyDefinition (before it's mounted) and *Deferred (after).
// Both are leaves as far as the functions in this file are concerned.

func isMap(x interface{}) bool {
	_, is := x.(map[string]interface{})
	return is
}

func isSeq(x interface{}) bool {
	_, is := x.([]interface{})
	return is
}

// isContainer reports whether x is a map or a sequence.
func isContainer(x interface{}) bool {
	switch x.(type) {
	case map[string]interface{}, []interface{}:
		return true
	}
	return false
}

// Clone makes a shallow copy of the given map or sequence.  Other
// values are returned as is.
func Clone(x interface{}) interface{} {
	switch vv := x.(type) {
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = v
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		copy(acc, vv)
		return acc
	default:
		return x
	}
}

// DeepClone makes a deep copy of the given value.  Deferred nodes
// and monkey definitions are shared, not copied.
func DeepClone(x interface{}) interface{} {
	switch vv := x.(type) {
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = DeepClone(v)
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = DeepClone(v)
		}
		return acc
	default:
		return x
	}
}

// Materialize returns a deep copy of x with every Deferred replaced
// by its value.
func Materialize(x interface{}) interface{} {
	switch vv := Resolve(x).(type) {
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			acc[k] = Materialize(v)
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = Materialize(v)
		}
		return acc
	default:
		return vv
	}
}

// ShallowMerge copies the properties of each source into target,
// later sources winning.  The target is modified and returned.
func ShallowMerge(target map[string]interface{}, sources ...map[string]interface{}) map[string]interface{} {
	for _, src := range sources {
		for k, v := range src {
			target[k] = v
		}
	}
	return target
}

// DeepMerge is ShallowMerge except that map-valued properties present
// on both sides are merged recursively.  Maps inside the target that
// came from a source are copied before they are merged into, so no
// source is modified.
func DeepMerge(target map[string]interface{}, sources ...map[string]interface{}) map[string]interface{} {
	for _, src := range sources {
		for k, v := range src {
			sub, is := v.(map[string]interface{})
			if !is {
				target[k] = v
				continue
			}
			if have, is := target[k].(map[string]interface{}); is {
				target[k] = DeepMerge(Clone(have).(map[string]interface{}), sub)
			} else {
				target[k] = DeepMerge(make(map[string]interface{}, len(sub)), sub)
			}
		}
	}
	return target
}

// Same reports whether x and y are the same value.  Maps, sequences,
// and functions are the same only if they are the same reference.
//
// Numbers of different Go types are not the same.
func Same(x, y interface{}) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	vx := reflect.ValueOf(x)
	vy := reflect.ValueOf(y)
	if vx.Type() != vy.Type() {
		return false
	}
	switch vx.Kind() {
	case reflect.Map, reflect.Func, reflect.Ptr, reflect.Chan, reflect.UnsafePointer:
		return vx.Pointer() == vy.Pointer()
	case reflect.Slice:
		return vx.Pointer() == vy.Pointer() && vx.Len() == vy.Len()
	}
	if !vx.Type().Comparable() {
		return false
	}
	return x == y
}

// Equal reports deep structural equality after resolving Deferred
// nodes.
func Equal(x, y interface{}) bool {
	return reflect.DeepEqual(Materialize(x), Materialize(y))
}
