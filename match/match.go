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

// Package match implements the partial pattern comparison used by
// dynamic path steps.
//
// A pattern is a map.  An object matches a pattern if every property
// of the pattern matches the object's property with the same name:
//
//   a map-valued pattern property recurses,
//
//   a list-valued pattern property matches if the object's property
//   is a member of that list,
//
//   anything else must be equal.
//
// The object can have other properties.  A missing object (or a
// missing property) never matches.
package match

import (
	"reflect"
)

type Matcher struct {
	// Fudge, if true, compares numbers by value regardless of
	// their Go types, so that 3 (an int from Go code) matches 3.0
	// (a float64 from a JSON parser).
	Fudge bool

	// Deref, if not nil, is applied to every object before it is
	// examined.  The store uses this hook to read through values
	// that haven't been computed yet.
	Deref func(x interface{}) interface{}
}

var DefaultMatcher = &Matcher{
	Fudge: true,
}

// fudge is a hack to cast numbers to float64s.
func fudge(x interface{}) interface{} {
	switch vv := x.(type) {
	case float64:
		return vv
	case float32:
		return float64(vv)
	case int64:
		return float64(vv)
	case int32:
		return float64(vv)
	case int:
		return float64(vv)
	case uint:
		return float64(vv)
	case uint64:
		return float64(vv)
	default:
		return x
	}
}

func (m *Matcher) deref(x interface{}) interface{} {
	if m.Deref == nil {
		return x
	}
	return m.Deref(x)
}

// Equal is strict equality (with the Fudge switch applied to
// numbers).  Maps, slices, and funcs are equal only when they are the
// same reference.
func (m *Matcher) Equal(x, y interface{}) bool {
	x = m.deref(x)
	y = m.deref(y)
	if m.Fudge {
		x = fudge(x)
		y = fudge(y)
	}
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	vx := reflect.ValueOf(x)
	vy := reflect.ValueOf(y)
	if vx.Type() != vy.Type() {
		return false
	}
	switch vx.Kind() {
	case reflect.Map, reflect.Func, reflect.Ptr:
		return vx.Pointer() == vy.Pointer()
	case reflect.Slice:
		return vx.Pointer() == vy.Pointer() && vx.Len() == vy.Len()
	}
	if !vx.Type().Comparable() {
		return false
	}
	return x == y
}

// Member reports whether x is Equal to some element of xs.
func (m *Matcher) Member(x interface{}, xs []interface{}) bool {
	for _, y := range xs {
		if m.Equal(x, y) {
			return true
		}
	}
	return false
}

// Compare reports whether the object matches the pattern.
func (m *Matcher) Compare(object interface{}, pattern map[string]interface{}) bool {
	object = m.deref(object)
	if object == nil {
		return false
	}
	if len(pattern) == 0 {
		return true
	}
	obj, is := object.(map[string]interface{})
	if !is {
		return false
	}

	for k, want := range pattern {
		have, present := obj[k]
		switch vv := want.(type) {
		case map[string]interface{}:
			if !present || !m.Compare(have, vv) {
				return false
			}
		case []interface{}:
			if !present || !m.Member(have, vv) {
				return false
			}
		default:
			if !present || !m.Equal(have, want) {
				return false
			}
		}
	}

	return true
}

// Compare calls DefaultMatcher.Compare.
func Compare(object interface{}, pattern map[string]interface{}) bool {
	return DefaultMatcher.Compare(object, pattern)
}
