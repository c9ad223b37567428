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
	"encoding/json"
	"fmt"
)

// OpKind is the closed set of write operations.
type OpKind int

const (
	OpSet OpKind = iota
	OpApply
	OpPush
	OpUnshift
	OpConcat
	OpSplice
	OpPop
	OpShift
	OpUnset
	OpMerge
	OpDeepMerge

	// OpInstallDerived mounts a monkey's Deferred value.  Only
	// monkeys use it.
	OpInstallDerived

	numOpKinds
)

var opNames = [numOpKinds]string{
	OpSet:            "set",
	OpApply:          "apply",
	OpPush:           "push",
	OpUnshift:        "unshift",
	OpConcat:         "concat",
	OpSplice:         "splice",
	OpPop:            "pop",
	OpShift:          "shift",
	OpUnset:          "unset",
	OpMerge:          "merge",
	OpDeepMerge:      "deepMerge",
	OpInstallDerived: "installDerived",
}

func (k OpKind) String() string {
	if k < 0 || numOpKinds <= k {
		return fmt.Sprintf("op(%d)", int(k))
	}
	return opNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k OpKind) Valid() bool {
	return 0 <= k && k < numOpKinds
}

// Intransitive reports whether the kind takes no value.
func (k OpKind) Intransitive() bool {
	switch k {
	case OpUnset, OpPop, OpShift:
		return true
	}
	return false
}

func (k OpKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseOpKind finds the OpKind with the given name.
func ParseOpKind(s string) (OpKind, error) {
	for k, name := range opNames {
		if name == s {
			return OpKind(k), nil
		}
	}
	return 0, invalid("operation", "unknown kind %q", s)
}

// Operation is one write.
type Operation struct {
	Kind OpKind `json:"type"`

	// Value is the payload for every kind except OpApply, OpUnset,
	// OpPop, and OpShift.  For OpSplice, it's a list [start,
	// deleteCount, items...].  For OpInstallDerived, it's a
	// *Deferred.
	Value interface{} `json:"value,omitempty"`

	// Fn is the transformation for OpApply.
	Fn func(interface{}) interface{} `json:"-"`

	// MutableLeaf, if true, stores the value as given, without
	// the cloning that Policy would otherwise require.
	MutableLeaf bool `json:"-"`
}

// Policy controls how Apply builds the new data.
type Policy struct {
	// Persistent means that nothing reachable from the old data is
	// modified.  Every container on the path is copied.
	Persistent bool

	// Immutable means that values entering the data are deep
	// copies, so the caller can't reach into the data through a
	// value it wrote.
	Immutable bool

	// Pure means that a set (or apply) that writes the value
	// that's already there doesn't produce new data.
	Pure bool
}

// Applied is the result of Apply.
type Applied struct {
	// Data is the new root.  Only meaningful if Written.
	Data interface{}

	// Node is the value now at the path.  It's nil for
	// OpInstallDerived and OpUnset.
	Node interface{}

	// Written is false when Pure suppressed the write.
	Written bool
}

// Apply performs the operation at the given solved path.
//
// The walk auto-vivifies: a non-container where a container is
// needed is replaced with an empty map.
func Apply(data interface{}, path Path, op Operation, policy Policy) (*Applied, error) {
	if !op.Kind.Valid() {
		return nil, &UnknownOperation{Kind: op.Kind}
	}

	// The walk starts at a dummy root so that the real root can
	// be replaced like anything else.
	dummy := map[string]interface{}{"root": data}
	full := Path{"root"}.Concat(path...)

	var (
		// p is the container that holds the current step.
		p interface{} = dummy

		// gp and gk locate p, so that p can be replaced when
		// it's a sequence that changes length.
		gp interface{}
		gk interface{}
	)

	for i := 0; i < len(full)-1; i++ {
		s := full[i]
		x, _ := child(p, s)
		c := Resolve(x)
		if !isContainer(c) {
			c = map[string]interface{}{}
		} else if policy.Persistent {
			c = Clone(c)
		}
		np, err := put(p, s, c, path)
		if err != nil {
			return nil, err
		}
		if err = replace(gp, gk, p, np); err != nil {
			return nil, err
		}
		gp, gk, p = np, s, c
	}

	s := full[len(full)-1]
	current, _ := child(p, s)

	incoming := func(v interface{}) interface{} {
		if op.MutableLeaf {
			return v
		}
		if policy.Immutable {
			return DeepClone(v)
		}
		if policy.Persistent {
			return Clone(v)
		}
		return v
	}

	write := func(v interface{}) (*Applied, error) {
		np, err := put(p, s, v, path)
		if err != nil {
			return nil, err
		}
		if err = replace(gp, gk, p, np); err != nil {
			return nil, err
		}
		return &Applied{
			Data:    dummy["root"],
			Node:    v,
			Written: true,
		}, nil
	}

	seq := func() ([]interface{}, error) {
		xs, is := Resolve(current).([]interface{})
		if !is {
			return nil, &TypeMismatchError{Op: op.Kind, Path: path, Want: "array"}
		}
		return xs, nil
	}

	obj := func() (map[string]interface{}, map[string]interface{}, error) {
		m, is := Resolve(current).(map[string]interface{})
		if !is {
			return nil, nil, &TypeMismatchError{Op: op.Kind, Path: path, Want: "object"}
		}
		v, is := op.Value.(map[string]interface{})
		if !is {
			return nil, nil, invalid("value", "%s needs an object, not a %T", op.Kind, op.Value)
		}
		if policy.Persistent {
			m = Clone(m).(map[string]interface{})
		}
		return m, v, nil
	}

	switch op.Kind {
	case OpSet, OpApply:
		v := op.Value
		if op.Kind == OpApply {
			if op.Fn == nil {
				return nil, invalid("value", "apply needs a function")
			}
			// The function gets its own copy so that mutating its
			// argument can't reach the old data.
			arg := Resolve(current)
			if policy.Persistent {
				arg = DeepClone(arg)
			}
			v = op.Fn(arg)
			if policy.Pure && Same(arg, v) && Equal(current, v) {
				return &Applied{Node: current}, nil
			}
		}
		if policy.Pure && Same(current, v) {
			return &Applied{Node: current}, nil
		}
		return write(incoming(v))

	case OpInstallDerived:
		d, is := op.Value.(*Deferred)
		if !is {
			return nil, invalid("value", "installDerived needs a *Deferred, not a %T", op.Value)
		}
		applied, err := write(d)
		if err != nil {
			return nil, err
		}
		applied.Node = nil
		return applied, nil

	case OpPush:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		acc := xs
		if policy.Persistent {
			acc = make([]interface{}, 0, len(xs)+1)
			acc = append(acc, xs...)
		}
		return write(append(acc, incoming(op.Value)))

	case OpUnshift:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		acc := make([]interface{}, 0, len(xs)+1)
		acc = append(acc, incoming(op.Value))
		return write(append(acc, xs...))

	case OpConcat:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		ys, is := op.Value.([]interface{})
		if !is {
			return nil, invalid("value", "concat needs an array, not a %T", op.Value)
		}
		ys = incoming(ys).([]interface{})
		acc := make([]interface{}, 0, len(xs)+len(ys))
		acc = append(acc, xs...)
		return write(append(acc, ys...))

	case OpSplice:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		splicer, is := op.Value.([]interface{})
		if !is || len(splicer) == 0 {
			return nil, invalid("value", "splice needs a splicer [start, deleteCount, items...]")
		}
		var items []interface{}
		if 2 < len(splicer) {
			items = incoming(splicer[2:]).([]interface{})
		}
		acc, err := Splice(xs, splicer[0], len(splicer) == 1, countArg(splicer), items...)
		if err != nil {
			return nil, err
		}
		return write(acc)

	case OpPop:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		if 0 < len(xs) {
			xs = xs[:len(xs)-1]
		}
		if policy.Persistent {
			xs = Clone(xs).([]interface{})
		}
		return write(xs)

	case OpShift:
		xs, err := seq()
		if err != nil {
			return nil, err
		}
		if 0 < len(xs) {
			xs = xs[1:]
		}
		if policy.Persistent {
			xs = Clone(xs).([]interface{})
		}
		return write(xs)

	case OpUnset:
		np, err := remove(p, s)
		if err != nil {
			return nil, err
		}
		if err = replace(gp, gk, p, np); err != nil {
			return nil, err
		}
		return &Applied{
			Data:    dummy["root"],
			Written: true,
		}, nil

	case OpMerge:
		m, v, err := obj()
		if err != nil {
			return nil, err
		}
		return write(ShallowMerge(m, incoming(v).(map[string]interface{})))

	case OpDeepMerge:
		m, v, err := obj()
		if err != nil {
			return nil, err
		}
		return write(DeepMerge(m, incoming(v).(map[string]interface{})))
	}

	return nil, &UnknownOperation{Kind: op.Kind}
}

func countArg(splicer []interface{}) interface{} {
	if len(splicer) < 2 {
		return nil
	}
	return splicer[1]
}

// Splice returns a new sequence with count elements removed at start
// and the items inserted there.
//
// The start can be an index (negative counts from the end), a
// Predicate, or a Pattern.  A Predicate or Pattern that matches
// nothing puts the items at the end and removes nothing.  If toEnd,
// everything after start is removed.  Otherwise a nil count removes
// nothing.
func Splice(xs []interface{}, start interface{}, toEnd bool, count interface{}, items ...interface{}) ([]interface{}, error) {
	var i int
	if isDynamicStep(start) {
		if i = indexOf(xs, start); i < 0 {
			i = len(xs)
		}
	} else {
		n, ok := stepIndex(start)
		if !ok {
			return nil, invalid("splice", "bad start %#v", start)
		}
		i = n
		if i < 0 {
			i += len(xs)
		}
		if i < 0 {
			i = 0
		}
		if len(xs) < i {
			i = len(xs)
		}
	}

	var nb int
	switch {
	case toEnd:
		nb = len(xs) - i
	case count == nil:
	default:
		n, ok := stepIndex(count)
		if !ok {
			return nil, invalid("splice", "argument nb %#v can not be parsed into a number", count)
		}
		nb = n
	}
	if nb < 0 {
		nb = 0
	}
	end := i + nb
	if len(xs) < end {
		end = len(xs)
	}

	acc := make([]interface{}, 0, len(xs)-(end-i)+len(items))
	acc = append(acc, xs[:i]...)
	acc = append(acc, items...)
	return append(acc, xs[end:]...), nil
}

// put writes v at step s in container p.  It returns the container,
// which is a new sequence if p is a sequence that had to grow.
func put(p interface{}, s interface{}, v interface{}, path Path) (interface{}, error) {
	switch vv := p.(type) {
	case map[string]interface{}:
		k, ok := stepKey(s)
		if !ok {
			return nil, invalid("path", "bad key %#v at %s", s, path)
		}
		vv[k] = v
		return vv, nil
	case []interface{}:
		i, ok := stepIndex(s)
		if !ok || i < 0 {
			return nil, invalid("path", "bad index %#v at %s", s, path)
		}
		for len(vv) <= i {
			vv = append(vv, nil)
		}
		vv[i] = v
		return vv, nil
	}
	return nil, invalid("path", "can't write %#v into a %T at %s", s, p, path)
}

// remove deletes step s from p.
func remove(p interface{}, s interface{}) (interface{}, error) {
	switch vv := p.(type) {
	case map[string]interface{}:
		if k, ok := stepKey(s); ok {
			delete(vv, k)
		}
		return vv, nil
	case []interface{}:
		i, ok := stepIndex(s)
		if !ok || i < 0 || len(vv) <= i {
			return vv, nil
		}
		acc := make([]interface{}, 0, len(vv)-1)
		acc = append(acc, vv[:i]...)
		return append(acc, vv[i+1:]...), nil
	}
	return p, nil
}

// replace puts np in place of p in gp if p is a sequence that np
// replaced.
func replace(gp interface{}, gk interface{}, p, np interface{}) error {
	if gp == nil || !isSeq(p) || Same(p, np) {
		return nil
	}
	_, err := put(gp, gk, np, nil)
	return err
}
