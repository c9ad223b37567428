package core

import (
	"encoding/json"
)

// Deferred is a derived value that hasn't necessarily been computed
// yet.  A Deferred sits in the data in place of a concrete value.
// Everything else in the data is a Concrete value.
//
// Use Resolve to read through a node that might be a Deferred.
type Deferred struct {
	thunk func() interface{}
	done  bool
	value interface{}

	// def is the definition of the monkey that installed this
	// node.  A sweep that finds a Deferred re-mounts that monkey.
	def *MonkeyDefinition
}

// NewDeferred makes a Deferred that will call the given function at
// most once.
func NewDeferred(thunk func() interface{}) *Deferred {
	return &Deferred{
		thunk: thunk,
	}
}

// Value computes the value if needed and returns it.
func (d *Deferred) Value() interface{} {
	if !d.done {
		d.value = d.thunk()
		d.done = true
		d.thunk = nil
	}
	return d.value
}

// Computed reports whether the value has already been computed.
func (d *Deferred) Computed() bool {
	return d.done
}

// Definition returns the definition of the monkey that installed
// this node, if any.
func (d *Deferred) Definition() *MonkeyDefinition {
	return d.def
}

func (d *Deferred) MarshalJSON() ([]byte, error) {
	v := d.Value()
	return json.Marshal(&v)
}

// Resolve returns the concrete value of the given node.
func Resolve(x interface{}) interface{} {
	if d, is := x.(*Deferred); is {
		return d.Value()
	}
	return x
}
