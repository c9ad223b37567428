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

// Package sio couples a tree to the outside world.
//
// A Tap receives a Digest for every committed update (and every
// validation failure).  Stdio, WebSocketHub, MQTTTap, and JSONStore
// are Taps.  Stdio can also read write commands.
package sio

import (
	"context"
	"encoding/json"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/util"
)

// Tap publishes Digests somewhere.
//
// Publish is called on the goroutine that owns the tree, so it
// shouldn't block for long.
type Tap interface {
	// Start initializes the Tap.
	Start(context.Context) error

	// Publish sends the digest.
	Publish(context.Context, *Digest) error

	// Stop shuts down the Tap.
	Stop(context.Context) error
}

const (
	KindUpdate  = "update"
	KindInvalid = "invalid"
)

// Step is a transaction entry that's safe to marshal.
type Step struct {
	Kind  string        `json:"type"`
	Path  []interface{} `json:"path"`
	Value interface{}   `json:"value,omitempty"`
}

// Digest is the outside world's view of one commit.
type Digest struct {
	// Kind is KindUpdate or KindInvalid.
	Kind string `json:"kind"`

	// ID is the commit's ULID.  Empty for KindInvalid.
	ID string `json:"id,omitempty"`

	Paths       [][]interface{} `json:"paths,omitempty"`
	Transaction []Step          `json:"transaction,omitempty"`

	// Data is the new data without derived values.
	Data interface{} `json:"data,omitempty"`

	// Error is the validation error for KindInvalid.
	Error string `json:"error,omitempty"`
}

// Copy makes a shallow copy.
func (d *Digest) Copy() *Digest {
	c := *d
	return &c
}

// marshalable reports whether x can be rendered as JSON.  Apply
// functions and splice predicates can't.
func marshalable(x interface{}) bool {
	_, err := json.Marshal(&x)
	return err == nil
}

// NewDigest summarizes the update.  Data is given separately since
// the event's data might include derived values.
func NewDigest(e *core.UpdateEvent, data interface{}) *Digest {
	d := &Digest{
		Kind:        KindUpdate,
		ID:          e.ID,
		Paths:       make([][]interface{}, len(e.Paths)),
		Transaction: make([]Step, len(e.Transaction)),
		Data:        data,
	}
	for i, p := range e.Paths {
		d.Paths[i] = []interface{}(p)
	}
	for i, entry := range e.Transaction {
		s := Step{
			Kind: entry.Kind.String(),
			Path: []interface{}(entry.Path),
		}
		if marshalable(entry.Value) {
			s.Value = core.Materialize(entry.Value)
		}
		d.Transaction[i] = s
	}
	return d
}

// Attach publishes the tree's updates and validation failures to
// the taps.  The taps should already be started.  The returned
// function detaches them.
//
// A Tap's Publish error is logged.
func Attach(ctx context.Context, tree *core.Tree, taps ...Tap) func() {
	publish := func(d *Digest) {
		for _, tap := range taps {
			if err := tap.Publish(ctx, d); err != nil {
				util.Warnf("sio: %T publish error %s", tap, err)
			}
		}
	}

	offUpdate := tree.OnUpdate(func(e *core.UpdateEvent) {
		publish(NewDigest(e, tree.Serialize(nil)))
	})
	offInvalid := tree.OnInvalid(func(e *core.InvalidEvent) {
		d := &Digest{
			Kind: KindInvalid,
		}
		if e.Error != nil {
			d.Error = e.Error.Error()
		}
		publish(d)
	})

	return func() {
		offUpdate()
		offInvalid()
	}
}
