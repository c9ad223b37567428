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
	"sort"
)

// ObjectGetter computes a derived value from a named projection.
type ObjectGetter func(deps map[string]interface{}) interface{}

// ListGetter computes a derived value from a positional projection.
type ListGetter func(args ...interface{}) interface{}

// DefinitionOptions are per-definition switches.
type DefinitionOptions struct {
	// Mutable, if true, stores computed values as the getter
	// returns them.  Otherwise, when the Tree is Immutable, the
	// Tree keeps a deep copy.
	Mutable bool `json:"mutable,omitempty" yaml:",omitempty"`
}

// MonkeyDefinition declares a derived value: a getter and the paths
// it depends on.
//
// Put a *MonkeyDefinition in a Tree's data (anywhere that isn't
// inside a sequence) to mount a monkey there.  Projection paths are
// relative to the monkey's parent when they start with "." or "..".
type MonkeyDefinition struct {
	// Doc is optional documentation.
	Doc string `json:"doc,omitempty" yaml:",omitempty"`

	// Projection is the object form: each key gets the value at
	// its path.
	Projection map[string]Path `json:"cursors,omitempty" yaml:"cursors,omitempty"`

	// Paths is the list form: the getter gets the value at each
	// path as a positional argument.
	Paths []Path `json:"paths,omitempty" yaml:",omitempty"`

	Options DefinitionOptions `json:"options,omitempty" yaml:",omitempty"`

	// Source is the uncompiled getter, if the definition came from
	// an interpreter.  Just for documentation.
	Source interface{} `json:"source,omitempty" yaml:",omitempty"`

	object ObjectGetter
	list   ListGetter

	keys       []string
	hasDynamic bool
}

// MonkeyFrom makes an object-form definition.
func MonkeyFrom(projection map[string]Path, get ObjectGetter) (*MonkeyDefinition, error) {
	if get == nil {
		return nil, invalid("monkey definition", "no getter")
	}
	if projection == nil {
		return nil, invalid("monkey definition", "no projection")
	}
	d := &MonkeyDefinition{
		Projection: projection,
		object:     get,
	}
	return d, d.compile()
}

// MonkeyOf makes a list-form definition.
func MonkeyOf(paths []Path, get ListGetter) (*MonkeyDefinition, error) {
	if get == nil {
		return nil, invalid("monkey definition", "no getter")
	}
	d := &MonkeyDefinition{
		Paths: paths,
		list:  get,
	}
	return d, d.compile()
}

// MustMonkeyFrom is MonkeyFrom that panics on error.
func MustMonkeyFrom(projection map[string]Path, get ObjectGetter) *MonkeyDefinition {
	d, err := MonkeyFrom(projection, get)
	if err != nil {
		panic(err)
	}
	return d
}

// MustMonkeyOf is MonkeyOf that panics on error.
func MustMonkeyOf(paths []Path, get ListGetter) *MonkeyDefinition {
	d, err := MonkeyOf(paths, get)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *MonkeyDefinition) compile() error {
	d.keys = nil
	d.hasDynamic = false
	for k, p := range d.Projection {
		if err := p.Check(); err != nil {
			return invalid("monkey projection", "%s: %s", k, err)
		}
		d.keys = append(d.keys, k)
		d.hasDynamic = d.hasDynamic || p.IsDynamic()
	}
	sort.Strings(d.keys)
	for i, p := range d.Paths {
		if err := p.Check(); err != nil {
			return invalid("monkey paths", "%d: %s", i, err)
		}
		d.hasDynamic = d.hasDynamic || p.IsDynamic()
	}
	return nil
}

// IsObject reports whether this definition has the object form.
func (d *MonkeyDefinition) IsObject() bool {
	return d.object != nil
}

// DepPaths returns the dependency paths (before they are made
// relative to any mount point).  Object-form paths are in key order.
func (d *MonkeyDefinition) DepPaths() []Path {
	if d.IsObject() {
		acc := make([]Path, len(d.keys))
		for i, k := range d.keys {
			acc[i] = d.Projection[k]
		}
		return acc
	}
	return d.Paths
}

// Keys returns the projection keys in order.
func (d *MonkeyDefinition) Keys() []string {
	return d.keys
}

// Monkey is a mounted MonkeyDefinition.
type Monkey struct {
	tree *Tree
	path Path
	def  *MonkeyDefinition

	// depPaths are the definition's paths relative to the mount
	// point.  Object form: in the order of def.keys.
	depPaths []Path

	killed   bool
	updating bool

	offWrite   func()
	offDerived func()
}

func newMonkey(t *Tree, path Path, def *MonkeyDefinition) *Monkey {
	m := &Monkey{
		tree: t,
		path: path,
		def:  def,
	}

	base := path
	if 0 < len(base) {
		base = base[:len(base)-1]
	}
	for _, p := range def.DepPaths() {
		m.depPaths = append(m.depPaths, SolveRelativePath(base, p))
	}

	m.offWrite = t.onWrite.on(m.handleWrite)
	m.offDerived = t.onDerived.on(m.handleDerived)

	return m
}

// Path is the mount path.
func (m *Monkey) Path() Path {
	return m.path
}

func (m *Monkey) Definition() *MonkeyDefinition {
	return m.def
}

// DepPaths returns the dependency paths relative to the mount point,
// before dynamic steps are solved.
func (m *Monkey) DepPaths() []Path {
	return m.depPaths
}

// handleWrite recomputes when the write touches one of the monkey's
// own dependencies.  A write that reaches it only through another
// monkey arrives as that monkey's derived event.
func (m *Monkey) handleWrite(e *WriteEvent) {
	if m.killed {
		return
	}
	if SolveUpdate([]Path{e.Path}, m.RelatedPaths(false)) {
		m.Update()
	}
}

func (m *Monkey) handleDerived(e *derivedEvent) {
	if m.killed || e.Monkey == m {
		return
	}
	if SolveUpdate([]Path{e.Path}, m.RelatedPaths(false)) {
		m.Update()
	}
}

// RelatedPaths returns the solved dependency paths.  If recursive, a
// path that lands in another monkey is replaced by that monkey's
// related paths.
func (m *Monkey) RelatedPaths(recursive bool) []Path {
	if !recursive {
		return m.solvedDeps()
	}
	return m.related(make(map[*Monkey]bool))
}

func (m *Monkey) solvedDeps() []Path {
	if !m.def.hasDynamic {
		return m.depPaths
	}
	acc := make([]Path, len(m.depPaths))
	for i, p := range m.depPaths {
		acc[i] = GetIn(m.tree.data, p).Solved
	}
	return acc
}

// related expands paths through other monkeys.  The stack holds the
// monkeys currently being expanded.  A cycle just stops the
// expansion; Update reports it.
func (m *Monkey) related(stack map[*Monkey]bool) []Path {
	stack[m] = true
	defer delete(stack, m)

	paths := m.solvedDeps()
	acc := make([]Path, 0, len(paths))
	for _, p := range paths {
		_, other := m.tree.monkeyPath(p)
		switch {
		case other == nil, stack[other]:
			acc = append(acc, p)
		default:
			acc = append(acc, other.related(stack)...)
		}
	}
	return acc
}

// deps projects the current dependency values.
func (m *Monkey) deps() interface{} {
	t := m.tree
	if m.def.IsObject() {
		acc := make(map[string]interface{}, len(m.depPaths))
		for i, k := range m.def.keys {
			acc[k] = t.read(GetIn(t.data, m.depPaths[i]).Value)
		}
		return acc
	}
	acc := make([]interface{}, len(m.depPaths))
	for i, p := range m.depPaths {
		acc[i] = t.read(GetIn(t.data, p).Value)
	}
	return acc
}

func (m *Monkey) call(deps interface{}) interface{} {
	var v interface{}
	if m.def.IsObject() {
		v = m.def.object(deps.(map[string]interface{}))
	} else {
		v = m.def.list(deps.([]interface{})...)
	}
	if m.tree.opts.Immutable && !m.def.Options.Mutable {
		v = DeepClone(v)
	}
	return v
}

// Update recomputes the monkey.  With lazy monkeys, the getter runs
// when the value is first read.
func (m *Monkey) Update() {
	if m.killed {
		return
	}
	t := m.tree
	if m.updating {
		t.noteCycle(m.path)
		return
	}
	m.updating = true
	defer func() {
		m.updating = false
	}()

	t.stats.Recomputes++
	t.logf("monkey %s recomputing", m.path)

	deps := m.deps()

	var op Operation
	if t.opts.LazyMonkeys {
		d := NewDeferred(func() interface{} {
			return m.call(deps)
		})
		d.def = m.def
		op = Operation{
			Kind:  OpInstallDerived,
			Value: d,
		}
	} else {
		op = Operation{
			Kind:        OpSet,
			Value:       m.call(deps),
			MutableLeaf: true,
		}
	}

	t.applyDerived(m.path, op)

	t.onDerived.emit(&derivedEvent{
		Monkey: m,
		Path:   m.path,
	})
}

// Release detaches the monkey from the Tree's events.
func (m *Monkey) Release() {
	if m.killed {
		return
	}
	m.killed = true
	m.offWrite()
	m.offDerived()
	m.tree.live--
}

// read returns x for code outside the Tree.  An Immutable Tree
// hands out copies so that the caller can't modify its data.
func (t *Tree) read(x interface{}) interface{} {
	if t.opts.Immutable {
		return Materialize(x)
	}
	return concrete(x)
}

// concrete resolves Deferred nodes in x.  Monkeys can't live inside
// sequences, so only maps are searched.
func concrete(x interface{}) interface{} {
	x = Resolve(x)
	if hasDeferred(x) {
		return Materialize(x)
	}
	return x
}

func hasDeferred(x interface{}) bool {
	m, is := x.(map[string]interface{})
	if !is {
		return false
	}
	for _, v := range m {
		if _, is := v.(*Deferred); is {
			return true
		}
		if hasDeferred(v) {
			return true
		}
	}
	return false
}
