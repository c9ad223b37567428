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
	"log"

	"github.com/Comcast/arbor/util"

	"github.com/oklog/ulid/v2"
)

// ValidationBehavior says what a Tree does when its Validator
// reports an error at commit time.
type ValidationBehavior int

const (
	// Rollback restores the data from before the transaction and
	// drops the transaction.
	Rollback ValidationBehavior = iota

	// Notify keeps the changes.
	Notify
)

// Validator checks data at commit time.  The affected paths are the
// paths written by the transaction.  A non-nil error is reported
// through the Tree's invalid event.
type Validator func(previous, current interface{}, affected []Path) error

// Options configure a Tree.  Start with DefaultOptions.
type Options struct {
	// AutoCommit, if true, commits without a call to Commit.
	AutoCommit bool

	// Asynchronous, if true (and AutoCommit), defers the commit to
	// the Scheduler so that consecutive writes share one
	// transaction.
	Asynchronous bool

	// Immutable, if true, means that the Tree owns its data:
	// values that are written are deep copies, and so are the
	// values that reads return.  Data() still returns the Tree's
	// own root.
	Immutable bool

	// Persistent, if true, means that writes never modify data
	// reachable from an earlier snapshot.  If false, Immutable and
	// Pure are also false.
	Persistent bool

	// Pure, if true, means that writing a value that's already
	// there is not a write.
	Pure bool

	// LazyMonkeys, if true, computes derived values when they are
	// first read.
	LazyMonkeys bool

	Validate           Validator
	ValidationBehavior ValidationBehavior

	// Scheduler runs asynchronous commits.  If nil, the Tree
	// makes its own Loop, which Flush drains.
	Scheduler Scheduler

	// Verbose logs writes, commits, and recomputes.
	Verbose bool
}

// DefaultOptions returns the default configuration: everything on,
// with rollback on validation errors.
func DefaultOptions() *Options {
	return &Options{
		AutoCommit:         true,
		Asynchronous:       true,
		Immutable:          true,
		Persistent:         true,
		Pure:               true,
		LazyMonkeys:        true,
		ValidationBehavior: Rollback,
	}
}

// Entry is an operation in a transaction.
type Entry struct {
	Kind  OpKind      `json:"type"`
	Value interface{} `json:"value,omitempty"`

	// Path is the affected path.
	Path Path `json:"path"`
}

// SelectEvent reports a call to Select.
type SelectEvent struct {
	Path   Path
	Cursor *Cursor
}

// GetEvent reports a read through a Cursor.
type GetEvent struct {
	Path   Path
	Solved Path
	Data   interface{}
}

// WriteEvent reports one operation before it's committed.
type WriteEvent struct {
	Path Path
}

// UpdateEvent reports a commit.
type UpdateEvent struct {
	ID           string      `json:"id"`
	Paths        []Path      `json:"paths"`
	CurrentData  interface{} `json:"-"`
	PreviousData interface{} `json:"-"`
	Transaction  []Entry     `json:"transaction"`
}

// InvalidEvent reports a validation error.
type InvalidEvent struct {
	Error error
}

// derivedEvent reports a monkey recomputation.  Only monkeys listen.
type derivedEvent struct {
	Monkey *Monkey
	Path   Path
}

// Stats are running counts for a Tree.
type Stats struct {
	Writes     uint64 `json:"writes"`
	Commits    uint64 `json:"commits"`
	Rollbacks  uint64 `json:"rollbacks"`
	Invalid    uint64 `json:"invalid"`
	Recomputes uint64 `json:"recomputes"`
	Cursors    int    `json:"cursors"`
	Monkeys    int    `json:"monkeys"`
}

// Tree is an in-memory hierarchical store.
//
// A Tree isn't safe for concurrent use.  Use a Loop to funnel work
// from other goroutines.
type Tree struct {
	opts Options

	data     interface{}
	previous interface{}

	// monkeys mirrors the shape of the data down to each mounted
	// Monkey.
	monkeys map[string]interface{}
	live    int

	cursors map[string]*Cursor
	root    *Cursor

	affected    []Path
	index       map[string]bool
	transaction []Entry

	// mounts are the monkeys from before the transaction, for
	// rollback.
	mounts       []mount
	monkeysDirty bool

	loop         *Loop
	cancelCommit func()

	cycle    error
	released bool
	stats    Stats

	onSelect  signal[*SelectEvent]
	onGet     signal[*GetEvent]
	onWrite   signal[*WriteEvent]
	onUpdate  signal[*UpdateEvent]
	onInvalid signal[*InvalidEvent]
	onRelease signal[*Tree]
	onDerived signal[*derivedEvent]
}

type mount struct {
	path Path
	def  *MonkeyDefinition
}

// New makes a Tree with the given data, which must be a map or a
// sequence.  Nil options means DefaultOptions().
//
// Any MonkeyDefinitions in the data are mounted, and then the data is
// validated.
func New(data interface{}, opts *Options) (*Tree, error) {
	if !isContainer(data) {
		return nil, invalid("data", "initial data must be a map or a sequence, not %T", data)
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	t := &Tree{
		opts:    *opts,
		monkeys: make(map[string]interface{}),
		cursors: make(map[string]*Cursor),
		index:   make(map[string]bool),
	}
	if !t.opts.Persistent {
		t.opts.Immutable = false
		t.opts.Pure = false
	}
	if t.opts.Asynchronous && t.opts.Scheduler == nil {
		t.loop = NewLoop()
		t.opts.Scheduler = t.loop
	}

	if t.opts.Immutable {
		data = DeepClone(data)
	}
	t.data = data

	root, err := t.Select(Path{})
	if err != nil {
		return nil, err
	}
	t.root = root

	t.walk(t.data, Path{})
	if err := t.takeCycle(); err != nil {
		return nil, err
	}

	if err := t.Validate(nil); err != nil {
		return nil, err
	}

	return t, nil
}

// Options returns the effective options.
func (t *Tree) Options() Options {
	return t.opts
}

func (t *Tree) policy() Policy {
	return Policy{
		Persistent: t.opts.Persistent,
		Immutable:  t.opts.Immutable,
		Pure:       t.opts.Pure,
	}
}

func (t *Tree) logf(format string, args ...interface{}) {
	if t.opts.Verbose {
		log.Printf("tree "+format, args...)
		return
	}
	util.Logf(format, args...)
}

// Data returns the current snapshot.  Don't modify it.
func (t *Tree) Data() interface{} {
	return t.data
}

// Released reports whether Release has been called.
func (t *Tree) Released() bool {
	return t.released
}

func (t *Tree) Stats() Stats {
	s := t.stats
	s.Cursors = len(t.cursors)
	s.Monkeys = t.live
	return s
}

// Root returns the Cursor for the root path.
func (t *Tree) Root() *Cursor {
	if t.root.killed && !t.released {
		t.root, _ = t.Select(Path{})
	}
	return t.root
}

// Select returns a Cursor for the path.  Selecting the same static
// path again returns the same Cursor.  A dynamic path always gets a
// new Cursor.
func (t *Tree) Select(path Path) (*Cursor, error) {
	if t.released {
		return nil, ErrReleased
	}
	if err := path.Check(); err != nil {
		return nil, err
	}
	hash := hashPath(path)
	c, have := t.cursors[hash]
	if !have {
		c = newCursor(t, path.Copy(), hash)
		t.cursors[hash] = c
	}
	t.onSelect.emit(&SelectEvent{
		Path:   path,
		Cursor: c,
	})
	return c, nil
}

// monkeyPath returns the mount path and Monkey of the monkey at or
// above the given path.
func (t *Tree) monkeyPath(path Path) (Path, *Monkey) {
	var c interface{} = t.monkeys
	for i, s := range path {
		m, is := c.(map[string]interface{})
		if !is {
			return nil, nil
		}
		k, ok := stepKey(s)
		if !ok {
			return nil, nil
		}
		c = m[k]
		if mk, is := c.(*Monkey); is {
			return path[:i+1].Copy(), mk
		}
	}
	return nil, nil
}

// GetMonkey returns the Monkey mounted exactly at the path.
func (t *Tree) GetMonkey(path Path) *Monkey {
	mp, m := t.monkeyPath(path)
	if m == nil || len(mp) != len(path) {
		return nil
	}
	return m
}

// MonkeyAt returns the Monkey mounted at or above the path along
// with its mount path.
func (t *Tree) MonkeyAt(path Path) (Path, *Monkey) {
	return t.monkeyPath(path)
}

// Monkeys returns all the mounted monkeys.
func (t *Tree) Monkeys() []*Monkey {
	var acc []*Monkey
	var walk func(x interface{})
	walk = func(x interface{}) {
		switch vv := x.(type) {
		case *Monkey:
			acc = append(acc, vv)
		case map[string]interface{}:
			for _, v := range vv {
				walk(v)
			}
		}
	}
	walk(t.monkeys)
	return acc
}

// Update applies the operation at the path.  It returns the node now
// at the path.
//
// An error other than a *CycleError means that nothing happened.  A
// *CycleError means the write happened but made a monkey's
// recompute reach itself.
func (t *Tree) Update(path Path, op Operation) (interface{}, error) {
	if t.released {
		return nil, ErrReleased
	}
	if !op.Kind.Valid() {
		return nil, &UnknownOperation{Kind: op.Kind}
	}
	if op.Kind == OpInstallDerived {
		return nil, invalid("operation", "%s is only for monkeys", op.Kind)
	}
	if err := path.Check(); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		switch op.Kind {
		case OpUnset:
			return nil, invalid("path", "cannot unset the root")
		case OpSet:
			if !isContainer(op.Value) {
				return nil, invalid("value", "the root must be a map or a sequence, not %T", op.Value)
			}
		}
	}

	loc := GetIn(t.data, path)
	if !loc.Ok() || loc.Solved.IsDynamic() {
		return nil, &PathError{Path: path}
	}
	solved := loc.Solved

	if mp, _ := t.monkeyPath(solved); mp != nil && len(mp) < len(solved) {
		return nil, &ReadOnlyError{Path: solved, MonkeyPath: mp}
	}

	if op.Kind == OpUnset && !loc.Exists {
		return nil, nil
	}

	real := op
	if op.Kind == OpMerge || op.Kind == OpDeepMerge {
		mn, hasMonkeys := GetIn(t.monkeys, solved).Value.(map[string]interface{})
		v, isMap := op.Value.(map[string]interface{})
		if hasMonkeys && isMap {
			cur, _ := loc.Value.(map[string]interface{})
			base := DeepMerge(make(map[string]interface{}), cur, mn)
			if op.Kind == OpMerge {
				real.Value = ShallowMerge(base, v)
			} else {
				real.Value = DeepMerge(base, v)
			}
		}
	}

	if len(t.transaction) == 0 {
		t.previous = t.data
		t.stashMounts()
	}
	t.cycle = nil

	applied, err := Apply(t.data, solved, real, t.policy())
	if err != nil {
		return nil, err
	}
	if !applied.Written {
		return applied.Node, nil
	}

	affected := solved
	if op.Kind == OpPush {
		xs, _ := applied.Node.([]interface{})
		affected = solved.Concat(len(xs) - 1)
	}

	t.data = applied.Data
	t.markAffected(affected)
	t.transaction = append(t.transaction, Entry{
		Kind:  op.Kind,
		Value: op.Value,
		Path:  affected,
	})
	t.stats.Writes++
	t.logf("%s at %s", op.Kind, affected)

	t.sweep(solved, applied.Node, op.Kind == OpUnset)

	t.onWrite.emit(&WriteEvent{Path: affected})

	err = t.takeCycle()

	switch {
	case !t.opts.AutoCommit:
	case !t.opts.Asynchronous:
		t.Commit()
	case t.cancelCommit == nil:
		t.cancelCommit = t.opts.Scheduler.Schedule(func() {
			t.cancelCommit = nil
			t.Commit()
		})
	}

	return applied.Node, err
}

// applyDerived writes a monkey's value.  During an open transaction,
// the monkey's path counts as affected.
func (t *Tree) applyDerived(path Path, op Operation) {
	applied, err := Apply(t.data, path, op, t.policy())
	if err != nil {
		t.logf("monkey at %s couldn't write: %s", path, err)
		return
	}
	if !applied.Written {
		return
	}
	t.data = applied.Data
	if 0 < len(t.transaction) {
		t.markAffected(path)
	}
}

func (t *Tree) markAffected(p Path) {
	h := hashPath(p)
	if t.index[h] {
		return
	}
	t.index[h] = true
	t.affected = append(t.affected, p)
}

func (t *Tree) noteCycle(p Path) {
	if t.cycle == nil {
		t.cycle = &CycleError{Path: p}
		t.logf("monkey cycle at %s", p)
	}
}

func (t *Tree) takeCycle() error {
	err := t.cycle
	t.cycle = nil
	return err
}

// sweep releases the monkeys under the path and then mounts any
// monkeys in the new node.
func (t *Tree) sweep(path Path, node interface{}, unset bool) {
	if existing := GetIn(t.monkeys, path).Value; existing != nil {
		t.clean(existing, path)
	}
	if !unset {
		t.walk(node, path)
	}
}

func (t *Tree) clean(x interface{}, path Path) {
	switch vv := x.(type) {
	case *Monkey:
		vv.Release()
		t.monkeysDirty = true
		if len(path) == 0 {
			t.monkeys = make(map[string]interface{})
			return
		}
		if applied, err := Apply(t.monkeys, path, Operation{Kind: OpUnset}, Policy{}); err == nil {
			t.monkeys = applied.Data.(map[string]interface{})
		}
	case map[string]interface{}:
		for k, v := range vv {
			t.clean(v, path.Concat(k))
		}
	}
}

// walk mounts a monkey wherever it finds a definition.  Sequences
// aren't searched.
func (t *Tree) walk(x interface{}, path Path) {
	switch vv := x.(type) {
	case *MonkeyDefinition:
		t.mount(path, vv)
	case *Monkey:
		t.mount(path, vv.def)
	case *Deferred:
		if vv.def != nil {
			t.mount(path, vv.def)
		}
	case map[string]interface{}:
		for k, v := range vv {
			t.walk(v, path.Concat(k))
		}
	}
}

func (t *Tree) mount(path Path, def *MonkeyDefinition) {
	if len(path) == 0 {
		t.logf("can't mount a monkey at the root")
		return
	}
	m := newMonkey(t, path.Copy(), def)
	applied, err := Apply(t.monkeys, path, Operation{Kind: OpSet, Value: m}, Policy{})
	if err != nil {
		t.logf("couldn't mount monkey at %s: %s", path, err)
		m.Release()
		return
	}
	t.monkeys = applied.Data.(map[string]interface{})
	t.monkeysDirty = true
	t.live++
	m.Update()
}

func (t *Tree) stashMounts() {
	t.monkeysDirty = false
	t.mounts = t.mounts[:0]
	for _, m := range t.Monkeys() {
		t.mounts = append(t.mounts, mount{path: m.path, def: m.def})
	}
}

// restoreMounts remounts the monkeys from before the transaction.
func (t *Tree) restoreMounts() {
	for _, m := range t.Monkeys() {
		m.Release()
	}
	t.monkeys = make(map[string]interface{})
	mounts := t.mounts
	t.mounts = nil
	for _, m := range mounts {
		t.mount(m.path, m.def)
	}
	t.monkeysDirty = false
}

func (t *Tree) reset() {
	t.affected = nil
	t.index = make(map[string]bool)
	t.transaction = nil
	t.previous = nil
	t.mounts = nil
}

// Validate runs the Validator, if any, for the given affected paths
// (nil means the root).  On error under Rollback, the data from
// before the open transaction is restored.
func (t *Tree) Validate(affected []Path) error {
	if t.opts.Validate == nil {
		return nil
	}
	if affected == nil {
		affected = []Path{{}}
	}
	err := t.opts.Validate(t.previous, t.data, affected)
	if err == nil {
		return nil
	}

	t.stats.Invalid++
	if t.opts.ValidationBehavior == Rollback {
		t.rollback()
	}
	t.onInvalid.emit(&InvalidEvent{Error: err})
	return err
}

func (t *Tree) rollback() {
	t.stats.Rollbacks++
	t.logf("rolling back %d operations", len(t.transaction))
	t.data = t.previous
	dirty := t.monkeysDirty
	mounts := t.mounts
	t.reset()
	if dirty {
		t.mounts = mounts
		t.restoreMounts()
	}
}

// Commit ends the open transaction, if any.
//
// If the Validator reports an error under Rollback, the transaction
// is discarded without an update event.
func (t *Tree) Commit() {
	if t.released || len(t.transaction) == 0 {
		return
	}
	if t.cancelCommit != nil {
		t.cancelCommit()
		t.cancelCommit = nil
	}

	affected := t.affected
	if err := t.Validate(affected); err != nil && t.opts.ValidationBehavior == Rollback {
		return
	}

	e := &UpdateEvent{
		ID:           ulid.Make().String(),
		Paths:        affected,
		CurrentData:  t.data,
		PreviousData: t.previous,
		Transaction:  t.transaction,
	}
	t.reset()
	t.stats.Commits++
	t.logf("commit %s (%d paths)", e.ID, len(e.Paths))

	t.onUpdate.emit(e)
}

// Flush runs the pending asynchronous commit, if any.
func (t *Tree) Flush() {
	if t.loop != nil {
		t.loop.RunPending()
		return
	}
	t.Commit()
}

// Pending reports whether there's an open transaction.
func (t *Tree) Pending() bool {
	return 0 < len(t.transaction)
}

// Release tears down the Tree: pending commits are cancelled, cursors
// and monkeys are released, and all handlers are dropped.
func (t *Tree) Release() {
	if t.released {
		return
	}
	t.onRelease.emit(t)

	if t.cancelCommit != nil {
		t.cancelCommit()
		t.cancelCommit = nil
	}
	for _, c := range t.cursors {
		c.Release()
	}
	for _, m := range t.Monkeys() {
		m.Release()
	}

	t.released = true
	t.data = nil
	t.previous = nil
	t.monkeys = nil
	t.reset()

	t.onSelect.clear()
	t.onGet.clear()
	t.onWrite.clear()
	t.onUpdate.clear()
	t.onInvalid.clear()
	t.onRelease.clear()
	t.onDerived.clear()
}

func (t *Tree) OnSelect(fn func(*SelectEvent)) func() {
	return t.onSelect.on(fn)
}

func (t *Tree) OnGet(fn func(*GetEvent)) func() {
	return t.onGet.on(fn)
}

func (t *Tree) OnWrite(fn func(*WriteEvent)) func() {
	return t.onWrite.on(fn)
}

func (t *Tree) OnUpdate(fn func(*UpdateEvent)) func() {
	return t.onUpdate.on(fn)
}

func (t *Tree) OnInvalid(fn func(*InvalidEvent)) func() {
	return t.onInvalid.on(fn)
}

func (t *Tree) OnRelease(fn func(*Tree)) func() {
	return t.onRelease.on(fn)
}
