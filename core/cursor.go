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

// Cursor is a view of a Tree at a path.
//
// Reads return concrete data: derived values inside the result are
// computed.  Writes go through the Tree at the cursor's solved path.
type Cursor struct {
	tree *Tree
	path Path
	hash string

	dynamic bool

	// solved is the current concrete form of path.  Nil if a
	// dynamic step couldn't be solved.
	solved Path

	killed bool
	bound  bool

	offUpdate func()
	offWrite  func()
	onUpdate  signal[*CursorUpdate]

	recording bool
	undoing   bool
	archive   *Archive
}

func newCursor(t *Tree, path Path, hash string) *Cursor {
	c := &Cursor{
		tree:    t,
		path:    path,
		hash:    hash,
		dynamic: path.IsDynamic(),
	}
	if c.dynamic {
		c.solved = GetIn(t.data, path).Solved
		// A dynamic cursor has to follow writes to keep its solved
		// path current.
		c.bind()
	} else {
		c.solved = path
	}
	return c
}

// CursorUpdate reports a commit that touched a Cursor's data.
type CursorUpdate struct {
	Cursor *Cursor

	previous interface{}
	solved   Path

	have bool
	data interface{}
}

// PreviousData returns the cursor's data from before the commit.  It's
// computed on the first call.
func (u *CursorUpdate) PreviousData() interface{} {
	if !u.have {
		u.have = true
		if u.solved != nil {
			u.data = u.Cursor.tree.read(GetIn(u.previous, u.solved).Value)
		}
	}
	return u.data
}

// CurrentData returns the cursor's data now.
func (u *CursorUpdate) CurrentData() interface{} {
	return u.Cursor.Get()
}

func (c *Cursor) bind() {
	if c.bound {
		return
	}
	c.bound = true
	if c.dynamic {
		c.offWrite = c.tree.onWrite.on(c.handleWrite)
	}
	c.offUpdate = c.tree.onUpdate.on(c.handleUpdate)
}

// comparedPaths are the paths whose changes concern this cursor.
func (c *Cursor) comparedPaths() []Path {
	acc := []Path{c.solved}
	if _, m := c.tree.monkeyPath(c.solved); m != nil {
		acc = append(acc, m.RelatedPaths(true)...)
	}
	return acc
}

func (c *Cursor) handleWrite(e *WriteEvent) {
	if c.killed || !SolveUpdate([]Path{e.Path}, c.comparedPaths()) {
		return
	}
	c.solved = GetIn(c.tree.data, c.path).Solved
}

func (c *Cursor) handleUpdate(e *UpdateEvent) {
	if c.killed || !SolveUpdate(e.Paths, c.comparedPaths()) {
		return
	}
	u := &CursorUpdate{
		Cursor:   c,
		previous: e.PreviousData,
		solved:   c.solved,
	}
	if c.recording && !c.undoing {
		c.archive.Add(u.PreviousData())
	}
	c.undoing = false
	c.onUpdate.emit(u)
}

// OnUpdate registers a handler for commits that touch this cursor's
// data.  It returns a function that removes the handler.
func (c *Cursor) OnUpdate(fn func(*CursorUpdate)) func() {
	c.bind()
	return c.onUpdate.on(fn)
}

func (c *Cursor) Tree() *Tree {
	return c.tree
}

// Path returns the path as selected, possibly dynamic.
func (c *Cursor) Path() Path {
	return c.path
}

// SolvedPath returns the current concrete path or nil.
func (c *Cursor) SolvedPath() Path {
	return c.solved
}

func (c *Cursor) Released() bool {
	return c.killed
}

func (c *Cursor) IsRoot() bool {
	return len(c.path) == 0
}

// IsLeaf reports whether the cursor's data is neither a map nor a
// sequence.
func (c *Cursor) IsLeaf() bool {
	return !isContainer(c.peek(nil).Value)
}

func (c *Cursor) IsBranch() bool {
	return !c.IsRoot() && !c.IsLeaf()
}

func (c *Cursor) Root() *Cursor {
	return c.tree.Root()
}

// Select returns a cursor for the path relative to this one.
func (c *Cursor) Select(path Path) (*Cursor, error) {
	if c.killed {
		return nil, ErrReleased
	}
	return c.tree.Select(c.path.Concat(path...))
}

// Up returns the parent cursor, or nil at the root.
func (c *Cursor) Up() *Cursor {
	if c.killed || c.IsRoot() {
		return nil
	}
	up, _ := c.tree.Select(c.path[:len(c.path)-1])
	return up
}

func (c *Cursor) traversable() error {
	if c.killed {
		return ErrReleased
	}
	if c.solved == nil {
		return &PathError{Path: c.path}
	}
	return nil
}

// Down returns a cursor for the first element of the sequence here.
func (c *Cursor) Down() (*Cursor, error) {
	if err := c.traversable(); err != nil {
		return nil, err
	}
	if !isSeq(c.peek(nil).Value) {
		return nil, invalid("down", "cannot go down on a non-list type")
	}
	return c.tree.Select(c.solved.Concat(0))
}

// index returns the last step of the solved path as a sequence index.
func (c *Cursor) index(method string) (int, error) {
	if err := c.traversable(); err != nil {
		return 0, err
	}
	if len(c.solved) == 0 {
		return 0, invalid(method, "cannot go %s on a non-list type", method)
	}
	i, ok := stepIndex(c.solved[len(c.solved)-1])
	if !ok {
		return 0, invalid(method, "cannot go %s on a non-list type", method)
	}
	return i, nil
}

func (c *Cursor) sibling(i int) (*Cursor, error) {
	return c.tree.Select(c.solved[:len(c.solved)-1].Concat(i))
}

func (c *Cursor) siblings() int {
	xs, _ := GetIn(c.tree.data, c.solved[:len(c.solved)-1]).Value.([]interface{})
	return len(xs)
}

// Left returns the previous sibling or nil if this cursor is the
// leftmost.
func (c *Cursor) Left() (*Cursor, error) {
	i, err := c.index("left")
	if err != nil || i == 0 {
		return nil, err
	}
	return c.sibling(i - 1)
}

// Right returns the next sibling or nil if this cursor is the
// rightmost.
func (c *Cursor) Right() (*Cursor, error) {
	i, err := c.index("right")
	if err != nil || i+1 >= c.siblings() {
		return nil, err
	}
	return c.sibling(i + 1)
}

func (c *Cursor) Leftmost() (*Cursor, error) {
	if _, err := c.index("left"); err != nil {
		return nil, err
	}
	return c.sibling(0)
}

func (c *Cursor) Rightmost() (*Cursor, error) {
	if _, err := c.index("right"); err != nil {
		return nil, err
	}
	return c.sibling(c.siblings() - 1)
}

// Map calls fn with a cursor for each element of the sequence here.
func (c *Cursor) Map(fn func(child *Cursor, i int) interface{}) ([]interface{}, error) {
	if err := c.traversable(); err != nil {
		return nil, err
	}
	xs, is := c.peek(nil).Value.([]interface{})
	if !is {
		return nil, invalid("map", "cannot map a non-list type")
	}
	acc := make([]interface{}, len(xs))
	for i := range xs {
		child, err := c.Select(Path{i})
		if err != nil {
			return nil, err
		}
		acc[i] = fn(child, i)
	}
	return acc, nil
}

// Iterator steps through cursors for the elements of a sequence.
type Iterator struct {
	cursor *Cursor
	n      int
	i      int
}

// Iter returns an Iterator over the sequence here.  The length is
// taken when the iterator starts.
func (c *Cursor) Iter() (*Iterator, error) {
	if err := c.traversable(); err != nil {
		return nil, err
	}
	if !isSeq(c.peek(nil).Value) {
		return nil, invalid("iterate", "cannot iterate on a non-list type")
	}
	it := &Iterator{cursor: c}
	it.Reset()
	return it, nil
}

// Next returns the next cursor.  The bool is false when the iterator
// is done.
func (it *Iterator) Next() (*Cursor, bool) {
	if it.n <= it.i {
		return nil, false
	}
	c, err := it.cursor.Select(Path{it.i})
	if err != nil {
		return nil, false
	}
	it.i++
	return c, true
}

// Reset restarts the iterator with the current length.
func (it *Iterator) Reset() {
	xs, _ := it.cursor.peek(nil).Value.([]interface{})
	it.n = len(xs)
	it.i = 0
}

// peek reads without a get event.
func (c *Cursor) peek(path Path) Located {
	if c.killed || c.solved == nil {
		return Located{}
	}
	return GetIn(c.tree.data, c.solved.Concat(path...))
}

func (c *Cursor) Get() interface{} {
	return c.GetIn(nil)
}

// GetIn returns the data at the path relative to this cursor.  It
// emits the Tree's get event.  An Immutable Tree returns a copy.
func (c *Cursor) GetIn(path Path) interface{} {
	loc := c.peek(path)
	data := c.tree.read(loc.Value)
	if !c.killed {
		c.tree.onGet.emit(&GetEvent{
			Path:   c.path.Concat(path...),
			Solved: loc.Solved,
			Data:   data,
		})
	}
	return data
}

func (c *Cursor) Exists() bool {
	return c.peek(nil).Exists
}

func (c *Cursor) ExistsIn(path Path) bool {
	return c.peek(path).Exists
}

// Clone returns a shallow copy of the data.
func (c *Cursor) Clone() interface{} {
	return Clone(c.Get())
}

func (c *Cursor) DeepClone() interface{} {
	return DeepClone(c.Get())
}

func (c *Cursor) Serialize() interface{} {
	return c.SerializeIn(nil)
}

// SerializeIn returns a copy of the data at the path without any
// derived values.
func (c *Cursor) SerializeIn(path Path) interface{} {
	loc := c.peek(path)
	if !loc.Ok() {
		return nil
	}
	return strip(loc.Value, GetIn(c.tree.monkeys, loc.Solved).Value)
}

func strip(x interface{}, monkeys interface{}) interface{} {
	mm, _ := monkeys.(map[string]interface{})
	switch vv := Resolve(x).(type) {
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(vv))
		for k, v := range vv {
			if _, is := mm[k].(*Monkey); is {
				continue
			}
			acc[k] = strip(v, mm[k])
		}
		return acc
	case []interface{}:
		acc := make([]interface{}, len(vv))
		for i, v := range vv {
			acc[i] = strip(v, nil)
		}
		return acc
	default:
		return vv
	}
}

// Project reads several paths relative to this cursor.  A
// map[string]Path projection gives a map.  A []Path projection gives
// a sequence.
func (c *Cursor) Project(projection interface{}) (interface{}, error) {
	switch vv := projection.(type) {
	case map[string]Path:
		acc := make(map[string]interface{}, len(vv))
		for k, p := range vv {
			acc[k] = c.GetIn(p)
		}
		return acc, nil
	case []Path:
		acc := make([]interface{}, len(vv))
		for i, p := range vv {
			acc[i] = c.GetIn(p)
		}
		return acc, nil
	}
	return nil, invalid("projection", "wrong projection %T", projection)
}

func (c *Cursor) update(path Path, op Operation) error {
	if c.killed {
		return ErrReleased
	}
	if c.solved == nil {
		return &PathError{Path: c.path}
	}
	_, err := c.tree.Update(c.solved.Concat(path...), op)
	return err
}

func (c *Cursor) Set(v interface{}) error {
	return c.SetIn(nil, v)
}

func (c *Cursor) SetIn(path Path, v interface{}) error {
	return c.update(path, Operation{Kind: OpSet, Value: v})
}

func (c *Cursor) Unset() error {
	return c.UnsetIn(nil)
}

func (c *Cursor) UnsetIn(path Path) error {
	return c.update(path, Operation{Kind: OpUnset})
}

// Apply replaces the data with fn's result.
func (c *Cursor) Apply(fn func(interface{}) interface{}) error {
	return c.ApplyIn(nil, fn)
}

func (c *Cursor) ApplyIn(path Path, fn func(interface{}) interface{}) error {
	if fn == nil {
		return invalid("apply", "value should be a function")
	}
	return c.update(path, Operation{Kind: OpApply, Fn: fn})
}

func (c *Cursor) Push(v interface{}) error {
	return c.PushIn(nil, v)
}

func (c *Cursor) PushIn(path Path, v interface{}) error {
	return c.update(path, Operation{Kind: OpPush, Value: v})
}

func (c *Cursor) Unshift(v interface{}) error {
	return c.UnshiftIn(nil, v)
}

func (c *Cursor) UnshiftIn(path Path, v interface{}) error {
	return c.update(path, Operation{Kind: OpUnshift, Value: v})
}

func (c *Cursor) Concat(xs []interface{}) error {
	return c.ConcatIn(nil, xs)
}

func (c *Cursor) ConcatIn(path Path, xs []interface{}) error {
	if xs == nil {
		return invalid("concat", "value should be an array")
	}
	return c.update(path, Operation{Kind: OpConcat, Value: xs})
}

// Splice takes a splicer [start, deleteCount, items...].
func (c *Cursor) Splice(splicer []interface{}) error {
	return c.SpliceIn(nil, splicer)
}

func (c *Cursor) SpliceIn(path Path, splicer []interface{}) error {
	if len(splicer) == 0 {
		return invalid("splice", "splice requires at least one argument")
	}
	return c.update(path, Operation{Kind: OpSplice, Value: splicer})
}

func (c *Cursor) Pop() error {
	return c.PopIn(nil)
}

func (c *Cursor) PopIn(path Path) error {
	return c.update(path, Operation{Kind: OpPop})
}

func (c *Cursor) Shift() error {
	return c.ShiftIn(nil)
}

func (c *Cursor) ShiftIn(path Path) error {
	return c.update(path, Operation{Kind: OpShift})
}

func (c *Cursor) Merge(m map[string]interface{}) error {
	return c.MergeIn(nil, m)
}

func (c *Cursor) MergeIn(path Path, m map[string]interface{}) error {
	if m == nil {
		return invalid("merge", "value should be an object")
	}
	return c.update(path, Operation{Kind: OpMerge, Value: m})
}

func (c *Cursor) DeepMerge(m map[string]interface{}) error {
	return c.DeepMergeIn(nil, m)
}

func (c *Cursor) DeepMergeIn(path Path, m map[string]interface{}) error {
	if m == nil {
		return invalid("deepMerge", "value should be an object")
	}
	return c.update(path, Operation{Kind: OpDeepMerge, Value: m})
}

// StartRecording keeps up to max previous values, one per update.  A
// max of 0 means no limit.
func (c *Cursor) StartRecording(max int) error {
	if c.killed {
		return ErrReleased
	}
	if max < 0 {
		return invalid("startRecording", "invalid max records %d", max)
	}
	c.recording = true
	if c.archive != nil {
		return nil
	}
	c.bind()
	c.archive = NewArchive(max)
	return nil
}

func (c *Cursor) StopRecording() {
	c.recording = false
}

// Undo restores the value from steps updates ago.  The restoring
// write isn't recorded.
func (c *Cursor) Undo(steps int) error {
	if !c.recording {
		return invalid("undo", "cursor is not recording")
	}
	record, ok := c.archive.Back(steps)
	if !ok {
		return invalid("undo", "cannot find a relevant record")
	}
	if Same(Resolve(c.peek(nil).Value), record) {
		return nil
	}
	c.undoing = true
	if err := c.Set(record); err != nil {
		c.undoing = false
		return err
	}
	return nil
}

func (c *Cursor) HasHistory() bool {
	return c.archive != nil && 0 < c.archive.Len()
}

// GetHistory returns the recorded values, newest first.
func (c *Cursor) GetHistory() []interface{} {
	if c.archive == nil {
		return nil
	}
	return c.archive.Get()
}

func (c *Cursor) ClearHistory() {
	if c.archive != nil {
		c.archive.Clear()
	}
}

// Release detaches the cursor from its Tree.
func (c *Cursor) Release() {
	if c.killed {
		return
	}
	if c.offWrite != nil {
		c.offWrite()
	}
	if c.offUpdate != nil {
		c.offUpdate()
	}
	if c.tree.cursors[c.hash] == c {
		delete(c.tree.cursors, c.hash)
	}
	c.killed = true
	c.archive = nil
	c.recording = false
	c.onUpdate.clear()
}
