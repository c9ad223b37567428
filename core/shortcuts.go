package core

// These methods are the root cursor's, with paths from the root.

func (t *Tree) Get(path Path) interface{} {
	return t.Root().GetIn(path)
}

func (t *Tree) Exists(path Path) bool {
	return t.Root().ExistsIn(path)
}

func (t *Tree) Serialize(path Path) interface{} {
	return t.Root().SerializeIn(path)
}

func (t *Tree) Project(projection interface{}) (interface{}, error) {
	if t.released {
		return nil, ErrReleased
	}
	return t.Root().Project(projection)
}

func (t *Tree) Clone(path Path) interface{} {
	return Clone(t.Get(path))
}

func (t *Tree) DeepClone(path Path) interface{} {
	return DeepClone(t.Get(path))
}

func (t *Tree) Set(path Path, v interface{}) error {
	_, err := t.Update(path, Operation{Kind: OpSet, Value: v})
	return err
}

func (t *Tree) Unset(path Path) error {
	_, err := t.Update(path, Operation{Kind: OpUnset})
	return err
}

func (t *Tree) Apply(path Path, fn func(interface{}) interface{}) error {
	if t.released {
		return ErrReleased
	}
	return t.Root().ApplyIn(path, fn)
}

func (t *Tree) Push(path Path, v interface{}) error {
	_, err := t.Update(path, Operation{Kind: OpPush, Value: v})
	return err
}

func (t *Tree) Unshift(path Path, v interface{}) error {
	_, err := t.Update(path, Operation{Kind: OpUnshift, Value: v})
	return err
}

func (t *Tree) Concat(path Path, xs []interface{}) error {
	if t.released {
		return ErrReleased
	}
	return t.Root().ConcatIn(path, xs)
}

func (t *Tree) Splice(path Path, splicer []interface{}) error {
	if t.released {
		return ErrReleased
	}
	return t.Root().SpliceIn(path, splicer)
}

func (t *Tree) Pop(path Path) error {
	_, err := t.Update(path, Operation{Kind: OpPop})
	return err
}

func (t *Tree) Shift(path Path) error {
	_, err := t.Update(path, Operation{Kind: OpShift})
	return err
}

func (t *Tree) Merge(path Path, m map[string]interface{}) error {
	if t.released {
		return ErrReleased
	}
	return t.Root().MergeIn(path, m)
}

func (t *Tree) DeepMerge(path Path, m map[string]interface{}) error {
	if t.released {
		return ErrReleased
	}
	return t.Root().DeepMergeIn(path, m)
}
