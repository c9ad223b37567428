package core

// Watcher reports commits that touch any of a set of named paths.
type Watcher struct {
	tree    *Tree
	mapping map[string]interface{}
	killed  bool

	off      func()
	onUpdate signal[*UpdateEvent]
}

// Watch makes a Watcher for the mapping.  Each value is a Path or a
// *Cursor.
func (t *Tree) Watch(mapping map[string]interface{}) (*Watcher, error) {
	if t.released {
		return nil, ErrReleased
	}
	w := &Watcher{
		tree: t,
	}
	if err := w.Refresh(mapping); err != nil {
		return nil, err
	}
	w.off = t.onUpdate.on(w.handleUpdate)
	return w, nil
}

func watchedPath(v interface{}) (Path, bool) {
	switch vv := v.(type) {
	case Path:
		return vv, vv.Check() == nil
	case []interface{}:
		return Path(vv), Path(vv).Check() == nil
	case *Cursor:
		return vv.path, true
	}
	return nil, false
}

// Refresh replaces the mapping.
func (w *Watcher) Refresh(mapping map[string]interface{}) error {
	if mapping == nil {
		return invalid("mapping", "no mapping")
	}
	for k, v := range mapping {
		if _, ok := watchedPath(v); !ok {
			return invalid("mapping", "%s: want a path or a cursor, not %T", k, v)
		}
	}
	w.mapping = mapping
	return nil
}

func (w *Watcher) handleUpdate(e *UpdateEvent) {
	if w.killed {
		return
	}
	if SolveUpdate(e.Paths, w.WatchedPaths()) {
		w.onUpdate.emit(e)
	}
}

// WatchedPaths returns the solved paths of the mapping.  Dynamic
// paths that can't be solved are skipped.  A path in a monkey is
// joined by the monkey's related paths.
func (w *Watcher) WatchedPaths() []Path {
	var acc []Path
	for _, v := range w.mapping {
		var p Path
		if c, is := v.(*Cursor); is {
			p = c.solved
		} else {
			p, _ = watchedPath(v)
			if p.IsDynamic() {
				p = GetIn(w.tree.data, p).Solved
			}
		}
		if p == nil {
			continue
		}
		acc = append(acc, p)
		if _, m := w.tree.monkeyPath(p); m != nil {
			acc = append(acc, m.RelatedPaths(true)...)
		}
	}
	return acc
}

// Cursors returns a cursor for each key.
func (w *Watcher) Cursors() (map[string]*Cursor, error) {
	acc := make(map[string]*Cursor, len(w.mapping))
	for k, v := range w.mapping {
		if c, is := v.(*Cursor); is {
			acc[k] = c
			continue
		}
		p, _ := watchedPath(v)
		c, err := w.tree.Select(p)
		if err != nil {
			return nil, err
		}
		acc[k] = c
	}
	return acc, nil
}

// Get projects the mapping onto the current data.
func (w *Watcher) Get() map[string]interface{} {
	proj := make(map[string]Path, len(w.mapping))
	for k, v := range w.mapping {
		proj[k], _ = watchedPath(v)
	}
	got, _ := w.tree.Project(proj)
	m, _ := got.(map[string]interface{})
	return m
}

func (w *Watcher) OnUpdate(fn func(*UpdateEvent)) func() {
	return w.onUpdate.on(fn)
}

func (w *Watcher) Release() {
	if w.killed {
		return
	}
	w.killed = true
	w.off()
	w.onUpdate.clear()
}
