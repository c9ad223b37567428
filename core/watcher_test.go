package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	var calls int
	tree := newTree(t, map[string]interface{}{
		"a":    1,
		"b":    1,
		"c":    map[string]interface{}{"k": "v"},
		"d":    doubler(Path{"a"}, &calls),
		"list": []interface{}{map[string]interface{}{"id": 1, "v": "x"}},
	}, syncOptions())

	c, err := tree.Select(Path{"c"})
	require.NoError(t, err)

	w, err := tree.Watch(map[string]interface{}{
		"double": Path{"d"},
		"c":      c,
		"item":   Path{"list", Pattern{"id": 1}},
	})
	require.NoError(t, err)

	var got []*UpdateEvent
	w.OnUpdate(func(e *UpdateEvent) {
		got = append(got, e)
	})

	assert.ElementsMatch(t, []Path{{"d"}, {"a"}, {"c"}, {"list", 0}}, w.WatchedPaths())

	require.NoError(t, tree.Set(Path{"b"}, 2))
	assert.Empty(t, got)

	require.NoError(t, tree.Set(Path{"a"}, 2))
	assert.Len(t, got, 1)

	require.NoError(t, tree.Set(Path{"c", "k"}, "w"))
	assert.Len(t, got, 2)

	require.NoError(t, tree.Set(Path{"list", 0, "v"}, "y"))
	assert.Len(t, got, 3)

	assert.Equal(t, map[string]interface{}{
		"double": 4,
		"c":      map[string]interface{}{"k": "w"},
		"item":   map[string]interface{}{"id": 1, "v": "y"},
	}, w.Get())

	cursors, err := w.Cursors()
	require.NoError(t, err)
	assert.Same(t, c, cursors["c"])
	assert.Len(t, cursors, 3)

	require.NoError(t, w.Refresh(map[string]interface{}{"b": Path{"b"}}))
	require.NoError(t, tree.Set(Path{"a"}, 3))
	assert.Len(t, got, 3)
	require.NoError(t, tree.Set(Path{"b"}, 3))
	assert.Len(t, got, 4)

	w.Release()
	require.NoError(t, tree.Set(Path{"b"}, 4))
	assert.Len(t, got, 4)
}

func TestWatcherBadMapping(t *testing.T) {
	tree := newTree(t, sample(), syncOptions())

	_, err := tree.Watch(map[string]interface{}{"x": 42})
	var bad *InvalidInputError
	assert.ErrorAs(t, err, &bad)

	_, err = tree.Watch(nil)
	assert.ErrorAs(t, err, &bad)
}
