package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doubler derives twice the int at the path and counts its calls.
func doubler(p Path, calls *int) *MonkeyDefinition {
	return MustMonkeyOf([]Path{p}, func(args ...interface{}) interface{} {
		*calls++
		n, _ := args[0].(int)
		return n * 2
	})
}

func TestMonkeyLazy(t *testing.T) {
	calls := 0
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"d": doubler(Path{"a"}, &calls),
	}, syncOptions())

	assert.Equal(t, 0, calls, "not computed until read")
	assert.Equal(t, 2, tree.Get(Path{"d"}))
	assert.Equal(t, 2, tree.Get(Path{"d"}))
	assert.Equal(t, 1, calls)

	require.NoError(t, tree.Set(Path{"a"}, 5))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 10, tree.Get(Path{"d"}))
	assert.Equal(t, 2, calls)
}

func TestMonkeyEager(t *testing.T) {
	calls := 0
	opts := syncOptions()
	opts.LazyMonkeys = false
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"d": doubler(Path{"a"}, &calls),
	}, opts)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, GetIn(tree.Data(), Path{"d"}).Value)

	require.NoError(t, tree.Set(Path{"a"}, 3))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 6, tree.Get(Path{"d"}))
}

func TestMonkeyIgnoresUnrelatedWrites(t *testing.T) {
	calls := 0
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"b": 1,
		"d": doubler(Path{"a"}, &calls),
	}, syncOptions())

	recomputes := tree.Stats().Recomputes
	require.NoError(t, tree.Set(Path{"b"}, 2))
	assert.Equal(t, recomputes, tree.Stats().Recomputes)

	require.NoError(t, tree.Set(Path{"a"}, 2))
	assert.Equal(t, recomputes+1, tree.Stats().Recomputes)
}

func TestMonkeyChain(t *testing.T) {
	for _, lazy := range []bool{true, false} {
		opts := syncOptions()
		opts.LazyMonkeys = lazy

		var calls int
		tree := newTree(t, map[string]interface{}{
			"a": 1,
			"b": doubler(Path{"a"}, &calls),
			"c": doubler(Path{"b"}, &calls),
		}, opts)

		assert.Equal(t, 4, tree.Get(Path{"c"}))

		require.NoError(t, tree.Set(Path{"a"}, 3))
		assert.Equal(t, 6, tree.Get(Path{"b"}))
		assert.Equal(t, 12, tree.Get(Path{"c"}), "lazy=%v", lazy)

		m := tree.GetMonkey(Path{"c"})
		require.NotNil(t, m)
		assert.Equal(t, []Path{{"b"}}, m.RelatedPaths(false))
		assert.Equal(t, []Path{{"a"}}, m.RelatedPaths(true))
	}
}

func TestMonkeyObjectForm(t *testing.T) {
	full := MustMonkeyFrom(map[string]Path{
		"first": {".", "first"},
		"last":  {".", "last"},
	}, func(deps map[string]interface{}) interface{} {
		return deps["first"].(string) + " " + deps["last"].(string)
	})

	tree := newTree(t, map[string]interface{}{
		"user": map[string]interface{}{
			"first": "Ada",
			"last":  "Lovelace",
			"full":  full,
		},
	}, syncOptions())

	assert.Equal(t, "Ada Lovelace", tree.Get(Path{"user", "full"}))

	m := tree.GetMonkey(Path{"user", "full"})
	require.NotNil(t, m)
	assert.Equal(t, []Path{{"user", "first"}, {"user", "last"}}, m.DepPaths())

	require.NoError(t, tree.Set(Path{"user", "last"}, "King"))
	assert.Equal(t, "Ada King", tree.Get(Path{"user", "full"}))
}

func TestMonkeyAffectedPaths(t *testing.T) {
	var calls int
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"d": doubler(Path{"a"}, &calls),
	}, syncOptions())
	got := updates(tree)

	require.NoError(t, tree.Set(Path{"a"}, 2))
	require.Len(t, *got, 1)
	assert.Equal(t, []Path{{"a"}, {"d"}}, (*got)[0].Paths)
}

func TestMonkeyReadOnly(t *testing.T) {
	pair := MustMonkeyOf([]Path{{"a"}}, func(args ...interface{}) interface{} {
		return map[string]interface{}{"x": args[0]}
	})
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"d": pair,
	}, syncOptions())

	err := tree.Set(Path{"d", "x"}, 2)
	var ro *ReadOnlyError
	require.ErrorAs(t, err, &ro)
	assert.Equal(t, Path{"d"}, ro.MonkeyPath)

	assert.Equal(t, 1, tree.Stats().Monkeys)
	require.NoError(t, tree.Set(Path{"d"}, 5), "replacing the monkey itself")
	assert.Nil(t, tree.GetMonkey(Path{"d"}))
	assert.Equal(t, 0, tree.Stats().Monkeys)
	assert.Equal(t, 5, tree.Get(Path{"d"}))
}

func TestMonkeyCycle(t *testing.T) {
	var calls int
	_, err := New(map[string]interface{}{
		"a": doubler(Path{"b"}, &calls),
		"b": doubler(Path{"a"}, &calls),
	}, syncOptions())

	var cycle *CycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestMonkeyCycleAfterWrite(t *testing.T) {
	for _, async := range []bool{false, true} {
		opts := DefaultOptions()
		opts.Asynchronous = async

		var calls int
		tree := newTree(t, map[string]interface{}{
			"a": doubler(Path{"b"}, &calls),
			"b": 1,
			"z": 0,
		}, opts)
		c, err := tree.Select(Path{"a"})
		require.NoError(t, err)
		c.OnUpdate(func(*CursorUpdate) {})

		err = tree.Set(Path{"b"}, doubler(Path{"a"}, &calls))
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle, "async=%v", async)
		tree.Commit()

		for i := 1; i <= 3; i++ {
			assert.NoError(t, tree.Set(Path{"z"}, i), "async=%v", async)
			tree.Commit()
		}
		assert.Equal(t, 3, tree.Get(Path{"z"}))
	}
}

func TestMonkeyChainRecomputesOnce(t *testing.T) {
	for _, lazy := range []bool{true, false} {
		opts := syncOptions()
		opts.LazyMonkeys = lazy

		var bCalls, cCalls int
		tree := newTree(t, map[string]interface{}{
			"a": 1,
			"b": doubler(Path{"a"}, &bCalls),
			"c": doubler(Path{"b"}, &cCalls),
		}, opts)
		assert.Equal(t, 4, tree.Get(Path{"c"}))

		recomputes := tree.Stats().Recomputes
		require.NoError(t, tree.Set(Path{"a"}, 3))
		assert.Equal(t, recomputes+2, tree.Stats().Recomputes, "lazy=%v", lazy)
		assert.Equal(t, 12, tree.Get(Path{"c"}))

		b, c := bCalls, cCalls
		require.NoError(t, tree.Set(Path{"a"}, 4))
		assert.Equal(t, 16, tree.Get(Path{"c"}))
		assert.Equal(t, b+1, bCalls, "lazy=%v", lazy)
		assert.Equal(t, c+1, cCalls, "lazy=%v", lazy)
	}
}

func TestMonkeyMountedByWrite(t *testing.T) {
	var calls int
	tree := newTree(t, map[string]interface{}{
		"a": 2,
	}, syncOptions())

	require.NoError(t, tree.Set(Path{"o"}, map[string]interface{}{
		"d": doubler(Path{"a"}, &calls),
	}))
	assert.NotNil(t, tree.GetMonkey(Path{"o", "d"}))
	assert.Equal(t, 4, tree.Get(Path{"o", "d"}))

	require.NoError(t, tree.Unset(Path{"o"}))
	assert.Empty(t, tree.Monkeys())
}

func TestMonkeyMerge(t *testing.T) {
	var calls int
	tree := newTree(t, map[string]interface{}{
		"o": map[string]interface{}{
			"a": 1,
			"d": doubler(Path{".", "a"}, &calls),
		},
	}, syncOptions())

	require.NoError(t, tree.Merge(Path{"o"}, map[string]interface{}{"a": 5}))
	assert.NotNil(t, tree.GetMonkey(Path{"o", "d"}))
	assert.Equal(t, 10, tree.Get(Path{"o", "d"}))
	assert.Equal(t, 1, tree.Stats().Monkeys)
}

func TestMonkeyRollback(t *testing.T) {
	var calls int
	opts := syncOptions()
	opts.Validate = func(previous, current interface{}, affected []Path) error {
		if n, _ := GetIn(current, Path{"d"}).Value.(string); n == "bad" {
			return errTooBig
		}
		return nil
	}
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"d": doubler(Path{"a"}, &calls),
	}, opts)

	require.NoError(t, tree.Set(Path{"d"}, "bad"))
	require.NotNil(t, tree.GetMonkey(Path{"d"}), "remounted")
	assert.Equal(t, 2, tree.Get(Path{"d"}))

	require.NoError(t, tree.Set(Path{"a"}, 4))
	assert.Equal(t, 8, tree.Get(Path{"d"}))
}

func TestMonkeySerialize(t *testing.T) {
	var calls int
	tree := newTree(t, map[string]interface{}{
		"a": 1,
		"o": map[string]interface{}{
			"d": doubler(Path{"a"}, &calls),
			"k": "v",
		},
	}, syncOptions())

	assert.Equal(t, map[string]interface{}{
		"a": 1,
		"o": map[string]interface{}{"k": "v"},
	}, tree.Serialize(Path{}))
	assert.Equal(t, 0, calls, "serializing skips derived values")
}

func TestMonkeyDefinitionErrors(t *testing.T) {
	_, err := MonkeyFrom(nil, func(map[string]interface{}) interface{} { return nil })
	var bad *InvalidInputError
	assert.ErrorAs(t, err, &bad)

	_, err = MonkeyOf([]Path{{"a", 1.5}}, func(...interface{}) interface{} { return nil })
	assert.ErrorAs(t, err, &bad)

	_, err = MonkeyOf(nil, nil)
	assert.ErrorAs(t, err, &bad)
}
