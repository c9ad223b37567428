package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goInterpreter runs sources that are Go functions.
type goInterpreter struct{}

func (goInterpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	f, is := code.(func(env map[string]interface{}) (interface{}, error))
	if !is {
		return nil, errors.New("not a func")
	}
	return f, nil
}

func (goInterpreter) Exec(ctx context.Context, env map[string]interface{}, code interface{}, compiled interface{}) (interface{}, error) {
	return compiled.(func(env map[string]interface{}) (interface{}, error))(env)
}

var testInterpreters = InterpretersMap{
	"go": goInterpreter{},
}

func TestDecodeDefinitions(t *testing.T) {
	count := func(env map[string]interface{}) (interface{}, error) {
		deps := env["deps"].(map[string]interface{})
		return len(deps["xs"].([]interface{})), nil
	}
	first := func(env map[string]interface{}) (interface{}, error) {
		args := env["args"].([]interface{})
		xs := args[0].([]interface{})
		if len(xs) == 0 {
			return nil, errors.New("empty")
		}
		return xs[0], nil
	}

	data := map[string]interface{}{
		"xs": []interface{}{"a", "b"},
		"stats": map[string]interface{}{
			"count": map[string]interface{}{
				MonkeyKey: map[string]interface{}{
					"doc":     "How many.",
					"cursors": map[string]interface{}{"xs": "/xs"},
					"get": map[string]interface{}{
						"interpreter": "go",
						"source":      count,
					},
				},
			},
			"first": map[string]interface{}{
				MonkeyKey: map[string]interface{}{
					"paths": []interface{}{[]interface{}{"xs"}},
					"get": map[string]interface{}{
						"interpreter": "go",
						"source":      first,
					},
					"options": map[string]interface{}{"mutable": true},
				},
			},
		},
	}

	decoded, err := DecodeDefinitions(context.Background(), data, testInterpreters)
	require.NoError(t, err)

	def, is := GetIn(decoded, Path{"stats", "count"}).Value.(*MonkeyDefinition)
	require.True(t, is)
	assert.Equal(t, "How many.", def.Doc)
	assert.True(t, def.IsObject())
	assert.Equal(t, []Path{{"xs"}}, def.DepPaths())

	tree := newTree(t, decoded, syncOptions())
	assert.Equal(t, 2, tree.Get(Path{"stats", "count"}))
	assert.Equal(t, "a", tree.Get(Path{"stats", "first"}))
	assert.True(t, tree.GetMonkey(Path{"stats", "first"}).Definition().Options.Mutable)

	require.NoError(t, tree.Set(Path{"xs"}, []interface{}{}))
	assert.Equal(t, 0, tree.Get(Path{"stats", "count"}))
	assert.Nil(t, tree.Get(Path{"stats", "first"}), "getter errors give nil")
}

func TestDecodeDefinitionsErrors(t *testing.T) {
	bad := []interface{}{
		map[string]interface{}{MonkeyKey: "nope"},
		map[string]interface{}{MonkeyKey: map[string]interface{}{"cursors": map[string]interface{}{}}},
		map[string]interface{}{MonkeyKey: map[string]interface{}{
			"get": map[string]interface{}{"interpreter": "missing", "source": "x"},
		}},
	}
	for i, x := range bad {
		_, err := DecodeDefinitions(context.Background(), map[string]interface{}{"m": x}, testInterpreters)
		assert.Error(t, err, "case %d", i)
	}
}

func TestScriptValidator(t *testing.T) {
	src := &Source{
		Interpreter: "go",
		Source: func(env map[string]interface{}) (interface{}, error) {
			if n, _ := GetIn(env["current"], Path{"n"}).Value.(int); 3 < n {
				return "n too big", nil
			}
			return nil, nil
		},
	}
	v, err := ScriptValidator(context.Background(), src, testInterpreters)
	require.NoError(t, err)

	opts := syncOptions()
	opts.Validate = v
	tree := newTree(t, map[string]interface{}{"n": 1}, opts)

	var invalid error
	tree.OnInvalid(func(e *InvalidEvent) {
		invalid = e.Error
	})

	require.NoError(t, tree.Set(Path{"n"}, 2))
	assert.NoError(t, invalid)

	require.NoError(t, tree.Set(Path{"n"}, 4))
	require.Error(t, invalid)
	assert.Equal(t, "n too big", invalid.Error())
	assert.Equal(t, 2, tree.Get(Path{"n"}))
}

func TestPathValue(t *testing.T) {
	p, err := PathValue([]interface{}{"a", 1.0})
	require.NoError(t, err)
	assert.Equal(t, Path{"a", 1}, p)

	p, err = PathValue("/a/b")
	require.NoError(t, err)
	assert.Equal(t, Path{"a", "b"}, p)

	_, err = PathValue(3)
	assert.Error(t, err)
}
