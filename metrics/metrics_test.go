package metrics

import (
	"testing"

	"github.com/Comcast/arbor/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T) *core.Tree {
	opts := core.DefaultOptions()
	opts.Asynchronous = false
	opts.Validate = func(previous, current interface{}, affected []core.Path) error {
		if n, _ := core.GetIn(current, core.Path{"n"}).Value.(int); 10 < n {
			return assert.AnError
		}
		return nil
	}
	tree, err := core.New(map[string]interface{}{"n": 0}, opts)
	require.NoError(t, err)
	t.Cleanup(tree.Release)
	return tree
}

func TestRegister(t *testing.T) {
	tree := newTree(t)
	reg := prometheus.NewPedanticRegistry()

	c, err := Register(tree, reg, "test")
	require.NoError(t, err)

	require.NoError(t, tree.Set(core.Path{"n"}, 1))
	require.NoError(t, tree.Set(core.Path{"n"}, 2))
	require.NoError(t, tree.Set(core.Path{"n"}, 11))

	s := c.Stats()
	assert.Equal(t, uint64(3), s.Writes)
	assert.Equal(t, uint64(2), s.Commits)
	assert.Equal(t, uint64(1), s.Invalid)
	assert.Equal(t, uint64(1), s.Rollbacks)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		switch {
		case m.Counter != nil:
			values[mf.GetName()] = m.Counter.GetValue()
		case m.Histogram != nil:
			values[mf.GetName()] = float64(m.Histogram.GetSampleCount())
		}
		assert.Equal(t, "test", m.GetLabel()[0].GetValue())
	}
	assert.Equal(t, float64(3), values["arbor_tree_writes_total"])
	assert.Equal(t, float64(2), values["arbor_tree_commits_total"])
	assert.Equal(t, float64(1), values["arbor_tree_rollbacks_total"])
	assert.Equal(t, float64(2), values["arbor_tree_commit_writes"])

	c.Unregister(reg)
	n, err = testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegisterTwice(t *testing.T) {
	tree := newTree(t)
	reg := prometheus.NewRegistry()

	_, err := Register(tree, reg, "a")
	require.NoError(t, err)
	_, err = Register(tree, reg, "a")
	assert.Error(t, err)

	_, err = Register(tree, reg, "b")
	assert.NoError(t, err)
}
