// Package metrics exports a tree's running counts to Prometheus.
package metrics

import (
	"sync"

	"github.com/Comcast/arbor/core"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "arbor"
	Subsystem = "tree"
)

// Collector holds the metrics for one tree.
//
// A Tree isn't safe for concurrent use, so the counts are copied on
// every commit (and every validation failure) by handlers that run on
// the tree's goroutine.  Scrapes read the copy.
type Collector struct {
	sync.Mutex
	stats core.Stats

	CommitSize prometheus.Histogram

	collectors []prometheus.Collector
	off        []func()
}

// Register creates the collectors for the tree and registers them.
// The name becomes the "tree" label.
//
// Call Register on the goroutine that owns the tree.
func Register(tree *core.Tree, reg prometheus.Registerer, name string) (*Collector, error) {
	labels := prometheus.Labels{"tree": name}
	c := &Collector{
		stats: tree.Stats(),
	}

	counter := func(metric, help string, f func(core.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return float64(f(c.Stats()))
		})
	}
	gauge := func(metric, help string, f func(core.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   Subsystem,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 {
			return float64(f(c.Stats()))
		})
	}

	c.CommitSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   Namespace,
		Subsystem:   Subsystem,
		Name:        "commit_writes",
		Help:        "Writes per committed transaction",
		Buckets:     []float64{1, 2, 4, 8, 16, 32, 64, 128},
		ConstLabels: labels,
	})

	c.collectors = []prometheus.Collector{
		counter("writes_total", "Total writes", func(s core.Stats) uint64 { return s.Writes }),
		counter("commits_total", "Total commits", func(s core.Stats) uint64 { return s.Commits }),
		counter("rollbacks_total", "Total rolled-back transactions", func(s core.Stats) uint64 { return s.Rollbacks }),
		counter("invalid_total", "Total validation failures", func(s core.Stats) uint64 { return s.Invalid }),
		counter("recomputes_total", "Total derived value recomputations", func(s core.Stats) uint64 { return s.Recomputes }),
		gauge("cursors", "Live cursors", func(s core.Stats) int { return s.Cursors }),
		gauge("monkeys", "Mounted derived values", func(s core.Stats) int { return s.Monkeys }),
		c.CommitSize,
	}

	for i, x := range c.collectors {
		if err := reg.Register(x); err != nil {
			for _, y := range c.collectors[:i] {
				reg.Unregister(y)
			}
			return nil, err
		}
	}

	c.off = []func(){
		tree.OnUpdate(func(e *core.UpdateEvent) {
			c.CommitSize.Observe(float64(len(e.Transaction)))
			c.update(tree.Stats())
		}),
		tree.OnInvalid(func(e *core.InvalidEvent) {
			c.update(tree.Stats())
		}),
		tree.OnRelease(func(t *core.Tree) {
			c.update(t.Stats())
		}),
	}

	return c, nil
}

func (c *Collector) update(s core.Stats) {
	c.Lock()
	c.stats = s
	c.Unlock()
}

// Stats returns the counts as of the last event.
func (c *Collector) Stats() core.Stats {
	c.Lock()
	defer c.Unlock()
	return c.stats
}

// Unregister removes the collectors and stops listening to the tree.
func (c *Collector) Unregister(reg prometheus.Registerer) {
	for _, off := range c.off {
		off()
	}
	for _, x := range c.collectors {
		reg.Unregister(x)
	}
}
