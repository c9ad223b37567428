// Package arbor provides an in-memory tree of JSON-like data with
// cursors, transactions, validation, and derived values ("monkeys").
//
// The core code is in package 'core'.  Package 'interpreters' runs
// getter and validator sources, 'sio' connects a tree to the outside
// world, 'metrics' exports a tree's counters to Prometheus, and
// 'tools' draws and checks the graph of derived values.  Some
// command-line tools are in `cmd`.
package arbor
