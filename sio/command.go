package sio

import (
	"encoding/json"
	"fmt"

	"github.com/Comcast/arbor/core"
)

// Command is a write written as data:
//
//	{"op":"push","path":"/items","value":{"price":3}}
//
// The path is a string or a list of steps.  "commit" is also an op.
type Command struct {
	Op    string      `json:"op"`
	Path  interface{} `json:"path,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// ParseCommand parses a JSON command.
func ParseCommand(bs []byte) (*Command, error) {
	var c Command
	if err := json.Unmarshal(bs, &c); err != nil {
		return nil, err
	}
	if c.Op == "" {
		return nil, fmt.Errorf("no op in %s", bs)
	}
	return &c, nil
}

// Exec performs the command on the tree.  It must be called on the
// goroutine that owns the tree.
func (c *Command) Exec(tree *core.Tree) error {
	if c.Op == "commit" {
		tree.Commit()
		return nil
	}

	kind, err := core.ParseOpKind(c.Op)
	if err != nil {
		return err
	}
	switch kind {
	case core.OpApply, core.OpInstallDerived:
		return fmt.Errorf("op %s can't be written as data", c.Op)
	}

	var path core.Path
	if c.Path != nil {
		if path, err = core.PathValue(c.Path); err != nil {
			return err
		}
	}

	op := core.Operation{
		Kind: kind,
	}
	if !kind.Intransitive() {
		op.Value = c.Value
	}

	_, err = tree.Update(path, op)
	return err
}
