package noop

import (
	"context"
	"log"

	"github.com/Comcast/arbor/core"
)

// Interpreter is a core.Interpreter whose programs return their
// environment's "deps" (or "args") without modification.
type Interpreter struct {
	// Silent, if true, will suppress warning log messages.
	Silent bool
}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (i *Interpreter) Compile(ctx context.Context, code interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for compilation")
	}
	return nil, nil
}

func (i *Interpreter) Exec(ctx context.Context, env map[string]interface{}, code interface{}, compiled interface{}) (interface{}, error) {
	if !i.Silent {
		log.Printf("warning: Using noop Interpreter for execution")
	}
	if x, have := env["deps"]; have {
		return x, nil
	}
	return env["args"], nil
}

var _ core.Interpreter = &Interpreter{}
