/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/Comcast/arbor/util"
)

var (
	// InterpreterNotFound occurs when a Source names an
	// interpreter that isn't in the given map of interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters will be used by Source.Compile if given
	// nil interpreters.
	DefaultInterpreters = make(InterpretersMap)

	// DefaultInterpreter is the interpreter for a Source that
	// doesn't name one.
	DefaultInterpreter = "goja"

	// MonkeyKey marks a data node that declares a monkey.
	MonkeyKey = "$monkey"
)

// Interpreter can optionally compile and execute code for getters and
// validators.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code interface{}) (interface{}, error)

	// Exec executes the code with the given environment, which
	// the code sees as "_".  The result of previous Compile()
	// might be provided.
	Exec(ctx context.Context, env map[string]interface{}, code interface{}, compiled interface{}) (interface{}, error)
}

type InterpretersMap map[string]Interpreter

func NewInterpretersMap() InterpretersMap {
	return make(InterpretersMap)
}

// Source is code for an Interpreter.
type Source struct {
	Interpreter string      `json:"interpreter,omitempty" yaml:",omitempty"`
	Source      interface{} `json:"source"`
}

// Program is a compiled Source.
type Program func(ctx context.Context, env map[string]interface{}) (interface{}, error)

// Compile attempts to compile the Source using the given
// interpreters, which defaults to DefaultInterpreters.
func (s *Source) Compile(ctx context.Context, interpreters InterpretersMap) (Program, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}
	name := s.Interpreter
	if name == "" {
		name = DefaultInterpreter
	}
	interpreter, have := interpreters[name]
	if !have {
		return nil, InterpreterNotFound
	}

	x, err := interpreter.Compile(ctx, s.Source)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, env map[string]interface{}) (interface{}, error) {
		return interpreter.Exec(ctx, env, s.Source, x)
	}, nil
}

// AsSource interprets a Source written as data: either a map with
// "interpreter" and "source" or just the source itself.
func AsSource(x interface{}) (*Source, error) {
	switch vv := x.(type) {
	case *Source:
		return vv, nil
	case string:
		return &Source{Source: vv}, nil
	case map[string]interface{}:
		src, have := vv["source"]
		if !have {
			return nil, invalid("source", "no source")
		}
		s := &Source{Source: src}
		if name, have := vv["interpreter"]; have {
			str, is := name.(string)
			if !is {
				return nil, invalid("source", "interpreter should be a string, not %T", name)
			}
			s.Interpreter = str
		}
		return s, nil
	}
	return nil, invalid("source", "bad source %T", x)
}

// PathValue interprets a path written as data: "/a/b/0" or a list of
// steps.  Integral numbers become indexes.
func PathValue(x interface{}) (Path, error) {
	switch vv := x.(type) {
	case Path:
		return vv, vv.Check()
	case string:
		return ParsePath(vv), nil
	case []interface{}:
		p := make(Path, len(vv))
		for i, s := range vv {
			if f, is := s.(float64); is {
				if n, ok := stepIndex(f); ok {
					s = n
				}
			}
			p[i] = s
		}
		return p, p.Check()
	}
	return nil, invalid("path", "bad path %T", x)
}

// DecodeDefinitions replaces every {"$monkey": {...}} node in the data
// with a *MonkeyDefinition.  The data is modified in place.
//
// A declaration looks like
//
//	$monkey:
//	  doc: The total.
//	  cursors:
//	    xs: /items
//	  get:
//	    interpreter: goja
//	    source: return _.deps.xs.length;
//	  options:
//	    mutable: false
//
// or uses "paths" (a list) instead of "cursors".  An object-form
// getter sees its projection at _.deps.  A list-form getter sees its
// arguments at _.args.
//
// Getters run with the given ctx.  A getter that fails logs the
// error and returns nil.
func DecodeDefinitions(ctx context.Context, data interface{}, interpreters InterpretersMap) (interface{}, error) {
	switch vv := data.(type) {
	case map[string]interface{}:
		if decl, have := vv[MonkeyKey]; have && len(vv) == 1 {
			return decodeDefinition(ctx, decl, interpreters)
		}
		for k, v := range vv {
			d, err := DecodeDefinitions(ctx, v, interpreters)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			vv[k] = d
		}
	}
	return data, nil
}

func decodeDefinition(ctx context.Context, decl interface{}, interpreters InterpretersMap) (*MonkeyDefinition, error) {
	m, is := decl.(map[string]interface{})
	if !is {
		return nil, invalid(MonkeyKey, "declaration should be an object, not %T", decl)
	}

	get, have := m["get"]
	if !have {
		return nil, invalid(MonkeyKey, "no getter")
	}
	src, err := AsSource(get)
	if err != nil {
		return nil, err
	}
	prog, err := src.Compile(ctx, interpreters)
	if err != nil {
		return nil, err
	}

	run := func(env map[string]interface{}) interface{} {
		x, err := prog(ctx, env)
		if err != nil {
			util.Logf("monkey getter error %s", err)
			return nil
		}
		return x
	}

	var d *MonkeyDefinition
	switch {
	case m["cursors"] != nil:
		cs, is := m["cursors"].(map[string]interface{})
		if !is {
			return nil, invalid(MonkeyKey, "cursors should be an object, not %T", m["cursors"])
		}
		proj := make(map[string]Path, len(cs))
		for k, x := range cs {
			if proj[k], err = PathValue(x); err != nil {
				return nil, err
			}
		}
		d, err = MonkeyFrom(proj, func(deps map[string]interface{}) interface{} {
			return run(map[string]interface{}{
				"deps": deps,
			})
		})
	case m["paths"] != nil:
		ps, is := m["paths"].([]interface{})
		if !is {
			return nil, invalid(MonkeyKey, "paths should be a list, not %T", m["paths"])
		}
		paths := make([]Path, len(ps))
		for i, x := range ps {
			if paths[i], err = PathValue(x); err != nil {
				return nil, err
			}
		}
		d, err = MonkeyOf(paths, func(args ...interface{}) interface{} {
			return run(map[string]interface{}{
				"args": args,
			})
		})
	default:
		return nil, invalid(MonkeyKey, "need cursors or paths")
	}
	if err != nil {
		return nil, err
	}

	d.Source = src
	if doc, is := m["doc"].(string); is {
		d.Doc = doc
	}
	if opts, is := m["options"].(map[string]interface{}); is {
		d.Options.Mutable, _ = opts["mutable"].(bool)
	}

	return d, nil
}

// ScriptValidator makes a Validator from a Source.  The code sees
// _.previous, _.current, and _.paths.  A result that's a non-empty
// string or false is a validation error.
func ScriptValidator(ctx context.Context, src *Source, interpreters InterpretersMap) (Validator, error) {
	prog, err := src.Compile(ctx, interpreters)
	if err != nil {
		return nil, err
	}
	return func(previous, current interface{}, affected []Path) error {
		paths := make([]interface{}, len(affected))
		for i, p := range affected {
			paths[i] = []interface{}(p)
		}
		x, err := prog(ctx, map[string]interface{}{
			"previous": Materialize(previous),
			"current":  Materialize(current),
			"paths":    paths,
		})
		if err != nil {
			return err
		}
		switch vv := x.(type) {
		case string:
			if vv != "" {
				return errors.New(vv)
			}
		case bool:
			if !vv {
				return errors.New("invalid")
			}
		}
		return nil
	}, nil
}
