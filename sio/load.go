package sio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/tools"

	"github.com/jsccast/yaml"
)

// Parse reads YAML (or JSON, which is YAML) and decodes any "$monkey"
// declarations.
//
// This package uses github.com/jsccast/yaml, a fork that gives
// map[string]interface{} rather than map[interface{}]interface{}.
func Parse(ctx context.Context, bs []byte, interpreters core.InterpretersMap) (interface{}, error) {
	var x interface{}
	if err := yaml.Unmarshal(bs, &x); err != nil {
		return nil, err
	}
	return core.DecodeDefinitions(ctx, x, interpreters)
}

// LoadFile is Parse for a file.
//
// Before parsing, each '%inline("NAME")' is replaced with the content
// of the file NAME (relative to the data file) as a quoted string, so
//
//	get: %inline("total.js")
//
// keeps a getter's source in its own file.
func LoadFile(ctx context.Context, filename string, interpreters core.InterpretersMap) (interface{}, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	if bs, err = tools.InlineFiles(bs, filepath.Dir(filename)); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	x, err := Parse(ctx, bs, interpreters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return x, nil
}
