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

// Package main is a command-line shell for poking at a tree.
//
//	arborsh -f cart.yaml
//	get /total
//	push /items {"price":3}
//	print -yaml
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/interpreters"
	"github.com/Comcast/arbor/sio"
	"github.com/Comcast/arbor/util"

	"github.com/golang/glog"
)

type Opts struct {
	filename string
	echo     bool
	verbose  bool
}

func main() {
	opts := &Opts{}
	flag.StringVar(&opts.filename, "f", "", "initial data (YAML or JSON)")
	flag.BoolVar(&opts.echo, "e", false, "echo input")
	flag.BoolVar(&opts.verbose, "v", false, "log tree activity")
	flag.Parse()
	defer glog.Flush()

	if err := opts.run(); err != nil {
		glog.Exitf("arborsh: %v", err)
	}
}

func (opts *Opts) run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	util.Logging = opts.verbose

	interps := interpreters.Standard()

	var data interface{} = map[string]interface{}{}
	if opts.filename != "" {
		x, err := sio.LoadFile(ctx, opts.filename, interps)
		if err != nil {
			return err
		}
		data = x
	}

	topts := core.DefaultOptions()
	topts.Asynchronous = false
	topts.Verbose = opts.verbose
	tree, err := core.New(data, topts)
	if err != nil {
		return err
	}
	defer tree.Release()

	glog.Infof("tree has %d monkeys", len(tree.Monkeys()))

	s := NewShell(tree, interps, os.Stdout)
	defer s.Release()

	return s.Run(ctx, os.Stdin, opts.echo)
}
