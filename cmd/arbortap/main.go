/* Copyright 2019 Comcast Cable Communications Management, LLC
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

// Package main is a tree process that reads commands from stdin and
// reports updates to stdout, a JSON file, WebSocket clients, and an
// MQTT broker.
//
//	arbortap -f cart.yaml -http :8080 -watch
//	arbortap -f cart.yaml -mqtt -- -h tcp://localhost:1883 -t arbor/cart
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/interpreters"
	"github.com/Comcast/arbor/sio"
	"github.com/Comcast/arbor/util"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

func main() {

	var (
		filename  = flag.String("f", "", "data filename (YAML or JSON)")
		name      = flag.String("name", "tree", "tree name for metrics")
		httpAddr  = flag.String("http", "", "HTTP address for /data, /ws, /monkeys, and /metrics")
		watch     = flag.Bool("watch", false, "reload the data file when it changes")
		settle    = flag.Duration("settle", 200*time.Millisecond, "wait this long after a file change before reloading")
		storeFile = flag.String("store", "", "optional file for the data after every update")
		useMQTT   = flag.Bool("mqtt", false, "publish digests to MQTT (remaining args are MQTT flags)")
		stdin     = flag.Bool("stdin", true, "read commands from stdin")
		haltOnEOF = flag.Bool("halt-on-eof", false, "stop on input EOF")
		printData = flag.Bool("print-data", false, "include data in stdout digests")
		tags      = flag.Bool("tags", true, "prefix output with tags")
		ts        = flag.Bool("ts", false, "prefix output with timestamps")
		echo      = flag.Bool("echo", false, "echo input")
		shExpand  = flag.Bool("sh", false, "expand <<COMMAND>> in input")
		noAsync   = flag.Bool("sync", false, "commit after every write")
		verbose   = flag.Bool("v", false, "verbose")
		help      = flag.Bool("help", false, "get usage")
	)

	flag.Parse()
	defer glog.Flush()

	if *help {
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n-mqtt:\n\n")
		_, fs := sio.NewMQTTTap(nil)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if *filename == "" {
		glog.Exitf("need -f")
	}

	util.Logging = *verbose

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := core.DefaultOptions()
	opts.Asynchronous = !*noAsync
	opts.Verbose = *verbose

	s, err := NewService(ctx, *name, *filename, interpreters.Standard(), opts)
	if err != nil {
		glog.Exitf("%v", err)
	}
	defer s.Release()

	std := sio.NewStdio(*shExpand)
	std.PrintData = *printData
	std.Tags = *tags
	std.Timestamps = *ts
	std.EchoInput = *echo

	taps := []sio.Tap{std}

	if *storeFile != "" {
		taps = append(taps, sio.NewJSONStore(*storeFile))
	}

	var hub *sio.WebSocketHub
	if *httpAddr != "" {
		hub = sio.NewWebSocketHub()
		taps = append(taps, hub)
	}

	if *useMQTT {
		t, _ := sio.NewMQTTTap(append([]string{}, flag.Args()...))
		if t == nil {
			glog.Exitf("bad MQTT flags %q", flag.Args())
		}
		taps = append(taps, t)
	}

	if err := s.Start(ctx, taps...); err != nil {
		glog.Exitf("%v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Loop.Run(ctx)
	})

	if *stdin {
		g.Go(func() error {
			err := std.Read(ctx, s.Loop, s.Tree)
			if err == nil && *haltOnEOF {
				glog.Infof("input EOF")
				cancel()
			}
			return err
		})
	}

	if hub != nil {
		g.Go(func() error {
			return Serve(ctx, *httpAddr, s.Handler(hub))
		})
	}

	if *watch {
		g.Go(func() error {
			return s.Watch(ctx, *settle)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		glog.Errorf("%v", err)
	}

	// The loop is done, so the tree is ours.
	s.Tree.Commit()
	s.Stop(context.Background())
}
