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

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/metrics"
	"github.com/Comcast/arbor/sio"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
)

// Service owns a tree, the loop that serializes access to it, and
// the taps that hear about its updates.
type Service struct {
	Name         string
	Filename     string
	Interpreters core.InterpretersMap

	Loop     *core.Loop
	Tree     *core.Tree
	Taps     []sio.Tap
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	detach func()
}

// NewService loads the file and makes the tree.  The tree's commits
// run on the service's Loop, so nothing happens until Loop.Run.
func NewService(ctx context.Context, name, filename string, interps core.InterpretersMap, opts *core.Options) (*Service, error) {
	x, err := sio.LoadFile(ctx, filename, interps)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = core.DefaultOptions()
	}
	loop := core.NewLoop()
	opts.Scheduler = loop

	tree, err := core.New(x, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	reg := prometheus.NewRegistry()
	c, err := metrics.Register(tree, reg, name)
	if err != nil {
		tree.Release()
		return nil, err
	}

	return &Service{
		Name:         name,
		Filename:     filename,
		Interpreters: interps,
		Loop:         loop,
		Tree:         tree,
		Registry:     reg,
		Metrics:      c,
	}, nil
}

// Start starts the taps and attaches them to the tree.  A tap that
// fails to start stops the ones that did.
func (s *Service) Start(ctx context.Context, taps ...sio.Tap) error {
	for i, tap := range taps {
		if err := tap.Start(ctx); err != nil {
			for _, started := range taps[:i] {
				if err := started.Stop(ctx); err != nil {
					glog.Warningf("stopping %T: %v", started, err)
				}
			}
			return fmt.Errorf("starting %T: %w", tap, err)
		}
	}
	s.Taps = taps
	s.detach = sio.Attach(ctx, s.Tree, taps...)
	return nil
}

// Stop detaches and stops the taps.
func (s *Service) Stop(ctx context.Context) {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	for _, tap := range s.Taps {
		if err := tap.Stop(ctx); err != nil {
			glog.Warningf("stopping %T: %v", tap, err)
		}
	}
}

// Release lets go of the tree.  Call it after the loop is done.
func (s *Service) Release() {
	s.Metrics.Unregister(s.Registry)
	s.Tree.Release()
}

// Reload replaces the tree's data with the file's current contents.
// A file that doesn't parse leaves the tree alone.
func (s *Service) Reload(ctx context.Context) error {
	x, err := sio.LoadFile(ctx, s.Filename, s.Interpreters)
	if err != nil {
		return err
	}
	var failed error
	if err := s.Loop.Do(ctx, func() {
		failed = s.Tree.Set(nil, x)
		var cycle *core.CycleError
		if errors.As(failed, &cycle) {
			// The data is in; only the monkeys are stuck.
			glog.Warningf("reloading %s: %v", s.Filename, failed)
			failed = nil
		}
		if failed == nil {
			s.Tree.Commit()
		}
	}); err != nil {
		return err
	}
	if failed != nil {
		return failed
	}
	glog.Infof("reloaded %s", s.Filename)
	return nil
}

// Snapshot returns the serialized data.  It's safe to call from any
// goroutine while the loop is running.
func (s *Service) Snapshot(ctx context.Context) (interface{}, error) {
	var x interface{}
	err := s.Loop.Do(ctx, func() {
		x = s.Tree.Serialize(nil)
	})
	return x, err
}
