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

package sio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/arbor/core"
)

// Stdio is a Tap that writes digests as JSON lines.  It can also read
// Commands, one JSON object per line.
type Stdio struct {
	// In is where Commands come from.
	In io.Reader

	// Out gets digests.
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "update", "invalid", "error").
	Tags bool

	// PadTags adds some padding to tags.
	PadTags bool

	// PrintData includes the whole data in each digest.
	PrintData bool

	sync.Mutex
}

// NewStdio creates a new Stdio using os.Stdin and os.Stdout.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop does nothing.
func (s *Stdio) Stop(ctx context.Context) error {
	return nil
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	s.Lock()
	defer s.Unlock()

	if s.PadTags {
		tag = fmt.Sprintf("% 10s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}

	fmt.Fprintf(s.Out, format, args...)
}

// Publish writes the digest as one line.
func (s *Stdio) Publish(ctx context.Context, d *Digest) error {
	if !s.PrintData {
		d = d.Copy()
		d.Data = nil
	}
	s.printf(d.Kind, "%s\n", JS(d))
	return nil
}

// Read executes Commands from In until EOF, a "quit" line, or the
// context is done.
//
// Each command runs via the loop, which should be the tree's
// scheduler.  Bad input is reported on Out with an "error" tag and
// doesn't stop reading.
func (s *Stdio) Read(ctx context.Context, loop *core.Loop, tree *core.Tree) error {
	in := bufio.NewReader(s.In)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadString('\n')
		if err == io.EOF && line == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "quit" {
			return nil
		}
		if s.EchoInput {
			s.printf("input", "%s\n", line)
		}
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		if s.ShellExpand {
			if line, err = ShellExpand(line); err != nil {
				s.printf("error", "%s\n", JS(err.Error()))
				continue
			}
		}

		c, err := ParseCommand([]byte(line))
		if err != nil {
			s.printf("error", "%s\n", JS(err.Error()))
			continue
		}

		var failed error
		if err := loop.Do(ctx, func() {
			failed = c.Exec(tree)
		}); err != nil {
			return err
		}
		if failed != nil {
			s.printf("error", "%s\n", JS(failed.Error()))
		}
	}
}
