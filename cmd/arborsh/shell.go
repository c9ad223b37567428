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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/sio"
	"github.com/Comcast/arbor/tools"

	"github.com/golang/glog"
	"gopkg.in/yaml.v2"
)

// ErrQuit is returned by Eval for "quit".
var ErrQuit = errors.New("quit")

var (
	getCmd     = regexp.MustCompile(`^get +(\S+)$`)
	setCmd     = regexp.MustCompile(`^(set|push|unshift|concat|splice|merge|deepMerge) +(\S+) +(.*)$`)
	popCmd     = regexp.MustCompile(`^(unset|pop|shift) +(\S+)$`)
	doCmd      = regexp.MustCompile(`^do +(.*)$`)
	printCmd   = regexp.MustCompile(`^print( +-yaml)?( +(\S+))?$`)
	recordCmd  = regexp.MustCompile(`^record +(\S+)( +([0-9]+))?$`)
	undoCmd    = regexp.MustCompile(`^undo +(\S+)( +([0-9]+))?$`)
	historyCmd = regexp.MustCompile(`^history +(\S+)$`)
	graphCmd   = regexp.MustCompile(`^(dot|mermaid|png)( +(\S+))?$`)
	saveCmd    = regexp.MustCompile(`^save +(.*)$`)
	loadCmd    = regexp.MustCompile(`^load +(.*)$`)
)

// Shell evaluates lines against a tree.
type Shell struct {
	Tree         *core.Tree
	Interpreters core.InterpretersMap
	Out          io.Writer

	// Prefix starts each output line.
	Prefix string

	recording map[string]*core.Cursor
}

func NewShell(tree *core.Tree, interps core.InterpretersMap, out io.Writer) *Shell {
	return &Shell{
		Tree:         tree,
		Interpreters: interps,
		Out:          out,
		Prefix:       "# ",
		recording:    make(map[string]*core.Cursor),
	}
}

func (s *Shell) say(format string, args ...interface{}) {
	fmt.Fprintf(s.Out, s.Prefix+format+"\n", args...)
}

// Release lets go of the shell's cursors.
func (s *Shell) Release() {
	for _, c := range s.recording {
		c.Release()
	}
	s.recording = make(map[string]*core.Cursor)
}

// Run evaluates lines from in until EOF or "quit".  Errors from
// individual lines are reported, not returned.
func (s *Shell) Run(ctx context.Context, in io.Reader, echo bool) error {
	r := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadString('\n')
		if err == io.EOF && line == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}
		if echo {
			fmt.Fprint(s.Out, line)
		}
		err = s.Eval(ctx, line)
		if err == ErrQuit {
			return nil
		}
		if err != nil {
			s.say("error: %s", err)
		}
	}
}

// Eval executes one command.
func (s *Shell) Eval(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	var ss []string

	switch line {
	case "quit", "exit":
		return ErrQuit
	case "help", "h", "?":
		for _, l := range strings.Split(strings.TrimSpace(doc()), "\n") {
			s.say("%s", l)
		}
		return nil
	case "commit":
		s.Tree.Commit()
		return nil
	case "stats":
		s.say("%s", sio.JS(s.Tree.Stats()))
		return nil
	case "monkeys":
		for _, m := range s.Tree.Monkeys() {
			def := m.Definition()
			s.say("%s %s", m.Path(), sio.JS(def.DepPaths()))
		}
		return nil
	case "recording":
		for _, id := range sortedKeys(s.recording) {
			s.say("%s %d", id, len(s.recording[id].GetHistory()))
		}
		return nil
	case "analyze":
		s.say("%s", sio.JS(tools.Analyze(tools.MonkeyGraph(s.Tree))))
		return nil
	}

	if ss = getCmd.FindStringSubmatch(line); 0 < len(ss) {
		path, err := s.path(ss[1])
		if err != nil {
			return err
		}
		s.say("%s", sio.JS(s.Tree.Serialize(path)))
		return nil
	}

	if ss = setCmd.FindStringSubmatch(line); 0 < len(ss) {
		var v interface{}
		if err := json.Unmarshal([]byte(ss[3]), &v); err != nil {
			return fmt.Errorf("couldn't parse value %s: %w", ss[3], err)
		}
		return s.exec(&sio.Command{Op: ss[1], Path: ss[2], Value: v})
	}

	if ss = popCmd.FindStringSubmatch(line); 0 < len(ss) {
		return s.exec(&sio.Command{Op: ss[1], Path: ss[2]})
	}

	if ss = doCmd.FindStringSubmatch(line); 0 < len(ss) {
		c, err := sio.ParseCommand([]byte(ss[1]))
		if err != nil {
			return err
		}
		return s.exec(c)
	}

	if ss = printCmd.FindStringSubmatch(line); 0 < len(ss) {
		var path core.Path
		if ss[3] != "" {
			var err error
			if path, err = s.path(ss[3]); err != nil {
				return err
			}
		}
		x := s.Tree.Serialize(path)
		if ss[1] == "" {
			js, err := json.MarshalIndent(x, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(s.Out, string(js))
			return nil
		}
		bs, err := yaml.Marshal(x)
		if err != nil {
			return err
		}
		fmt.Fprint(s.Out, string(bs))
		return nil
	}

	if ss = recordCmd.FindStringSubmatch(line); 0 < len(ss) {
		max := 0
		if ss[3] != "" {
			max, _ = strconv.Atoi(ss[3])
		}
		c, err := s.cursor(ss[1], true)
		if err != nil {
			return err
		}
		if err := c.StartRecording(max); err != nil {
			return err
		}
		s.say("recording %s", c.Path())
		return nil
	}

	if ss = undoCmd.FindStringSubmatch(line); 0 < len(ss) {
		steps := 1
		if ss[3] != "" {
			steps, _ = strconv.Atoi(ss[3])
		}
		c, err := s.cursor(ss[1], false)
		if err != nil {
			return err
		}
		if err := c.Undo(steps); err != nil {
			return err
		}
		s.Tree.Commit()
		s.say("%s", sio.JS(c.Serialize()))
		return nil
	}

	if ss = historyCmd.FindStringSubmatch(line); 0 < len(ss) {
		c, err := s.cursor(ss[1], false)
		if err != nil {
			return err
		}
		for i, x := range c.GetHistory() {
			s.say("%d. %s", i+1, sio.JS(x))
		}
		return nil
	}

	if ss = graphCmd.FindStringSubmatch(line); 0 < len(ss) {
		return s.graph(ss[1], ss[3])
	}

	if ss = saveCmd.FindStringSubmatch(line); 0 < len(ss) {
		js, err := json.MarshalIndent(s.Tree.Serialize(nil), "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(ss[1], js, 0644)
	}

	if ss = loadCmd.FindStringSubmatch(line); 0 < len(ss) {
		x, err := sio.LoadFile(ctx, ss[1], s.Interpreters)
		if err != nil {
			return err
		}
		if err := s.Tree.Set(nil, x); err != nil {
			return err
		}
		s.Tree.Commit()
		glog.Infof("loaded %s", ss[1])
		s.say("%d monkeys", len(s.Tree.Monkeys()))
		return nil
	}

	return fmt.Errorf("unsupported command: %s", line)
}

func (s *Shell) exec(c *sio.Command) error {
	if err := c.Exec(s.Tree); err != nil {
		return err
	}
	if c.Op != "commit" {
		s.Tree.Commit()
	}
	return nil
}

// path parses "/a/b" or a JSON array of steps.
func (s *Shell) path(src string) (core.Path, error) {
	if strings.HasPrefix(src, "[") {
		var steps []interface{}
		if err := json.Unmarshal([]byte(src), &steps); err != nil {
			return nil, err
		}
		return core.PathValue(steps)
	}
	return core.ParsePath(src), nil
}

func (s *Shell) cursor(src string, create bool) (*core.Cursor, error) {
	path, err := s.path(src)
	if err != nil {
		return nil, err
	}
	id := path.String()
	if c, have := s.recording[id]; have {
		return c, nil
	}
	if !create {
		return nil, fmt.Errorf("not recording %s", id)
	}
	c, err := s.Tree.Select(path)
	if err != nil {
		return nil, err
	}
	s.recording[id] = c
	return c, nil
}

func (s *Shell) graph(format, filename string) error {
	g := tools.MonkeyGraph(s.Tree)
	switch format {
	case "png":
		if filename == "" {
			filename = "monkeys"
		}
		pngname, err := tools.PNG(g, filename, &tools.DotOpts{ShowSource: true})
		if err != nil {
			return err
		}
		s.say("wrote %s", pngname)
		return nil
	}

	w := s.Out
	if filename != "" {
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if format == "dot" {
		return tools.Dot(g, w, nil)
	}
	return tools.Mermaid(g, w, nil)
}

// sortedKeys is used for stable output.
func sortedKeys(m map[string]*core.Cursor) []string {
	acc := make([]string, 0, len(m))
	for k := range m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

func doc() string {
	return `
  get PATH                  Print the serialized value at PATH
  set PATH JSON             Set the value at PATH (also push, unshift, concat, splice, merge, deepMerge)
  unset PATH                Remove the value at PATH (also pop, shift)
  do COMMAND                Execute a JSON command like {"op":"set","path":"/a","value":1}
  commit                    Commit pending writes
  print [-yaml] [PATH]      Pretty-print the data
  monkeys                   List the monkeys and their dependencies
  analyze                   Summarize the monkey graph
  dot|mermaid [FILENAME]    Render the monkey graph
  png [BASENAME]            Render the monkey graph with Graphviz
  record PATH [MAX]         Start recording history at PATH
  undo PATH [STEPS]         Restore an earlier value at PATH
  history PATH              Show the recorded values at PATH
  recording                 List the recording paths
  save FILENAME             Write the data as JSON
  load FILENAME             Replace the data with the contents of a YAML or JSON file
  stats                     Show the tree's counters
  quit                      Exit
  help                      Show this documentation
`
}
