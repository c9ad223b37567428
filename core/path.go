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
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Comcast/arbor/match"
)

// Path is an address into a Tree's data.
//
// A static step is a string (a map key) or an integer (a sequence
// index).  A dynamic step is a Predicate or a Pattern, and it's only
// meaningful when the parent is a sequence.
//
// The steps "." and ".." are only meaningful in monkey projection
// paths, where they are relative to the monkey's parent.
type Path []interface{}

// Predicate is a dynamic step that selects the first sequence element
// for which it returns true.
type Predicate func(x interface{}) bool

// Pattern is a dynamic step that selects the first sequence element
// that partially matches it.  See match.Compare.
type Pattern map[string]interface{}

// Located is the result of GetIn.
type Located struct {
	// Value is what was found, if anything.
	Value interface{}

	// Solved is the concrete version of the path.  It is nil if
	// a dynamic step could not be solved.
	Solved Path

	// Exists reports whether the value is actually present.
	Exists bool
}

// Ok reports whether the path was solved.
func (l Located) Ok() bool {
	return l.Solved != nil
}

func isDynamicStep(s interface{}) bool {
	switch s.(type) {
	case Predicate, func(interface{}) bool, Pattern, map[string]interface{}:
		return true
	}
	return false
}

// IsDynamic reports whether the path contains any dynamic step.
func (p Path) IsDynamic() bool {
	for _, s := range p {
		if isDynamicStep(s) {
			return true
		}
	}
	return false
}

// Check returns an InvalidInputError if any step isn't a string, an
// integer, or a dynamic step.
func (p Path) Check() error {
	for i, s := range p {
		if isDynamicStep(s) {
			continue
		}
		if _, is := stepKey(s); !is {
			return invalid("path", "step %d (%T) is neither a key, an index, nor a dynamic step", i, s)
		}
	}
	return nil
}

// Copy returns a fresh copy of the path.  Nil stays nil.
func (p Path) Copy() Path {
	if p == nil {
		return nil
	}
	acc := make(Path, len(p))
	copy(acc, p)
	return acc
}

// Concat returns a new path with the steps of p followed by the steps
// of q.
func (p Path) Concat(q ...interface{}) Path {
	acc := make(Path, 0, len(p)+len(q))
	acc = append(acc, p...)
	return append(acc, q...)
}

func (p Path) String() string {
	if p == nil {
		return "<unsolved>"
	}
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('/')
		switch vv := s.(type) {
		case Predicate, func(interface{}) bool:
			b.WriteString("<fn>")
		case Pattern, map[string]interface{}:
			js, err := json.Marshal(vv)
			if err != nil {
				b.WriteString("<pattern>")
			} else {
				b.Write(js)
			}
		default:
			k, _ := stepKey(s)
			b.WriteString(k)
		}
	}
	return b.String()
}

// ParsePath makes a static Path from a string like "/a/b/0".
//
// Segments that look like non-negative integers become integers.  A
// path without a leading slash is relative if it starts with "." or
// "..".
func ParsePath(s string) Path {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && 0 <= n {
			p = append(p, n)
			continue
		}
		p = append(p, part)
	}
	return p
}

// stepKey renders a static step as a map key.
func stepKey(s interface{}) (string, bool) {
	switch vv := s.(type) {
	case string:
		return vv, true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case int32:
		return strconv.FormatInt(int64(vv), 10), true
	case float64:
		if vv == math.Trunc(vv) && !math.IsInf(vv, 0) {
			return strconv.FormatInt(int64(vv), 10), true
		}
	}
	return "", false
}

// stepIndex interprets a static step as a sequence index.
func stepIndex(s interface{}) (int, bool) {
	switch vv := s.(type) {
	case int:
		return vv, true
	case int64:
		return int(vv), true
	case int32:
		return int(vv), true
	case float64:
		if vv == math.Trunc(vv) && !math.IsInf(vv, 0) {
			return int(vv), true
		}
	case string:
		if n, err := strconv.Atoi(vv); err == nil {
			return n, true
		}
	}
	return 0, false
}

// stepEqual is loose equality for static steps, so 3 and "3" are the
// same step.
func stepEqual(x, y interface{}) bool {
	kx, okx := stepKey(x)
	ky, oky := stepKey(y)
	return okx && oky && kx == ky
}

// child returns the value at the given static step.
func child(c interface{}, step interface{}) (interface{}, bool) {
	switch vv := c.(type) {
	case map[string]interface{}:
		k, ok := stepKey(step)
		if !ok {
			return nil, false
		}
		x, have := vv[k]
		return x, have
	case []interface{}:
		i, ok := stepIndex(step)
		if !ok || i < 0 || len(vv) <= i {
			return nil, false
		}
		return vv[i], true
	}
	return nil, false
}

// patterns compares pattern steps.  It reads through Deferred nodes.
var patterns = &match.Matcher{
	Fudge: true,
	Deref: Resolve,
}

// matchesStep reports whether the sequence element x satisfies the
// dynamic step.
func matchesStep(step interface{}, x interface{}) bool {
	x = Resolve(x)
	switch vv := step.(type) {
	case Predicate:
		return vv(x)
	case func(interface{}) bool:
		return vv(x)
	case Pattern:
		return patterns.Compare(x, map[string]interface{}(vv))
	case map[string]interface{}:
		return patterns.Compare(x, vv)
	}
	return false
}

// indexOf returns the index of the first element satisfying the
// dynamic step or -1.
func indexOf(xs []interface{}, step interface{}) int {
	for i, x := range xs {
		if matchesStep(step, x) {
			return i
		}
	}
	return -1
}

// GetIn resolves the path against the data.
//
// When a static step is absent, resolution continues structurally:
// the remaining steps are appended to the solved path and Exists is
// false.  When a dynamic step can't be solved, the whole result is
// unsolved (Solved is nil).
func GetIn(data interface{}, path Path) Located {
	c := Resolve(data)
	if len(path) == 0 {
		return Located{Value: c, Solved: Path{}, Exists: true}
	}

	solved := make(Path, 0, len(path))
	exists := true

	for i, step := range path {
		if c == nil {
			return Located{
				Solved: append(solved, path[i:]...),
			}
		}

		if isDynamicStep(step) {
			xs, is := c.([]interface{})
			if !is {
				return Located{}
			}
			j := indexOf(xs, step)
			if j < 0 {
				return Located{}
			}
			solved = append(solved, j)
			c = Resolve(xs[j])
			exists = true
			continue
		}

		solved = append(solved, step)
		var x interface{}
		x, exists = child(c, step)
		c = Resolve(x)
	}

	return Located{
		Value:  c,
		Solved: solved,
		Exists: exists,
	}
}

// SolveUpdate reports whether any of the affected paths overlaps
// any of the compared paths.  Two paths overlap when one is a prefix
// of the other.  An empty (or unsolved) path overlaps everything.
func SolveUpdate(affected []Path, compared []Path) bool {
	for _, a := range affected {
		if len(a) == 0 {
			return true
		}
	}
	for _, c := range compared {
		if len(c) == 0 {
			return true
		}
	}

	for _, a := range affected {
	COMPARED:
		for _, c := range compared {
			for i := 0; ; i++ {
				if i == len(a) || i == len(c) {
					return true
				}
				if !stepEqual(a[i], c[i]) {
					continue COMPARED
				}
			}
		}
	}

	return false
}

// SolveRelativePath interprets "." and ".." steps in to relative to
// base.  A path that doesn't start with either is absolute.
func SolveRelativePath(base, to Path) Path {
	solved := Path{}
	for i, step := range to {
		switch step {
		case ".":
			if i == 0 {
				solved = base.Copy()
			}
		case "..":
			from := solved
			if i == 0 {
				from = base
			}
			if 0 < len(from) {
				solved = from[:len(from)-1].Copy()
			} else {
				solved = Path{}
			}
		default:
			solved = append(solved, step)
		}
	}
	return solved
}

// hashSeq numbers dynamic steps so that a dynamic path never shares a
// hash with anything else.
var hashSeq uint64

func uniqid() string {
	return strconv.FormatUint(atomic.AddUint64(&hashSeq, 1), 10)
}

// hashPath makes the cache key for a path.  A dynamic path gets a
// fresh key every time.
func hashPath(p Path) string {
	var b strings.Builder
	b.WriteString("λ")
	for i, s := range p {
		if 0 < i {
			b.WriteString("λ")
		}
		if isDynamicStep(s) {
			b.WriteString("#" + uniqid() + "#")
			continue
		}
		k, _ := stepKey(s)
		b.WriteString(k)
	}
	return b.String()
}
