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

// These errors are user errors, not internal errors.
//
// Validation failures are not here.  A Validator returns whatever
// error it likes, and that error is only reported via the Tree's
// invalid event.

import (
	"errors"
	"fmt"
)

// InvalidInputError occurs when a caller hands the Tree something
// malformed: initial data that isn't a map or sequence, a bad path
// step, a bad projection, or a value of the wrong type for a write.
type InvalidInputError struct {
	Subject string
	Problem string
}

func (e *InvalidInputError) Error() string {
	return "invalid " + e.Subject + ": " + e.Problem
}

func invalid(subject, format string, args ...interface{}) *InvalidInputError {
	return &InvalidInputError{
		Subject: subject,
		Problem: fmt.Sprintf(format, args...),
	}
}

// PathError occurs when a write or traversal needs a concrete path
// but the given (dynamic) path could not be solved against the
// current data.
type PathError struct {
	Path Path
}

func (e *PathError) Error() string {
	return "could not solve the given path (path: " + e.Path.String() + ")"
}

// ReadOnlyError occurs when a write targets a strict descendant of a
// monkey's mount path.
type ReadOnlyError struct {
	Path       Path
	MonkeyPath Path
}

func (e *ReadOnlyError) Error() string {
	return "trying to update a read-only path (path: " + e.Path.String() +
		", monkey: " + e.MonkeyPath.String() + ")"
}

// TypeMismatchError occurs when a sequence-only operation meets a
// non-sequence or a map-only operation meets a non-map.
type TypeMismatchError struct {
	Op   OpKind
	Path Path
	Want string
}

func (e *TypeMismatchError) Error() string {
	return "cannot apply the " + e.Op.String() + " on a non " + e.Want +
		" (path: " + e.Path.String() + ")"
}

// UnknownOperation occurs when an Operation's Kind isn't one of the
// declared OpKinds.
type UnknownOperation struct {
	Kind OpKind
}

func (e *UnknownOperation) Error() string {
	return fmt.Sprintf("unknown operation kind %d", int(e.Kind))
}

// CycleError reports a monkey that (transitively) depends on its own
// value.  The recursion is cut where the cycle was found.
type CycleError struct {
	Path Path
}

func (e *CycleError) Error() string {
	return "monkey dependency cycle at " + e.Path.String()
}

// ErrReleased is returned by operations on a released Tree or Cursor.
var ErrReleased = errors.New("released")
