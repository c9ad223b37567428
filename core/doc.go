/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// Package core provides an in-memory tree of JSON-like data with
// cursors, batched update notifications, and derived values.
//
// The primary type is Tree.  A Tree holds one snapshot of data made
// of map[string]interface{}, []interface{}, and primitives.  Every
// write goes through Tree.Update, which applies an Operation at a
// Path.  With Persistent on, a write copies the containers on the
// path and shares everything else, so a snapshot handed out earlier
// never changes.
//
// Writes accumulate in a transaction.  A commit ends the transaction
// and emits one UpdateEvent listing the affected paths.  Commits
// happen right away, later via a Scheduler (see Loop), or when the
// application calls Commit, depending on the Options.  An optional
// Validator can reject a transaction, which then rolls back.
//
// A Cursor is a view at a Path.  Paths can have dynamic steps
// (a Predicate or a Pattern) that select a sequence element.  A
// Cursor reports only the commits that touch its data, and it can
// record its history for Undo.  A Watcher does the same for a set of
// named paths.
//
// A MonkeyDefinition placed in the data declares a derived value: a
// getter over a projection of other paths.  The Tree mounts a Monkey
// there, and the Monkey recomputes when its dependencies change.
// With LazyMonkeys, the getter runs only when the value is read.
// Monkeys can depend on other monkeys.  Derived subtrees are read
// only.
//
// Getters and validators can also be written in an interpreted
// language.  See DecodeDefinitions and ScriptValidator.
//
// A Tree isn't safe for concurrent use.  Applications that have other
// goroutines should funnel their work through a Loop.
package core
