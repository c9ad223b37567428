// Package interpreters collects the interpreters that script-defined
// getters and validators can name.
package interpreters

import (
	"github.com/Comcast/arbor/core"
	"github.com/Comcast/arbor/interpreters/goja"
	"github.com/Comcast/arbor/interpreters/noop"
)

// Standard returns a fresh map with "goja" (also known as
// "ecmascript") and "noop".
func Standard() core.InterpretersMap {
	is := core.NewInterpretersMap()

	es := goja.NewInterpreter()
	is["goja"] = es
	is["ecmascript"] = es
	is["ecmascript-5.1"] = es

	is["noop"] = noop.NewInterpreter()

	return is
}
