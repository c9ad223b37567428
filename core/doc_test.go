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

package core

import (
	"fmt"
)

// Example demonstrates a derived value and a cursor.
func Example() {

	total := MustMonkeyFrom(map[string]Path{
		"items": {"cart", "items"},
	}, func(deps map[string]interface{}) interface{} {
		xs, _ := deps["items"].([]interface{})
		sum := 0.0
		for _, x := range xs {
			if f, is := x.(float64); is {
				sum += f
			}
		}
		return sum
	})

	opts := DefaultOptions()
	opts.Asynchronous = false

	tree, err := New(map[string]interface{}{
		"cart": map[string]interface{}{
			"items": []interface{}{1.0, 2.0},
			"total": total,
		},
	}, opts)
	if err != nil {
		panic(err)
	}

	c, err := tree.Select(Path{"cart", "total"})
	if err != nil {
		panic(err)
	}
	c.OnUpdate(func(u *CursorUpdate) {
		fmt.Printf("total %v -> %v\n", u.PreviousData(), u.CurrentData())
	})

	if err = tree.Push(Path{"cart", "items"}, 3.0); err != nil {
		panic(err)
	}

	fmt.Println(tree.Get(Path{"cart", "items"}))

	// Output:
	// total 3 -> 6
	// [1 2 3]
}
