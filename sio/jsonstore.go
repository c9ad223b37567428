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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore is a Tap that writes the tree's data (without derived
// values) as JSON to a file after every update.
//
// Not glamorous or efficient.
type JSONStore struct {
	// Filename is where the data goes.
	Filename string

	sync.Mutex
	last interface{}
}

func NewJSONStore(filename string) *JSONStore {
	return &JSONStore{
		Filename: filename,
	}
}

// Start does nothing.
func (s *JSONStore) Start(ctx context.Context) error {
	return nil
}

// Stop writes the last data again.
func (s *JSONStore) Stop(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.last == nil {
		return nil
	}
	return s.write(s.last)
}

// Publish writes the digest's data.  Invalid digests are ignored.
func (s *JSONStore) Publish(ctx context.Context, d *Digest) error {
	if d.Kind != KindUpdate {
		return nil
	}
	s.Lock()
	defer s.Unlock()
	s.last = d.Data
	return s.write(d.Data)
}

// write replaces the file via a rename so that readers never see a
// partial file.
func (s *JSONStore) write(x interface{}) error {
	js, err := json.MarshalIndent(&x, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Filename), ".arbor-*")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(js); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Filename)
}
