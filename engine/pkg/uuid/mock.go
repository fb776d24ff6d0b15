// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package uuid

import (
	"fmt"
	"sync"

	"github.com/pingcap/log"
)

// MockGenerator is a mock uuid generator
type MockGenerator struct {
	mu   sync.Mutex
	list []string

	// prefix, when set, makes NewString fall back to sequential ids
	// once the pushed list is exhausted.
	prefix string
	seq    int
}

// NewMock creates a mock Generator that only returns pushed ids.
func NewMock() *MockGenerator {
	return &MockGenerator{}
}

// NewSequentialMock creates a mock Generator that returns pushed ids first,
// then "<prefix>-1", "<prefix>-2", ...
func NewSequentialMock(prefix string) *MockGenerator {
	return &MockGenerator{prefix: prefix}
}

// NewString implements Generator.NewString
func (g *MockGenerator) NewString() (ret string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.list) == 0 {
		if g.prefix != "" {
			g.seq++
			return fmt.Sprintf("%s-%d", g.prefix, g.seq)
		}
		log.L().Panic("Empty uuid list. Please use Push() to add a uuid to the list.")
	}

	ret, g.list = g.list[0], g.list[1:]
	return
}

// Push adds a candidate uuid in FIFO list
func (g *MockGenerator) Push(uuid string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.list = append(g.list, uuid)
}
