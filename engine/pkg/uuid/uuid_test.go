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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerator(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	a, b := gen.NewString(), gen.NewString()
	require.Len(t, a, 36)
	require.NotEqual(t, a, b)
}

func TestMockGenerator(t *testing.T) {
	t.Parallel()

	gen := NewMock()
	gen.Push("a")
	gen.Push("b")
	require.Equal(t, "a", gen.NewString())
	require.Equal(t, "b", gen.NewString())
	require.Panics(t, func() { gen.NewString() })

	seq := NewSequentialMock("task")
	seq.Push("first")
	require.Equal(t, "first", seq.NewString())
	require.Equal(t, "task-1", seq.NewString())
	require.Equal(t, "task-2", seq.NewString())
}
