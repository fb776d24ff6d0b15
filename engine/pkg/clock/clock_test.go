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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockMono(t *testing.T) {
	t.Parallel()

	clk := NewMock()
	start := clk.Mono()
	clk.Add(3 * time.Second)
	require.Equal(t, 3*time.Second, clk.Mono().Sub(start))
	require.Equal(t, ToMono(clk.Now()), clk.Mono())
}

func TestRealMonoIncreases(t *testing.T) {
	t.Parallel()

	clk := New()
	a := clk.Mono()
	time.Sleep(time.Millisecond)
	require.Greater(t, clk.Mono().Sub(a), time.Duration(0))
	require.GreaterOrEqual(t, MonoNow(), a)
}
