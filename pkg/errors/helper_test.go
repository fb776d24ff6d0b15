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
package errors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	require.Nil(t, WrapError(ErrServeHTTP, nil))

	err := WrapError(ErrConfigDecodeFail, context.Canceled)
	require.True(t, Is(err, ErrConfigDecodeFail))
	require.Contains(t, err.Error(), "DFLOW:ErrConfigDecodeFail")
}

func TestRFCCode(t *testing.T) {
	t.Parallel()

	code, ok := RFCCode(ErrTaskNotFound.GenWithStackByArgs("X"))
	require.True(t, ok)
	require.Equal(t, "DFLOW:ErrTaskNotFound", string(code))

	wrapped := Annotate(Trace(ErrDependencyFailed.GenWithStackByArgs("X")), "stage bake")
	require.True(t, Is(wrapped, ErrDependencyFailed))
	require.False(t, Is(wrapped, ErrTaskNotFound))
	var terr *Error
	require.True(t, As(wrapped, &terr))
	code, ok = RFCCode(wrapped)
	require.True(t, ok)
	require.Equal(t, "DFLOW:ErrDependencyFailed", string(code))

	_, ok = RFCCode(nil)
	require.False(t, ok)
	_, ok = RFCCode(context.Canceled)
	require.False(t, ok)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err           error
		dependency    bool
		specification bool
	}{
		{ErrDependencyFailed.GenWithStackByArgs("X"), true, false},
		{ErrDuplicateInputBinding.GenWithStackByArgs("a"), false, true},
		{ErrCyclicDependency.GenWithStackByArgs("R"), false, true},
		{ErrMissingOutput.GenWithStackByArgs("X", "b"), false, true},
		{ErrEmptyDependencies.GenWithStackByArgs(), false, true},
		{ErrMetaOpFail.GenWithStackByArgs(), false, false},
		{context.Canceled, false, false},
	}
	for _, c := range cases {
		require.Equal(t, c.dependency, IsDependencyFailure(c.err), c.err.Error())
		require.Equal(t, c.specification, IsSpecificationError(c.err), c.err.Error())
	}
}
