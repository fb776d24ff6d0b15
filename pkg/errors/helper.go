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
	stdErrors "errors"

	"github.com/pingcap/errors"
)

// Error is the normalized error type of the error catalogue.
type Error = errors.Error

// Re-exported helpers so callers only import this package.
var (
	New      = errors.New
	Errorf   = errors.Errorf
	Trace    = errors.Trace
	Annotate = errors.Annotate
	Cause    = errors.Cause
	Is       = stdErrors.Is
	As       = stdErrors.As
)

// WrapError wraps err with a normalized error rfcError, passing args to the
// message template. It returns nil when err is nil.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// RFCCode returns the RFC code of err if it is (or wraps) a normalized error.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var terr *errors.Error
	if stdErrors.As(err, &terr) {
		return terr.RFCCode(), true
	}
	if terr, ok := errors.Cause(err).(*errors.Error); ok {
		return terr.RFCCode(), true
	}
	return "", false
}

// IsDependencyFailure reports whether err means that an upstream task did not
// finish successfully.
func IsDependencyFailure(err error) bool {
	return stdErrors.Is(err, ErrDependencyFailed)
}

// IsSpecificationError reports whether err is caused by a malformed
// dependency specification. Such errors are never recovered.
func IsSpecificationError(err error) bool {
	return stdErrors.Is(err, ErrDuplicateInputBinding) ||
		stdErrors.Is(err, ErrCyclicDependency) ||
		stdErrors.Is(err, ErrMissingOutput) ||
		stdErrors.Is(err, ErrEmptyDependencies)
}
