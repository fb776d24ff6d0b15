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

package jobsvc

import (
	"context"
	"sort"
	"sync"

	"github.com/pingcap/depflow/engine/model"
	"github.com/pingcap/depflow/pkg/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// JobFunc is the body of a terminal job. Returned values are wrapped into
// artifacts named after their key, a returned model.Artifact is kept as is.
type JobFunc func(ctx context.Context, inputs map[string]model.Artifact) (map[string]interface{}, error)

// Registry defines an interface to job functions. Business can register
// any job type into a registry before submitting jobs of that type.
type Registry interface {
	MustRegisterJobType(tp string, fn JobFunc)
	RegisterJobType(tp string, fn JobFunc) error
	GetJobFunc(tp string) (JobFunc, error)
	JobTypes() []string
}

type registryImpl struct {
	mu     sync.RWMutex
	fnByTp map[string]JobFunc
}

// NewRegistry creates a new registryImpl instance
func NewRegistry() Registry {
	return &registryImpl{
		fnByTp: make(map[string]JobFunc),
	}
}

// MustRegisterJobType implements Registry.MustRegisterJobType
func (r *registryImpl) MustRegisterJobType(tp string, fn JobFunc) {
	if err := r.RegisterJobType(tp, fn); err != nil {
		log.L().Panic("duplicate job type", zap.String("job-type", tp))
	}
	log.L().Info("register job type", zap.String("job-type", tp))
}

// RegisterJobType implements Registry.RegisterJobType
func (r *registryImpl) RegisterJobType(tp string, fn JobFunc) error {
	if tp == "" || fn == nil {
		return errors.ErrInvalidArgument.GenWithStackByArgs("job type and function must be set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fnByTp[tp]; exists {
		return errors.ErrDuplicateJobType.GenWithStackByArgs(tp)
	}
	r.fnByTp[tp] = fn
	return nil
}

// GetJobFunc implements Registry.GetJobFunc
func (r *registryImpl) GetJobFunc(tp string) (JobFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.fnByTp[tp]
	if !ok {
		return nil, errors.ErrJobTypeNotFound.GenWithStackByArgs(tp)
	}
	return fn, nil
}

// JobTypes implements Registry.JobTypes
func (r *registryImpl) JobTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret := make([]string, 0, len(r.fnByTp))
	for tp := range r.fnByTp {
		ret = append(ret, tp)
	}
	sort.Strings(ret)
	return ret
}
