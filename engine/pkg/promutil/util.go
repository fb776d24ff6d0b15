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

package promutil

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	systemID = "depflow-system"

	// constLabelComponentKey is used to recognize metric of one component
	constLabelComponentKey = "component"
)

var _ prometheus.Gatherer = globalMetricGatherer

// NOTICE: we don't use prometheus.DefaultRegistry so that only metrics
// created by a Factory are exported
var (
	globalMetricRegistry                     = NewRegistry()
	globalMetricGatherer prometheus.Gatherer = globalMetricRegistry
)

func init() {
	globalMetricRegistry.MustRegister(systemID, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	globalMetricRegistry.MustRegister(systemID, collectors.NewGoCollector())
}

// HTTPHandlerForMetric return http.Handler for prometheus metric
func HTTPHandlerForMetric() http.Handler {
	return HTTPHandlerForMetricImpl(globalMetricGatherer)
}

// HTTPHandlerForMetricImpl return http.Handler for the given gatherer
func HTTPHandlerForMetricImpl(gather prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(
		gather,
		promhttp.HandlerOpts{},
	)
}

// NewFactory4Component return a Factory whose metrics carry a
// {component="xxx"} const label and live in the global registry
func NewFactory4Component(component string) Factory {
	return NewFactory4ComponentImpl(globalMetricRegistry, component)
}

// NewFactory4ComponentImpl is like NewFactory4Component on a given registry
func NewFactory4ComponentImpl(reg *Registry, component string) Factory {
	return &wrappingFactory{
		r:     reg,
		owner: component,
		constLabels: prometheus.Labels{
			constLabelComponentKey: component,
		},
	}
}

// UnregisterComponentMetrics unregisters all metrics of a component
func UnregisterComponentMetrics(component string) {
	globalMetricRegistry.Unregister(component)
}
