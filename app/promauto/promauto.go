// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package promauto is a drop-in replacement of github.com/prometheus/client_golang/prometheus/promauto
// and adds support for wrapping all metrics with runtime labels.
package promauto

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Using globals since promauto is designed for use at package initialisation time.
var (
	mu      sync.Mutex
	metrics []prometheus.Collector
)

// NewRegistry returns a new registry containing all promauto created metrics and
// built-in Go process metrics wrapping all the metrics with the provided labels.
func NewRegistry(labels prometheus.Labels) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registerer := prometheus.WrapRegistererWith(labels, registry)
	registerer.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registerer.MustRegister(collectors.NewGoCollector())

	mu.Lock()
	defer mu.Unlock()
	registerer.MustRegister(metrics...)

	return registry
}

// cacheMetric adds the metric to the local global cache.
func cacheMetric(metric prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()

	metrics = append(metrics, metric)
}

func NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := promauto.NewCounter(opts)
	cacheMetric(c)

	return c
}

func NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	c := promauto.NewCounterVec(opts, labelNames)
	cacheMetric(c)

	return c
}

func NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	c := promauto.NewGauge(opts)
	cacheMetric(c)

	return c
}

func NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	c := promauto.NewGaugeVec(opts, labelNames)
	cacheMetric(c)

	return c
}
