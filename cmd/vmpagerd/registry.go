package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gopheros/vmpager/kernel/metrics"
)

func newRegistry(m *metrics.Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)
	return reg
}
