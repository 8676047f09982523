// Package metrics is the observability layer SPEC_FULL.md §10.1/§2 adds
// around the core: Prometheus counters and gauges for page faults,
// evictions, swap I/O and mmap activity, plus structured zerolog event
// logging. The core packages themselves never import this package or log
// anything (spec.md §7: "the core itself does not log"); callers report
// through it explicitly (cmd/vmpagerd records the mmap regions it mounts).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Metrics bundles every counter/gauge this subsystem exposes, plus a logger
// used for the accompanying structured log line.
type Metrics struct {
	log zerolog.Logger

	FaultsTotal       *prometheus.CounterVec
	EvictionsTotal    prometheus.Counter
	SwapReadsTotal    prometheus.Counter
	SwapWritesTotal   prometheus.Counter
	SwapSlotsInUse    prometheus.Gauge
	FrameTableSize    prometheus.Gauge
	MmapRegionsActive prometheus.Gauge
	MmapWritebacksTotal prometheus.Counter
}

// New constructs a Metrics bundle. Callers register it with a
// *prometheus.Registry of their choosing (cmd/vmpagerd registers it on a
// fresh registry from prometheus.NewRegistry).
func New(log zerolog.Logger) *Metrics {
	return &Metrics{
		log: log.With().Str("component", "vmpager").Logger(),

		FaultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmpager",
			Name:      "faults_total",
			Help:      "Page faults handled, labeled by outcome.",
		}, []string{"outcome"}),

		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmpager",
			Name:      "evictions_total",
			Help:      "Frames reclaimed via clock eviction.",
		}),

		SwapReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmpager",
			Name:      "swap_reads_total",
			Help:      "Pages read back from the swap device.",
		}),

		SwapWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmpager",
			Name:      "swap_writes_total",
			Help:      "Pages written to the swap device.",
		}),

		SwapSlotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vmpager",
			Name:      "swap_slots_in_use",
			Help:      "Currently allocated swap slots.",
		}),

		FrameTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vmpager",
			Name:      "frame_table_size",
			Help:      "Frames currently tracked by the frame table.",
		}),

		MmapRegionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vmpager",
			Name:      "mmap_regions_active",
			Help:      "mmap regions currently mapped across all address spaces.",
		}),

		MmapWritebacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmpager",
			Name:      "mmap_writebacks_total",
			Help:      "Dirty file pages written back on eviction, destroy or munmap.",
		}),
	}
}

// MustRegister registers every collector in m against reg.
func (m *Metrics) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.FaultsTotal,
		m.EvictionsTotal,
		m.SwapReadsTotal,
		m.SwapWritesTotal,
		m.SwapSlotsInUse,
		m.FrameTableSize,
		m.MmapRegionsActive,
		m.MmapWritebacksTotal,
	)
}

// RecordFault increments the fault counter for the given outcome ("claimed",
// "stack_growth", "rejected") and logs at debug level.
func (m *Metrics) RecordFault(space uint64, va uintptr, outcome string) {
	m.FaultsTotal.WithLabelValues(outcome).Inc()
	m.log.Debug().Uint64("space", space).Uintptr("va", va).Str("outcome", outcome).Msg("page fault")
}

// RecordEviction increments the eviction counter and updates the live frame
// count gauge.
func (m *Metrics) RecordEviction(framesLive int) {
	m.EvictionsTotal.Inc()
	m.FrameTableSize.Set(float64(framesLive))
	m.log.Debug().Int("frames_live", framesLive).Msg("frame evicted")
}

// RecordSwapOut increments swap-write activity and the in-use slot gauge.
func (m *Metrics) RecordSwapOut(slotsInUse int) {
	m.SwapWritesTotal.Inc()
	m.SwapSlotsInUse.Set(float64(slotsInUse))
}

// RecordSwapIn increments swap-read activity and the in-use slot gauge.
func (m *Metrics) RecordSwapIn(slotsInUse int) {
	m.SwapReadsTotal.Inc()
	m.SwapSlotsInUse.Set(float64(slotsInUse))
}

// RecordMmap updates the active-region gauge after a successful mmap.
func (m *Metrics) RecordMmap(regionsActive int) {
	m.MmapRegionsActive.Set(float64(regionsActive))
	m.log.Info().Int("regions_active", regionsActive).Msg("mmap region created")
}

// RecordMunmap updates the active-region gauge and writeback counter after
// a munmap.
func (m *Metrics) RecordMunmap(regionsActive int, writebacks int) {
	m.MmapRegionsActive.Set(float64(regionsActive))
	m.MmapWritebacksTotal.Add(float64(writebacks))
	m.log.Info().Int("regions_active", regionsActive).Int("writebacks", writebacks).Msg("mmap region torn down")
}
