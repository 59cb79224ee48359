package telemetry

import (
	"sync/atomic"
	"time"

	"vigor/server/logging"
)

// Metric keys published into the logging router's metrics map and shown
// under "metrics" on /diagnostics.
const (
	MetricTickDurationMicros     = "sim_tick_duration_micros"
	MetricTickOverruns           = "sim_tick_overrun_total"
	MetricCommandBufferOccupancy = "sim_command_buffer_occupancy"
	MetricCommandBufferOverflows = "sim_command_buffer_overflow_total"
)

// Metrics is where the sim loop and command buffer publish gauges and
// counters.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics publishes into the router metrics map. A nil map discards.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return routerMetrics{metrics: metrics}
}

type routerMetrics struct {
	metrics *logging.Metrics
}

func (m routerMetrics) Add(key string, delta uint64) {
	m.metrics.TelemetryAdd(key, delta)
}

func (m routerMetrics) Store(key string, value uint64) {
	m.metrics.TelemetryStore(key, value)
}

// Counters tracks process-wide simulation and broadcast statistics exposed by
// the diagnostics endpoint.
type Counters struct {
	bytesSent             atomic.Uint64
	snapshotsSent         atomic.Uint64
	broadcasts            atomic.Uint64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	tickDurationMicros    atomic.Int64
	slideTriggers         atomic.Uint64
	slideRejections       atomic.Uint64
	criticalEntries       atomic.Uint64
	thresholdChanges      atomic.Uint64
	commandDrops          atomic.Uint64

	debug  bool
	logger Logger
}

// Snapshot is the JSON view of Counters.
type Snapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	SnapshotsSent      uint64 `json:"snapshotsSent"`
	Broadcasts         uint64 `json:"broadcasts"`
	TickDurationMicros int64  `json:"tickDurationMicros"`
	SlideTriggers      uint64 `json:"slideTriggers"`
	SlideRejections    uint64 `json:"slideRejections"`
	CriticalEntries    uint64 `json:"criticalEntries"`
	ThresholdChanges   uint64 `json:"thresholdChanges"`
	CommandDrops       uint64 `json:"commandDrops"`
}

// NewCounters builds a counter set. When debug is set every recorded tick
// duration is echoed through logger.
func NewCounters(debug bool, logger Logger) *Counters {
	return &Counters{debug: debug, logger: logger}
}

func (c *Counters) RecordBroadcast(bytes, snapshots int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	if snapshots < 0 {
		snapshots = 0
	}
	c.broadcasts.Add(1)
	c.bytesSent.Add(uint64(bytes))
	c.snapshotsSent.Add(uint64(snapshots))
	c.lastBroadcastBytes.Store(uint64(bytes))
	c.lastBroadcastEntities.Store(uint64(snapshots))
}

func (c *Counters) RecordTickDuration(duration time.Duration) {
	if c == nil {
		return
	}
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	c.tickDurationMicros.Store(micros)
	if c.debug && c.logger != nil {
		c.logger.Printf(
			"[telemetry] tick=%dus bytes=%d totalBytes=%d snapshots=%d totalSnapshots=%d",
			micros,
			c.lastBroadcastBytes.Load(),
			c.bytesSent.Load(),
			c.lastBroadcastEntities.Load(),
			c.snapshotsSent.Load(),
		)
	}
}

func (c *Counters) RecordSlide(started bool) {
	if c == nil {
		return
	}
	if started {
		c.slideTriggers.Add(1)
		return
	}
	c.slideRejections.Add(1)
}

func (c *Counters) IncrementCriticalEntries() {
	if c == nil {
		return
	}
	c.criticalEntries.Add(1)
}

func (c *Counters) IncrementThresholdChanges() {
	if c == nil {
		return
	}
	c.thresholdChanges.Add(1)
}

func (c *Counters) IncrementCommandDrops() {
	if c == nil {
		return
	}
	c.commandDrops.Add(1)
}

func (c *Counters) DebugEnabled() bool {
	return c != nil && c.debug
}

func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		BytesSent:          c.bytesSent.Load(),
		SnapshotsSent:      c.snapshotsSent.Load(),
		Broadcasts:         c.broadcasts.Load(),
		TickDurationMicros: c.tickDurationMicros.Load(),
		SlideTriggers:      c.slideTriggers.Load(),
		SlideRejections:    c.slideRejections.Load(),
		CriticalEntries:    c.criticalEntries.Load(),
		ThresholdChanges:   c.thresholdChanges.Load(),
		CommandDrops:       c.commandDrops.Load(),
	}
}
