package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	BusOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_opens_total",
		Help: "Total scoped bus acquisitions that opened the device.",
	})
	BusOpenFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_open_failures_total",
		Help: "Total scoped bus acquisitions that failed to open the device.",
	})
	TxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_tx_frames_total",
		Help: "Total CAN frames written to the bus, by stream.",
	}, []string{"stream"})
	CommandsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_enqueued_total",
		Help: "Total command tokens accepted into the command queue.",
	})
	CommandsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_dispatched_total",
		Help: "Total known commands written to the bus.",
	})
	CommandsUnknown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_unknown_total",
		Help: "Total dequeued command tokens with no handler.",
	})
	CommandQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_queue_depth",
		Help: "Command tokens waiting for the dispatcher.",
	})
	CurrentMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "device_mode",
		Help: "Mode currently asserted by the heartbeat (0=manual 1=remote 2=emergency 3=ota).",
	})
	AxisUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "axis_updates_total",
		Help: "Total axis payload replacements accepted.",
	})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Control API requests by route.",
	}, []string{"route"})
	MonitorClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_clients",
		Help: "Current number of connected frame monitor clients.",
	})
	MonitorDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_dropped_frames_total",
		Help: "Total frames dropped for slow monitor clients.",
	})
	MonitorKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_kicked_clients_total",
		Help: "Total monitor clients disconnected due to backpressure kick policy.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// TX stream label values.
const (
	StreamHeartbeat = "heartbeat"
	StreamAxis      = "axis"
	StreamCommand   = "command"
	StreamBeacon    = "beacon"
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrBusOpen        = "bus_open"
	ErrBusWrite       = "bus_write"
	ErrBusClose       = "bus_close"
	ErrHeartbeat      = "heartbeat"
	ErrDispatch       = "dispatch"
	ErrBeacon         = "beacon"
	ErrHTTPBadRequest = "http_bad_request"
	ErrHTTPServe      = "http_serve"
	ErrMonitorWrite   = "monitor_write"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localBusOpens     uint64
	localBusOpenFails uint64
	localHeartbeatTx  uint64
	localAxisTx       uint64
	localCommandTx    uint64
	localBeaconTx     uint64
	localEnqueued     uint64
	localDispatched   uint64
	localUnknown      uint64
	localQueueDepth   uint64
	localMode         uint64
	localAxisUpdates  uint64
	localRequests     uint64
	localMonClients   uint64
	localMonDrops     uint64
	localMonKicks     uint64
	localErrors       uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	BusOpens       uint64
	BusOpenFails   uint64
	HeartbeatTx    uint64
	AxisTx         uint64
	CommandTx      uint64
	BeaconTx       uint64
	Enqueued       uint64
	Dispatched     uint64
	Unknown        uint64
	QueueDepth     uint64
	Mode           uint64
	AxisUpdates    uint64
	Requests       uint64
	MonitorClients uint64
	MonitorDrops   uint64
	MonitorKicks   uint64
	Errors         uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		BusOpens:       atomic.LoadUint64(&localBusOpens),
		BusOpenFails:   atomic.LoadUint64(&localBusOpenFails),
		HeartbeatTx:    atomic.LoadUint64(&localHeartbeatTx),
		AxisTx:         atomic.LoadUint64(&localAxisTx),
		CommandTx:      atomic.LoadUint64(&localCommandTx),
		BeaconTx:       atomic.LoadUint64(&localBeaconTx),
		Enqueued:       atomic.LoadUint64(&localEnqueued),
		Dispatched:     atomic.LoadUint64(&localDispatched),
		Unknown:        atomic.LoadUint64(&localUnknown),
		QueueDepth:     atomic.LoadUint64(&localQueueDepth),
		Mode:           atomic.LoadUint64(&localMode),
		AxisUpdates:    atomic.LoadUint64(&localAxisUpdates),
		Requests:       atomic.LoadUint64(&localRequests),
		MonitorClients: atomic.LoadUint64(&localMonClients),
		MonitorDrops:   atomic.LoadUint64(&localMonDrops),
		MonitorKicks:   atomic.LoadUint64(&localMonKicks),
		Errors:         atomic.LoadUint64(&localErrors),
	}
}

func IncBusOpen() {
	BusOpens.Inc()
	atomic.AddUint64(&localBusOpens, 1)
}

func IncBusOpenFailure() {
	BusOpenFailures.Inc()
	atomic.AddUint64(&localBusOpenFails, 1)
}

// IncTx counts one frame written on the named stream.
func IncTx(stream string) {
	TxFrames.WithLabelValues(stream).Inc()
	switch stream {
	case StreamHeartbeat:
		atomic.AddUint64(&localHeartbeatTx, 1)
	case StreamAxis:
		atomic.AddUint64(&localAxisTx, 1)
	case StreamCommand:
		atomic.AddUint64(&localCommandTx, 1)
	case StreamBeacon:
		atomic.AddUint64(&localBeaconTx, 1)
	}
}

func IncEnqueued() {
	CommandsEnqueued.Inc()
	atomic.AddUint64(&localEnqueued, 1)
}

func IncDispatched() {
	CommandsDispatched.Inc()
	atomic.AddUint64(&localDispatched, 1)
}

func IncUnknownCommand() {
	CommandsUnknown.Inc()
	atomic.AddUint64(&localUnknown, 1)
}

func SetQueueDepth(n int) {
	CommandQueueDepth.Set(float64(n))
	atomic.StoreUint64(&localQueueDepth, uint64(n))
}

func SetMode(m uint8) {
	CurrentMode.Set(float64(m))
	atomic.StoreUint64(&localMode, uint64(m))
}

func IncAxisUpdate() {
	AxisUpdates.Inc()
	atomic.AddUint64(&localAxisUpdates, 1)
}

func IncRequest(route string) {
	HTTPRequests.WithLabelValues(route).Inc()
	atomic.AddUint64(&localRequests, 1)
}

func SetMonitorClients(n int) {
	MonitorClients.Set(float64(n))
	atomic.StoreUint64(&localMonClients, uint64(n))
}

func IncMonitorDrop() {
	MonitorDroppedFrames.Inc()
	atomic.AddUint64(&localMonDrops, 1)
}

func IncMonitorKick() {
	MonitorKickedClients.Inc()
	atomic.AddUint64(&localMonKicks, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register label series so dashboards see zeros before the first event.
	for _, lbl := range []string{
		ErrBusOpen, ErrBusWrite, ErrBusClose,
		ErrHeartbeat, ErrDispatch, ErrBeacon,
		ErrHTTPBadRequest, ErrHTTPServe, ErrMonitorWrite,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, s := range []string{StreamHeartbeat, StreamAxis, StreamCommand, StreamBeacon} {
		TxFrames.WithLabelValues(s).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
