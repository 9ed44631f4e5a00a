package infra

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorproxy_http_requests_total",
		Help: "Total number of HTTP and gRPC requests",
	}, []string{"path"})
	HTTPRequestErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_http_request_errors_total",
		Help: "Total number of HTTP and gRPC request errors",
	})
	ProcessingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensorproxy_processing_duration_seconds",
		Help:    "Duration of request processing in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Mirror metrics
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorproxy_events_total",
		Help: "Upstream events applied to the mirror, by kind",
	}, []string{"kind"})
	EventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_events_dropped_total",
		Help: "Upstream events dropped because the sensor was filtered out",
	})
	DecodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_decode_errors_total",
		Help: "Sensor values that could not be decoded",
	})
	InterfaceChangedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_interface_changed_total",
		Help: "Batches that changed the mirrored sensor set",
	})
	MirroredSensors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorproxy_mirrored_sensors",
		Help: "Number of sensors in the destination registry",
	})

	// Metric watcher
	MetricObservers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorproxy_metric_observers",
		Help: "Number of live sensor metric observers",
	})

	// Archive metrics
	ArchiveFlushTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_archive_flush_total",
		Help: "Total number of archive batch flush operations",
	})
	ArchiveFlushDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensorproxy_archive_flush_duration_seconds",
		Help:    "Duration of archive batch flush operations in seconds",
		Buckets: prometheus.DefBuckets,
	})
	ArchiveBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorproxy_archive_batch_size",
		Help: "Size of the last flushed archive batch",
	})
	ArchiveWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_archive_write_errors_total",
		Help: "Archived readings that could not be written",
	})

	// Simulator and websocket
	SimulatorSessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorproxy_simulator_sessions_total",
		Help: "Number of simulated device sessions",
	})
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorproxy_websocket_clients",
		Help: "Number of connected inform subscribers",
	})

	registerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all Prometheus collectors used by the application.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestErrorsTotal,
			ProcessingDurationSeconds,
			EventsTotal,
			EventsDroppedTotal,
			DecodeErrorsTotal,
			InterfaceChangedTotal,
			MirroredSensors,
			MetricObservers,
			ArchiveFlushTotal,
			ArchiveFlushDurationSeconds,
			ArchiveBatchSize,
			ArchiveWriteErrorsTotal,
			SimulatorSessionsTotal,
			WebsocketClients,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
func HTTPMiddleware(pathResolver func(*http.Request) string) func(http.Handler) http.Handler {
	InitMetrics()
	if pathResolver == nil {
		pathResolver = func(r *http.Request) string {
			if r == nil {
				return "unknown"
			}
			return r.URL.Path
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r == nil {
				HTTPRequestErrorsTotal.Inc()
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				ProcessingDurationSeconds.Observe(time.Since(start).Seconds())
				HTTPRequestsTotal.WithLabelValues(pathResolver(r)).Inc()

				if recorder.Status() >= http.StatusBadRequest {
					HTTPRequestErrorsTotal.Inc()
				}
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// GRPCUnaryInterceptor instruments gRPC unary handlers with request/latency metrics.
func GRPCUnaryInterceptor() grpc.UnaryServerInterceptor {
	InitMetrics()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()

		defer func() {
			ProcessingDurationSeconds.Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(info.FullMethod).Inc()

			if status.Code(err) != codes.OK {
				HTTPRequestErrorsTotal.Inc()
			}
		}()

		return handler(ctx, req)
	}
}

// RecordEvent counts an upstream event applied to the mirror.
func RecordEvent(kind string) {
	InitMetrics()
	EventsTotal.WithLabelValues(kind).Inc()
}

func IncEventsDropped() {
	InitMetrics()
	EventsDroppedTotal.Inc()
}

func IncDecodeErrors() {
	InitMetrics()
	DecodeErrorsTotal.Inc()
}

func IncInterfaceChanged() {
	InitMetrics()
	InterfaceChangedTotal.Inc()
}

func SetMirroredSensors(n int) {
	InitMetrics()
	MirroredSensors.Set(float64(n))
}

func ObserverStarted() {
	InitMetrics()
	MetricObservers.Inc()
}

func ObserverFinished() {
	InitMetrics()
	MetricObservers.Dec()
}

// RecordArchiveFlush tracks a completed archive batch flush.
func RecordArchiveFlush(duration time.Duration, size int) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	ArchiveFlushTotal.Inc()
	ArchiveFlushDurationSeconds.Observe(duration.Seconds())
	ArchiveBatchSize.Set(float64(size))
}

func IncArchiveWriteErrors() {
	InitMetrics()
	ArchiveWriteErrorsTotal.Inc()
}

func IncSimulatorSessions() {
	InitMetrics()
	SimulatorSessionsTotal.Inc()
}

func WebsocketClientConnected() {
	InitMetrics()
	WebsocketClients.Inc()
}

func WebsocketClientDisconnected() {
	InitMetrics()
	WebsocketClients.Dec()
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Status() int {
	return r.status
}

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
