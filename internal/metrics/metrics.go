// Package metrics provides Prometheus metrics for the device filesystem.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devfs_operations_total",
			Help: "Total number of filesystem operations by result",
		},
		[]string{"op", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devfs_operation_duration_seconds",
			Help:    "Filesystem operation latency in seconds",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op"},
	)

	devices = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devfs_catalog_entries",
			Help: "Number of catalog entries by type",
		},
		[]string{"type"},
	)

	documentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devfs_document_writes_total",
			Help: "Total number of device document rewrites by status",
		},
		[]string{"status"},
	)

	documentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devfs_document_bytes",
			Help: "Size of the device document after the last rewrite",
		},
	)

	bytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devfs_read_bytes_total",
			Help: "Total bytes returned by read",
		},
	)

	bytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devfs_written_bytes_total",
			Help: "Total bytes accepted by write",
		},
	)
)

// RecordOperation records the outcome and latency of one operation.
func RecordOperation(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetCatalogEntries sets the entry gauge for one entry type.
func SetCatalogEntries(typ string, n int) {
	devices.WithLabelValues(typ).Set(float64(n))
}

// RecordDocumentWrite records a rewrite of the device document.
func RecordDocumentWrite(size int, err error) {
	if err != nil {
		documentWrites.WithLabelValues("error").Inc()
		return
	}
	documentWrites.WithLabelValues("ok").Inc()
	documentBytes.Set(float64(size))
}

// AddBytesRead counts bytes served by read.
func AddBytesRead(n int) {
	bytesRead.Add(float64(n))
}

// AddBytesWritten counts bytes accepted by write.
func AddBytesWritten(n int) {
	bytesWritten.Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until the server fails or is closed.
func Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return srv, errc
}
