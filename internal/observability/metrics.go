package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus registry and the meters shared by the scan executor and the
// transports.
type Metrics struct {
	Registry          *prometheus.Registry
	ScanRows          *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	CellsWritten      prometheus.Counter
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	CDCEvents         *prometheus.CounterVec
	CDCClients        prometheus.Gauge
}

// NewMetrics creates a custom Prometheus registry with the litetable metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	scanRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litetable_scan_rows_total",
		Help: "Rows processed by scans, by outcome.",
	}, []string{"outcome"})

	scanDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "litetable_scan_duration_seconds",
		Help:    "Duration of scans in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	cellsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "litetable_cells_written_total",
		Help: "Cells written by mutation batches.",
	})

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "litetable_operation_duration_seconds",
		Help:    "Duration of API operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litetable_operation_total",
		Help: "Total number of API operations.",
	}, []string{"operation", "status"})

	cdcEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "litetable_cdc_events_total",
		Help: "CDC event deliveries to clients, by outcome.",
	}, []string{"outcome"})

	cdcClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "litetable_cdc_clients",
		Help: "Connected CDC clients.",
	})

	reg.MustRegister(scanRows, scanDuration, cellsWritten, opDuration, opTotal, cdcEvents, cdcClients)

	return &Metrics{
		Registry:          reg,
		ScanRows:          scanRows,
		ScanDuration:      scanDuration,
		CellsWritten:      cellsWritten,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		CDCEvents:         cdcEvents,
		CDCClients:        cdcClients,
	}
}
