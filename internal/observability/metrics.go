// Package observability holds the Prometheus metrics shared by the batch
// tools. The tools are short-lived, so metrics are written once at exit in
// the node_exporter textfile format instead of being scraped.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ocean_lab"

// Metrics holds the counters, histograms, and gauges for one tool run.
type Metrics struct {
	Registry *prometheus.Registry

	// Download metrics; labels: source={era5,cfsv2,sst,seaice}.
	FilesDownloaded  *prometheus.CounterVec
	FilesSkipped     *prometheus.CounterVec
	DownloadErrors   *prometheus.CounterVec
	BytesDownloaded  *prometheus.CounterVec
	DownloadDuration *prometheus.HistogramVec

	// Decode metrics; labels: instrument={sonic,imu,gps}.
	RecordsDecoded *prometheus.CounterVec
	RecordsFailed  *prometheus.CounterVec

	// Database metrics; labels: table.
	RowsInserted *prometheus.CounterVec

	LastRunSuccess prometheus.Gauge
	LastRunTime    prometheus.Gauge
}

// NewMetrics creates metrics on a private registry, so several instances can
// coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_downloaded_total",
			Help:      "Files fetched from remote archives.",
		}, []string{"source"}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Files skipped because they already exist locally.",
		}, []string{"source"}),
		DownloadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_errors_total",
			Help:      "Failed download requests.",
		}, []string{"source"}),
		BytesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Bytes written by downloads.",
		}, []string{"source"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Wall time of a single file download, including server-side queueing.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"source"}),
		RecordsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Instrument records decoded.",
		}, []string{"instrument"}),
		RecordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_failed_total",
			Help:      "Instrument records skipped as undecodable.",
		}, []string{"instrument"}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows inserted into ClickHouse.",
		}, []string{"table"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run finished without error, 0 otherwise.",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.Registry.MustRegister(
		m.FilesDownloaded,
		m.FilesSkipped,
		m.DownloadErrors,
		m.BytesDownloaded,
		m.DownloadDuration,
		m.RecordsDecoded,
		m.RecordsFailed,
		m.RowsInserted,
		m.LastRunSuccess,
		m.LastRunTime,
	)
	return m
}

// Finish records the outcome of the run.
func (m *Metrics) Finish(err error) {
	if err == nil {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunTime.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
