package observability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Independent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.FilesDownloaded.WithLabelValues("era5").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FilesDownloaded.WithLabelValues("era5")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FilesDownloaded.WithLabelValues("era5")))
}

func TestFinish(t *testing.T) {
	m := NewMetrics()
	m.Finish(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunSuccess))
	assert.Positive(t, testutil.ToFloat64(m.LastRunTime))

	m.Finish(errors.New("boom"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRunSuccess))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordsDecoded.WithLabelValues("sonic").Add(42)
	m.BytesDownloaded.WithLabelValues("seaice").Add(1024)

	path := filepath.Join(t.TempDir(), "ocean.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `ocean_lab_records_decoded_total{instrument="sonic"} 42`)
	assert.Contains(t, out, `ocean_lab_bytes_downloaded_total{source="seaice"} 1024`)

	require.NoError(t, m.WriteTextfile(""))
}
