package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ocean-lab-apps/internal/grid"
	"github.com/KI7MT/ocean-lab-apps/internal/instrument"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
)

type fakeDoer struct {
	bodies []string
	rows   []int
	firstU []float64
	failAt int
}

func (d *fakeDoer) Do(_ context.Context, q ch.Query) error {
	d.bodies = append(d.bodies, q.Body)
	if d.failAt == len(d.bodies) {
		return errors.New("connection reset")
	}
	if len(q.Input) == 0 {
		return nil
	}
	d.rows = append(d.rows, q.Input[0].Data.Rows())
	if u, ok := q.Input[1].Data.(*proto.ColFloat64); ok && len(*u) > 0 {
		d.firstU = append(d.firstU, (*u)[0])
	}
	return nil
}

func sonicRecords(n int) []instrument.SonicRecord {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	recs := make([]instrument.SonicRecord, n)
	for i := range recs {
		recs[i] = instrument.SonicRecord{
			Time: base.Add(time.Duration(i) * 50 * time.Millisecond),
			U:    float64(i),
			V:    -1,
			W:    0.1,
			TSos: 20,
		}
	}
	return recs
}

func TestCreateTableSQL(t *testing.T) {
	stmt, err := CreateTableSQL("ocean", SonicTable)
	require.NoError(t, err)
	assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS ocean.sonic (")
	assert.Contains(t, stmt, "ENGINE = MergeTree")

	stmt, err = CreateTableSQL("", GridTable)
	require.NoError(t, err)
	assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS grid_values (")

	_, err = CreateTableSQL("ocean", "wind")
	require.Error(t, err)
}

func TestDeleteSourceSQL(t *testing.T) {
	got := deleteSourceSQL("ocean", GPSTable, `gps_2024'01.log`)
	assert.Equal(t, `ALTER TABLE ocean.gps DELETE WHERE source = 'gps_2024\'01.log' SETTINGS mutations_sync = 1`, got)
	assert.Equal(t, `'a\\b'`, quote(`a\b`))
}

func TestInstrumentWriter_EnsureTables(t *testing.T) {
	d := &fakeDoer{}
	w := NewInstrumentWriter(d, "ocean")
	require.NoError(t, w.EnsureTables(context.Background()))

	require.Len(t, d.bodies, 3)
	assert.Contains(t, d.bodies[0], "ocean.sonic")
	assert.Contains(t, d.bodies[1], "ocean.imu")
	assert.Contains(t, d.bodies[2], "ocean.gps")
}

func TestInstrumentWriter_WriteSonicBatches(t *testing.T) {
	d := &fakeDoer{}
	m := observability.NewMetrics()
	w := NewInstrumentWriter(d, "ocean")
	w.BatchSize = 2
	w.Metrics = m

	n, err := w.WriteSonic(context.Background(), "sonic_0115.bin", sonicRecords(5))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 1}, d.rows)
	assert.Equal(t, []float64{0, 2, 4}, d.firstU)
	for _, body := range d.bodies {
		assert.Equal(t, "INSERT INTO ocean.sonic (time, u, v, w, t_sos, source) VALUES", body)
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsInserted.WithLabelValues(SonicTable)))
}

func TestInstrumentWriter_Empty(t *testing.T) {
	d := &fakeDoer{}
	w := NewInstrumentWriter(d, "ocean")

	n, err := w.WriteIMU(context.Background(), "imu.bin", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, d.bodies)
}

func TestInstrumentWriter_InsertError(t *testing.T) {
	d := &fakeDoer{failAt: 2}
	w := NewInstrumentWriter(d, "ocean")
	w.BatchSize = 2

	n, err := w.WriteSonic(context.Background(), "sonic.bin", sonicRecords(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert sonic")
	assert.Equal(t, 2, n)
}

func TestInstrumentWriter_WriteGPSAndIMU(t *testing.T) {
	d := &fakeDoer{}
	w := NewInstrumentWriter(d, "")
	ts := time.Date(2024, 1, 15, 12, 30, 45, 0, time.UTC)

	n, err := w.WriteGPS(context.Background(), "gps.log", []instrument.GPSFix{{
		GPSTime: ts, LoggerTime: ts, Status: "A", Lat: -34.5, Lon: 18.25,
		SOGKnots: 10.5, COG: 90, MagVar: math.NaN(), VarDir: "",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.WriteIMU(context.Background(), "imu.bin", []instrument.IMURecord{{Time: ts, Roll: 1.5}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, d.bodies, 2)
	assert.Equal(t, "INSERT INTO gps (gps_time, logger_time, status, lat, lon, sog_knots, cog, mag_var, var_dir, source) VALUES", d.bodies[0])
	assert.Equal(t, "INSERT INTO imu (time, x_rate, y_rate, z_rate, x_accl, y_accl, z_accl, roll, pitch, yaw, source) VALUES", d.bodies[1])
}

func TestInstrumentWriter_DeleteSource(t *testing.T) {
	d := &fakeDoer{}
	w := NewInstrumentWriter(d, "ocean")
	require.NoError(t, w.DeleteSource(context.Background(), SonicTable, "a.bin"))
	require.Len(t, d.bodies, 1)
	assert.Contains(t, d.bodies[0], "ALTER TABLE ocean.sonic DELETE WHERE source = 'a.bin'")

	d.failAt = 2
	require.Error(t, w.DeleteSource(context.Background(), SonicTable, "a.bin"))
}

type fakeSink struct {
	batches [][]GridRow
	err     error
}

func (s *fakeSink) WriteRows(_ context.Context, rows []GridRow) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]GridRow(nil), rows...))
	return nil
}

func testField() *grid.Field {
	t0 := time.Date(2020, 4, 6, 0, 0, 0, 0, time.UTC)
	f := grid.NewField("sst", []time.Time{t0, t0.Add(24 * time.Hour)}, []float64{-40, -39}, []float64{10, 11})
	f.Units = "degC"
	f.Set(0, 0, 0, 15.5)
	f.Set(0, 1, 1, 16)
	f.Set(1, 0, 1, 14)
	f.Set(1, 1, 0, 13)
	f.Set(1, 1, 1, 12.5)
	return f
}

func TestGridIngester_SkipsNaNAndBatches(t *testing.T) {
	sink := &fakeSink{}
	m := observability.NewMetrics()
	g := &GridIngester{Sink: sink, BatchSize: 2, Metrics: m}

	n, err := g.IngestField(context.Background(), testField(), "sst_20200406.nc")
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[2], 1)

	first := sink.batches[0][0]
	assert.Equal(t, "sst", first.Variable)
	assert.Equal(t, float32(-40), first.Lat)
	assert.Equal(t, float32(10), first.Lon)
	assert.Equal(t, 15.5, first.Value)
	assert.Equal(t, "sst_20200406.nc", first.Source)

	last := sink.batches[2][0]
	assert.Equal(t, 12.5, last.Value)
	assert.Equal(t, time.Date(2020, 4, 7, 0, 0, 0, 0, time.UTC), last.Time)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsInserted.WithLabelValues(GridTable)))
}

func TestGridIngester_Errors(t *testing.T) {
	f := testField()
	g := &GridIngester{Sink: &fakeSink{err: errors.New("table is read-only")}}
	_, err := g.IngestField(context.Background(), f, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert sst")

	bad := testField()
	bad.Data = bad.Data[:3]
	_, err = (&GridIngester{Sink: &fakeSink{}}).IngestField(context.Background(), bad, "x")
	require.ErrorIs(t, err, grid.ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&GridIngester{Sink: &fakeSink{}}).IngestField(ctx, f, "x")
	require.ErrorIs(t, err, context.Canceled)
}
