package instrument

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putBE16(b []byte, off int, v int16) {
	binary.BigEndian.PutUint16(b[off:], uint16(v))
}

func sonicRecord(stamp string, u, v, w, t int16) []byte {
	b := make([]byte, SonicRecordSize)
	copy(b, stamp)
	putBE16(b, sonicOffU, u)
	putBE16(b, sonicOffV, v)
	putBE16(b, sonicOffW, w)
	putBE16(b, sonicOffT, t)
	return b
}

func imuRecord(stamp string, roll, xAccl int16) []byte {
	b := make([]byte, IMURecordSize)
	copy(b, stamp)
	putBE16(b, imuFrameStart+imuOffRoll, roll)
	putBE16(b, imuFrameStart+imuOffXAccl, xAccl)
	return b
}

func TestDecodeSonic(t *testing.T) {
	rec, err := DecodeSonic(sonicRecord("240115123045.500", 150, -250, 10, 29315))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 45, 500e6, time.UTC), rec.Time)
	assert.InDelta(t, 1.5, rec.U, 1e-12)
	assert.InDelta(t, -2.5, rec.V, 1e-12)
	assert.InDelta(t, 0.1, rec.W, 1e-12)
	assert.InDelta(t, 20.0, rec.TSos, 1e-9)
}

func TestDecodeSonic_BadStamp(t *testing.T) {
	_, err := DecodeSonic(sonicRecord("garbage-garbage!", 0, 0, 0, 0))
	require.Error(t, err)

	_, err = DecodeSonic(make([]byte, 10))
	require.ErrorIs(t, err, ErrShortRecord)
}

func TestDecodeIMU(t *testing.T) {
	rec, err := DecodeIMU(imuRecord("240115123045.010", 16384, 3277))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 45, 10e6, time.UTC), rec.Time)
	assert.InDelta(t, 90.0, rec.Roll, 1e-12)
	assert.InDelta(t, 3277*20.0/65536, rec.XAccl, 1e-12)
	assert.Zero(t, rec.Pitch)
	assert.Zero(t, rec.ZRate)
}

func TestSonicScanner_SkipFirst(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(sonicRecord("xxxxxxxxxxxxxxxx", 0, 0, 0, 0)) // partial frame at file start
	buf.Write(sonicRecord("240115123045.000", 100, 0, 0, 27315))
	buf.Write(sonicRecord("not a timestamp!", 0, 0, 0, 0))
	buf.Write(sonicRecord("240115123045.100", 200, 0, 0, 27315))
	buf.Write([]byte("2401151230"))

	recs, stats, err := readAll(NewSonicScanner(&buf, DefaultOptions()))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.InDelta(t, 1.0, recs[0].U, 1e-12)
	assert.InDelta(t, 2.0, recs[1].U, 1e-12)
	assert.InDelta(t, 0.0, recs[1].TSos, 1e-9)
	assert.Equal(t, int64(4), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.Decoded)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(4*SonicRecordSize+10), stats.BytesRead)
}

func TestSonicScanner_NoSkip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(sonicRecord("240115123045.000", 100, 0, 0, 0))

	recs, stats, err := readAll(NewSonicScanner(&buf, Options{}))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int64(1), stats.Decoded)
}

func TestSonicScanner_EmptyAndShortInput(t *testing.T) {
	recs, stats, err := readAll(NewSonicScanner(bytes.NewReader(nil), DefaultOptions()))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, stats.TotalRecords)

	recs, _, err = readAll(NewSonicScanner(bytes.NewReader(make([]byte, 12)), DefaultOptions()))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestSonicScanner_ReadError(t *testing.T) {
	sc := NewSonicScanner(failingReader{}, Options{})
	assert.False(t, sc.Scan())
	assert.ErrorIs(t, sc.Err(), io.ErrClosedPipe)
}

func TestReadSonicFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonic.log.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	for i := 0; i < 3; i++ {
		_, err = gz.Write(sonicRecord("240115123045.000", int16(100*i), 0, 0, 0))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	recs, stats, err := ReadSonicFile(path, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, 1.0, recs[0].U, 1e-12)
	assert.Equal(t, int64(2), stats.Decoded)
}

const gpsLog = "240115123045.500\t$GPRMC,123519.00,A,4807.038,S,01131.000,W,022.4,084.4,230324,003.1,W*6A\n" +
	"240115123045.600\t$GPVTG,084.4,T,,M,022.4,N,041.5,K*43\n" +
	"\n" +
	"240115123045.700\t$GPRMC,123520.00,V,4807.038,N,01131.000,E,,,230324,,*1F\n" +
	"240115123045.800\t$GPRMC,broken\n" +
	"no tab here\n"

func TestReadGPS(t *testing.T) {
	fixes, stats, err := ReadGPS(strings.NewReader(gpsLog), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, fixes, 2)

	assert.Equal(t, int64(5), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.Decoded)
	assert.Equal(t, int64(1), stats.Ignored)
	assert.Equal(t, int64(2), stats.Failed)

	first := fixes[0]
	assert.True(t, first.Valid())
	assert.Equal(t, time.Date(2024, 3, 23, 12, 35, 19, 0, time.UTC), first.GPSTime)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 30, 45, 500e6, time.UTC), first.LoggerTime)
	assert.InDelta(t, -(48 + 7.038/60), first.Lat, 1e-9)
	assert.InDelta(t, -(11 + 31.0/60), first.Lon, 1e-9)
	assert.InDelta(t, 22.4, first.SOGKnots, 1e-12)
	assert.InDelta(t, 84.4, first.COG, 1e-12)
	assert.InDelta(t, 3.1, first.MagVar, 1e-12)
	assert.Equal(t, "W", first.VarDir)

	second := fixes[1]
	assert.False(t, second.Valid())
	assert.Greater(t, second.Lat, 0.0)
	assert.Greater(t, second.Lon, 0.0)
	assert.True(t, math.IsNaN(second.SOGKnots))
	assert.True(t, math.IsNaN(second.MagVar))
	assert.Equal(t, "", second.VarDir)
}

func TestReadGPS_NoHemisphere(t *testing.T) {
	fixes, _, err := ReadGPS(strings.NewReader(gpsLog), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, fixes)
	assert.Greater(t, fixes[0].Lat, 0.0)
	assert.Greater(t, fixes[0].Lon, 0.0)
}

func TestReadGPS_OverlongLineSkipped(t *testing.T) {
	good := "240115123045.500\t$GPRMC,123519.00,A,4807.038,S,01131.000,W,022.4,084.4,230324,003.1,W*6A\n"
	garbage := strings.Repeat("x", 70*1024) + "\n"
	log := good + garbage + good

	fixes, stats, err := ReadGPS(strings.NewReader(log), DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, fixes, 2)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.Decoded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(len(log)), stats.BytesRead)
}

func TestReadGPS_NoTrailingNewline(t *testing.T) {
	line := "240115123045.500\t$GPRMC,123519.00,A,4807.038,S,01131.000,W,022.4,084.4,230324,003.1,W*6A"
	fixes, stats, err := ReadGPS(strings.NewReader(line+"\r\n"+line), DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, fixes, 2)
	assert.Equal(t, int64(2), stats.Decoded)
}

func TestWriteCSV(t *testing.T) {
	rows := []SonicRow{{TimeMs: 1000, U: 1.5, V: -2, W: 0, TSos: math.NaN()}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Equal(t, "time_ms,u,v,w,t_sos\n1000,1.5,-2,0,NaN\n", buf.String())
}

func TestWriteCSVZstd(t *testing.T) {
	recs := []IMURecord{{Time: time.UnixMilli(42).UTC(), Roll: 90}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSVZstd(&buf, IMURows(recs)))

	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()
	out, err := io.ReadAll(dec)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "time_ms,x_rate"))
	assert.Equal(t, "42,0,0,0,0,0,0,90,0,0", lines[1])
}

func TestExportFile_Parquet(t *testing.T) {
	fixes := []GPSFix{{
		GPSTime:    time.Date(2024, 3, 23, 12, 35, 19, 0, time.UTC),
		LoggerTime: time.Date(2024, 3, 23, 12, 35, 19, 250e6, time.UTC),
		Status:     "A",
		Lat:        -48.1,
		Lon:        -11.5,
		VarDir:     "W",
	}}
	path := filepath.Join(t.TempDir(), "out", "gps.parquet")
	require.NoError(t, ExportFile(path, FormatParquet, GPSRows(fixes)))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := parquet.Read[GPSRow](bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fixes[0].LoggerTime.UnixMilli(), rows[0].LoggerTimeMs)
	assert.Equal(t, "A", rows[0].Status)
	assert.InDelta(t, -48.1, rows[0].Lat, 1e-12)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV.ZST")
	require.NoError(t, err)
	assert.Equal(t, FormatCSVZstd, f)

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" IMU ")
	require.NoError(t, err)
	assert.Equal(t, KindIMU, k)

	_, err = ParseKind("ctd")
	require.Error(t, err)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "sonic_20240115.csv", OutputName("/logs/sonic_20240115.bin", FormatCSV))
	assert.Equal(t, "gps_20240115.parquet", OutputName("gps_20240115.log.gz", FormatParquet))
	assert.Equal(t, "imu.csv.zst", OutputName("imu", FormatCSVZstd))
}
