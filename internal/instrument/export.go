package instrument

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
)

// Row is a flat export row. Header must not depend on the receiver's value.
type Row interface {
	Header() []string
	Fields() []string
}

// SonicRow is the export form of SonicRecord.
type SonicRow struct {
	TimeMs int64   `parquet:"time_ms"`
	U      float64 `parquet:"u"`
	V      float64 `parquet:"v"`
	W      float64 `parquet:"w"`
	TSos   float64 `parquet:"t_sos"`
}

func (SonicRow) Header() []string { return []string{"time_ms", "u", "v", "w", "t_sos"} }

func (r SonicRow) Fields() []string {
	return []string{ms(r.TimeMs), ff(r.U), ff(r.V), ff(r.W), ff(r.TSos)}
}

// SonicRows converts decoded records to export rows.
func SonicRows(recs []SonicRecord) []SonicRow {
	rows := make([]SonicRow, len(recs))
	for i, r := range recs {
		rows[i] = SonicRow{TimeMs: r.Time.UnixMilli(), U: r.U, V: r.V, W: r.W, TSos: r.TSos}
	}
	return rows
}

// IMURow is the export form of IMURecord.
type IMURow struct {
	TimeMs int64   `parquet:"time_ms"`
	XRate  float64 `parquet:"x_rate"`
	YRate  float64 `parquet:"y_rate"`
	ZRate  float64 `parquet:"z_rate"`
	XAccl  float64 `parquet:"x_accl"`
	YAccl  float64 `parquet:"y_accl"`
	ZAccl  float64 `parquet:"z_accl"`
	Roll   float64 `parquet:"roll"`
	Pitch  float64 `parquet:"pitch"`
	Yaw    float64 `parquet:"yaw"`
}

func (IMURow) Header() []string {
	return []string{"time_ms", "x_rate", "y_rate", "z_rate", "x_accl", "y_accl", "z_accl", "roll", "pitch", "yaw"}
}

func (r IMURow) Fields() []string {
	return []string{
		ms(r.TimeMs),
		ff(r.XRate), ff(r.YRate), ff(r.ZRate),
		ff(r.XAccl), ff(r.YAccl), ff(r.ZAccl),
		ff(r.Roll), ff(r.Pitch), ff(r.Yaw),
	}
}

// IMURows converts decoded records to export rows.
func IMURows(recs []IMURecord) []IMURow {
	rows := make([]IMURow, len(recs))
	for i, r := range recs {
		rows[i] = IMURow{
			TimeMs: r.Time.UnixMilli(),
			XRate:  r.XRate,
			YRate:  r.YRate,
			ZRate:  r.ZRate,
			XAccl:  r.XAccl,
			YAccl:  r.YAccl,
			ZAccl:  r.ZAccl,
			Roll:   r.Roll,
			Pitch:  r.Pitch,
			Yaw:    r.Yaw,
		}
	}
	return rows
}

// GPSRow is the export form of GPSFix.
type GPSRow struct {
	GPSTimeMs    int64   `parquet:"gps_time_ms"`
	LoggerTimeMs int64   `parquet:"logger_time_ms"`
	Status       string  `parquet:"status"`
	Lat          float64 `parquet:"lat"`
	Lon          float64 `parquet:"lon"`
	SOGKnots     float64 `parquet:"sog_knots"`
	COG          float64 `parquet:"cog"`
	MagVar       float64 `parquet:"mag_var"`
	VarDir       string  `parquet:"var_dir"`
}

func (GPSRow) Header() []string {
	return []string{"gps_time_ms", "logger_time_ms", "status", "lat", "lon", "sog_knots", "cog", "mag_var", "var_dir"}
}

func (r GPSRow) Fields() []string {
	return []string{
		ms(r.GPSTimeMs), ms(r.LoggerTimeMs), r.Status,
		ff(r.Lat), ff(r.Lon), ff(r.SOGKnots), ff(r.COG), ff(r.MagVar), r.VarDir,
	}
}

// GPSRows converts decoded fixes to export rows.
func GPSRows(fixes []GPSFix) []GPSRow {
	rows := make([]GPSRow, len(fixes))
	for i, f := range fixes {
		rows[i] = GPSRow{
			GPSTimeMs:    f.GPSTime.UnixMilli(),
			LoggerTimeMs: f.LoggerTime.UnixMilli(),
			Status:       f.Status,
			Lat:          f.Lat,
			Lon:          f.Lon,
			SOGKnots:     f.SOGKnots,
			COG:          f.COG,
			MagVar:       f.MagVar,
			VarDir:       f.VarDir,
		}
	}
	return rows
}

func ms(v int64) string   { return strconv.FormatInt(v, 10) }
func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteCSV writes rows as CSV with a header line.
func WriteCSV[R Row](w io.Writer, rows []R) error {
	var zero R
	cw := csv.NewWriter(w)
	if err := cw.Write(zero.Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVZstd writes rows as zstd-compressed CSV.
func WriteCSVZstd[R Row](w io.Writer, rows []R) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := WriteCSV(enc, rows); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// WriteParquet writes rows as a single Parquet file.
func WriteParquet[R any](w io.Writer, rows []R) error {
	pw := parquet.NewGenericWriter[R](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVZstd Format = "csv.zst"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a -format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatCSVZstd, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (allowed: csv, csv.zst, parquet)", s)
	}
}

// OutputName returns the export file name for a log file: the base name with
// any .gz suffix and final extension replaced by the format.
func OutputName(logPath string, format Format) string {
	base := strings.TrimSuffix(filepath.Base(logPath), ".gz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "." + string(format)
}

// ExportFile writes rows to path in the given format. The file is written to
// a temporary name and renamed into place once complete.
func ExportFile[R Row](path string, format Format, rows []R) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		err = WriteCSV(f, rows)
	case FormatCSVZstd:
		err = WriteCSVZstd(f, rows)
	case FormatParquet:
		err = WriteParquet(f, rows)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
