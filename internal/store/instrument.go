package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/instrument"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
)

// Doer executes a native ClickHouse query. *ch.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, q ch.Query) error
}

// DialNative connects to the ClickHouse native port with LZ4 compression.
func DialNative(ctx context.Context, cfg *common.Config) (*ch.Client, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.ClickHouseAddr(),
		Database:    cfg.ClickHouseDatabase,
		User:        cfg.ClickHouseUser,
		Password:    cfg.ClickHousePassword,
		Compression: ch.CompressionLZ4,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse dial %s: %w", cfg.ClickHouseAddr(), err)
	}
	return conn, nil
}

type batch interface {
	Input() proto.Input
	Len() int
	Reset()
}

// SonicBatch holds sonic anemometer rows in native columns.
type SonicBatch struct {
	Time   *proto.ColDateTime64
	U      *proto.ColFloat64
	V      *proto.ColFloat64
	W      *proto.ColFloat64
	TSos   *proto.ColFloat64
	Source *proto.ColStr
}

func NewSonicBatch() *SonicBatch {
	return &SonicBatch{
		Time:   new(proto.ColDateTime64).WithPrecision(proto.PrecisionMilli),
		U:      new(proto.ColFloat64),
		V:      new(proto.ColFloat64),
		W:      new(proto.ColFloat64),
		TSos:   new(proto.ColFloat64),
		Source: new(proto.ColStr),
	}
}

func (b *SonicBatch) Add(r instrument.SonicRecord, source string) {
	b.Time.Append(r.Time)
	b.U.Append(r.U)
	b.V.Append(r.V)
	b.W.Append(r.W)
	b.TSos.Append(r.TSos)
	b.Source.Append(source)
}

func (b *SonicBatch) Len() int { return b.Time.Rows() }

func (b *SonicBatch) Reset() {
	b.Time.Reset()
	b.U.Reset()
	b.V.Reset()
	b.W.Reset()
	b.TSos.Reset()
	b.Source.Reset()
}

func (b *SonicBatch) Input() proto.Input {
	return proto.Input{
		{Name: "time", Data: b.Time},
		{Name: "u", Data: b.U},
		{Name: "v", Data: b.V},
		{Name: "w", Data: b.W},
		{Name: "t_sos", Data: b.TSos},
		{Name: "source", Data: b.Source},
	}
}

// IMUBatch holds IMU rows in native columns.
type IMUBatch struct {
	Time   *proto.ColDateTime64
	XRate  *proto.ColFloat64
	YRate  *proto.ColFloat64
	ZRate  *proto.ColFloat64
	XAccl  *proto.ColFloat64
	YAccl  *proto.ColFloat64
	ZAccl  *proto.ColFloat64
	Roll   *proto.ColFloat64
	Pitch  *proto.ColFloat64
	Yaw    *proto.ColFloat64
	Source *proto.ColStr
}

func NewIMUBatch() *IMUBatch {
	return &IMUBatch{
		Time:   new(proto.ColDateTime64).WithPrecision(proto.PrecisionMilli),
		XRate:  new(proto.ColFloat64),
		YRate:  new(proto.ColFloat64),
		ZRate:  new(proto.ColFloat64),
		XAccl:  new(proto.ColFloat64),
		YAccl:  new(proto.ColFloat64),
		ZAccl:  new(proto.ColFloat64),
		Roll:   new(proto.ColFloat64),
		Pitch:  new(proto.ColFloat64),
		Yaw:    new(proto.ColFloat64),
		Source: new(proto.ColStr),
	}
}

func (b *IMUBatch) Add(r instrument.IMURecord, source string) {
	b.Time.Append(r.Time)
	b.XRate.Append(r.XRate)
	b.YRate.Append(r.YRate)
	b.ZRate.Append(r.ZRate)
	b.XAccl.Append(r.XAccl)
	b.YAccl.Append(r.YAccl)
	b.ZAccl.Append(r.ZAccl)
	b.Roll.Append(r.Roll)
	b.Pitch.Append(r.Pitch)
	b.Yaw.Append(r.Yaw)
	b.Source.Append(source)
}

func (b *IMUBatch) Len() int { return b.Time.Rows() }

func (b *IMUBatch) Reset() {
	b.Time.Reset()
	b.XRate.Reset()
	b.YRate.Reset()
	b.ZRate.Reset()
	b.XAccl.Reset()
	b.YAccl.Reset()
	b.ZAccl.Reset()
	b.Roll.Reset()
	b.Pitch.Reset()
	b.Yaw.Reset()
	b.Source.Reset()
}

func (b *IMUBatch) Input() proto.Input {
	return proto.Input{
		{Name: "time", Data: b.Time},
		{Name: "x_rate", Data: b.XRate},
		{Name: "y_rate", Data: b.YRate},
		{Name: "z_rate", Data: b.ZRate},
		{Name: "x_accl", Data: b.XAccl},
		{Name: "y_accl", Data: b.YAccl},
		{Name: "z_accl", Data: b.ZAccl},
		{Name: "roll", Data: b.Roll},
		{Name: "pitch", Data: b.Pitch},
		{Name: "yaw", Data: b.Yaw},
		{Name: "source", Data: b.Source},
	}
}

// GPSBatch holds GPS fixes in native columns.
type GPSBatch struct {
	GPSTime    *proto.ColDateTime64
	LoggerTime *proto.ColDateTime64
	Status     *proto.ColStr
	Lat        *proto.ColFloat64
	Lon        *proto.ColFloat64
	SOG        *proto.ColFloat64
	COG        *proto.ColFloat64
	MagVar     *proto.ColFloat64
	VarDir     *proto.ColStr
	Source     *proto.ColStr
}

func NewGPSBatch() *GPSBatch {
	return &GPSBatch{
		GPSTime:    new(proto.ColDateTime64).WithPrecision(proto.PrecisionMilli),
		LoggerTime: new(proto.ColDateTime64).WithPrecision(proto.PrecisionMilli),
		Status:     new(proto.ColStr),
		Lat:        new(proto.ColFloat64),
		Lon:        new(proto.ColFloat64),
		SOG:        new(proto.ColFloat64),
		COG:        new(proto.ColFloat64),
		MagVar:     new(proto.ColFloat64),
		VarDir:     new(proto.ColStr),
		Source:     new(proto.ColStr),
	}
}

func (b *GPSBatch) Add(f instrument.GPSFix, source string) {
	b.GPSTime.Append(f.GPSTime)
	b.LoggerTime.Append(f.LoggerTime)
	b.Status.Append(f.Status)
	b.Lat.Append(f.Lat)
	b.Lon.Append(f.Lon)
	b.SOG.Append(f.SOGKnots)
	b.COG.Append(f.COG)
	b.MagVar.Append(f.MagVar)
	b.VarDir.Append(f.VarDir)
	b.Source.Append(source)
}

func (b *GPSBatch) Len() int { return b.LoggerTime.Rows() }

func (b *GPSBatch) Reset() {
	b.GPSTime.Reset()
	b.LoggerTime.Reset()
	b.Status.Reset()
	b.Lat.Reset()
	b.Lon.Reset()
	b.SOG.Reset()
	b.COG.Reset()
	b.MagVar.Reset()
	b.VarDir.Reset()
	b.Source.Reset()
}

func (b *GPSBatch) Input() proto.Input {
	return proto.Input{
		{Name: "gps_time", Data: b.GPSTime},
		{Name: "logger_time", Data: b.LoggerTime},
		{Name: "status", Data: b.Status},
		{Name: "lat", Data: b.Lat},
		{Name: "lon", Data: b.Lon},
		{Name: "sog_knots", Data: b.SOG},
		{Name: "cog", Data: b.COG},
		{Name: "mag_var", Data: b.MagVar},
		{Name: "var_dir", Data: b.VarDir},
		{Name: "source", Data: b.Source},
	}
}

// InstrumentWriter inserts decoded instrument records over the native
// protocol.
type InstrumentWriter struct {
	conn      Doer
	database  string
	BatchSize int
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// NewInstrumentWriter returns a writer for tables in database.
func NewInstrumentWriter(conn Doer, database string) *InstrumentWriter {
	return &InstrumentWriter{
		conn:      conn,
		database:  database,
		BatchSize: DefaultBatchSize,
		Logger:    common.DiscardLogger(),
	}
}

// EnsureTables creates the sonic, imu, and gps tables if missing.
func (w *InstrumentWriter) EnsureTables(ctx context.Context) error {
	for _, table := range []string{SonicTable, IMUTable, GPSTable} {
		stmt, err := CreateTableSQL(w.database, table)
		if err != nil {
			return err
		}
		if err := w.conn.Do(ctx, ch.Query{Body: stmt}); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}

// DeleteSource removes rows previously inserted from source.
func (w *InstrumentWriter) DeleteSource(ctx context.Context, table, source string) error {
	if err := w.conn.Do(ctx, ch.Query{Body: deleteSourceSQL(w.database, table, source)}); err != nil {
		return fmt.Errorf("delete %s from %s: %w", source, table, err)
	}
	return nil
}

// WriteSonic inserts sonic records tagged with source and returns the number
// of rows sent.
func (w *InstrumentWriter) WriteSonic(ctx context.Context, source string, recs []instrument.SonicRecord) (int, error) {
	b := NewSonicBatch()
	return writeBatched(ctx, w, SonicTable, b, recs, func(r instrument.SonicRecord) { b.Add(r, source) })
}

// WriteIMU inserts IMU records tagged with source.
func (w *InstrumentWriter) WriteIMU(ctx context.Context, source string, recs []instrument.IMURecord) (int, error) {
	b := NewIMUBatch()
	return writeBatched(ctx, w, IMUTable, b, recs, func(r instrument.IMURecord) { b.Add(r, source) })
}

// WriteGPS inserts GPS fixes tagged with source.
func (w *InstrumentWriter) WriteGPS(ctx context.Context, source string, fixes []instrument.GPSFix) (int, error) {
	b := NewGPSBatch()
	return writeBatched(ctx, w, GPSTable, b, fixes, func(f instrument.GPSFix) { b.Add(f, source) })
}

func writeBatched[T any](ctx context.Context, w *InstrumentWriter, table string, b batch, recs []T, add func(T)) (int, error) {
	size := w.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	sent := 0
	for _, r := range recs {
		add(r)
		if b.Len() >= size {
			n, err := w.flush(ctx, table, b)
			sent += n
			if err != nil {
				return sent, err
			}
		}
	}
	n, err := w.flush(ctx, table, b)
	return sent + n, err
}

func (w *InstrumentWriter) flush(ctx context.Context, table string, b batch) (int, error) {
	n := b.Len()
	if n == 0 {
		return 0, nil
	}
	in := b.Input()
	names := make([]string, len(in))
	for i, col := range in {
		names[i] = col.Name
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES", fqn(w.database, table), strings.Join(names, ", "))

	start := time.Now()
	if err := w.conn.Do(ctx, ch.Query{Body: query, Input: in}); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	b.Reset()

	w.Logger.Debug("flushed batch", "table", table, "rows", n, "elapsed", time.Since(start))
	if w.Metrics != nil {
		w.Metrics.RowsInserted.WithLabelValues(table).Add(float64(n))
	}
	return n, nil
}
