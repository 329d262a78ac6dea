package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/grid"
	"github.com/KI7MT/ocean-lab-apps/internal/observability"
)

// OpenGrid opens a clickhouse-go connection and pings it.
func OpenGrid(ctx context.Context, cfg *common.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr()},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time":    60,
			"max_insert_block_size": 1048576,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", cfg.ClickHouseAddr(), err)
	}
	return conn, nil
}

// GridRow is one non-missing cell of a gridded field.
type GridRow struct {
	Time     time.Time
	Variable string
	Lat      float32
	Lon      float32
	Value    float64
	Source   string
}

// GridSink receives batches of grid rows.
type GridSink interface {
	WriteRows(ctx context.Context, rows []GridRow) error
}

// ClickHouseGridSink writes grid rows with PrepareBatch/Send.
type ClickHouseGridSink struct {
	Conn     driver.Conn
	Database string
}

// EnsureTable creates the grid_values table if missing.
func (s *ClickHouseGridSink) EnsureTable(ctx context.Context) error {
	stmt, err := CreateTableSQL(s.Database, GridTable)
	if err != nil {
		return err
	}
	return s.Conn.Exec(ctx, stmt)
}

// DeleteSource removes rows previously inserted from source.
func (s *ClickHouseGridSink) DeleteSource(ctx context.Context, source string) error {
	return s.Conn.Exec(ctx, deleteSourceSQL(s.Database, GridTable, source))
}

func (s *ClickHouseGridSink) WriteRows(ctx context.Context, rows []GridRow) error {
	batch, err := s.Conn.PrepareBatch(ctx, "INSERT INTO "+fqn(s.Database, GridTable))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r.Time, r.Variable, r.Lat, r.Lon, r.Value, r.Source); err != nil {
			batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// GridIngester flattens fields into rows and sends them in batches.
type GridIngester struct {
	Sink      GridSink
	BatchSize int
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// IngestField sends every non-NaN cell of f tagged with source and returns
// the number of rows written.
func (g *GridIngester) IngestField(ctx context.Context, f *grid.Field, source string) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	size := g.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	logger := g.Logger
	if logger == nil {
		logger = common.DiscardLogger()
	}

	rows := make([]GridRow, 0, min(size, len(f.Data)))
	sent := 0
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := g.Sink.WriteRows(ctx, rows); err != nil {
			return fmt.Errorf("insert %s: %w", f.Name, err)
		}
		sent += len(rows)
		if g.Metrics != nil {
			g.Metrics.RowsInserted.WithLabelValues(GridTable).Add(float64(len(rows)))
		}
		rows = rows[:0]
		return nil
	}

	nt, ny, nx := f.Shape()
	for t := 0; t < nt; t++ {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ts := f.Time[t].UTC()
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v := f.At(t, y, x)
				if math.IsNaN(v) {
					continue
				}
				rows = append(rows, GridRow{
					Time:     ts,
					Variable: f.Name,
					Lat:      float32(f.Lat[y]),
					Lon:      float32(f.Lon[x]),
					Value:    v,
					Source:   source,
				})
				if len(rows) >= size {
					if err := flush(); err != nil {
						return sent, err
					}
				}
			}
		}
		logger.Debug("ingested time step", "variable", f.Name, "time", ts, "rows", sent)
	}
	if err := flush(); err != nil {
		return sent, err
	}
	return sent, nil
}
