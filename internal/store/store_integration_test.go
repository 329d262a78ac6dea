//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/KI7MT/ocean-lab-apps/internal/common"
	"github.com/KI7MT/ocean-lab-apps/internal/grid"
	"github.com/KI7MT/ocean-lab-apps/internal/instrument"
	"github.com/KI7MT/ocean-lab-apps/internal/store"
)

func startClickHouse(t *testing.T) *common.Config {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8",
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_SKIP_USER_SETUP": "1"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	cfg := common.DefaultConfig()
	cfg.ClickHouseHost = host
	cfg.ClickHousePort = port.Int()
	cfg.ClickHouseDatabase = "default"
	cfg.ClickHouseUser = "default"
	cfg.ClickHousePassword = ""
	return cfg
}

func TestClickHouse_InstrumentAndGrid(t *testing.T) {
	cfg := startClickHouse(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	native, err := store.DialNative(ctx, cfg)
	require.NoError(t, err)
	defer native.Close()

	w := store.NewInstrumentWriter(native, cfg.ClickHouseDatabase)
	require.NoError(t, w.EnsureTables(ctx))

	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	recs := []instrument.SonicRecord{
		{Time: ts, U: 1.5, V: -2, W: 0.1, TSos: 18.2},
		{Time: ts.Add(50 * time.Millisecond), U: 1.6, V: -2.1, W: 0.05, TSos: 18.3},
	}
	n, err := w.WriteSonic(ctx, "sonic.bin", recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	conn, err := store.OpenGrid(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	var sonicRows uint64
	require.NoError(t, conn.QueryRow(ctx, "SELECT count() FROM sonic WHERE source = 'sonic.bin'").Scan(&sonicRows))
	assert.Equal(t, uint64(2), sonicRows)

	require.NoError(t, w.DeleteSource(ctx, store.SonicTable, "sonic.bin"))
	require.NoError(t, conn.QueryRow(ctx, "SELECT count() FROM sonic").Scan(&sonicRows))
	assert.Zero(t, sonicRows)

	sink := &store.ClickHouseGridSink{Conn: conn, Database: cfg.ClickHouseDatabase}
	require.NoError(t, sink.EnsureTable(ctx))

	f := grid.NewField("sst", []time.Time{ts}, []float64{-40, -39}, []float64{10, 11})
	f.Set(0, 0, 0, 15.5)
	f.Set(0, 1, 1, 16)
	g := &store.GridIngester{Sink: sink}
	n, err = g.IngestField(ctx, f, "sst.nc")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var total float64
	require.NoError(t, conn.QueryRow(ctx, "SELECT sum(value) FROM grid_values WHERE variable = 'sst'").Scan(&total))
	assert.InDelta(t, 31.5, total, 1e-9)
}
